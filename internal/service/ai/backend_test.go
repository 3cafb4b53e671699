package ai

import (
	"math"
	"testing"
)

func TestNewLetterbox(t *testing.T) {
	tests := []struct {
		name                     string
		width, height, size      int
		scaledW, scaledH         int
		left, top, right, bottom int
	}{
		{"square", 640, 640, 640, 640, 640, 0, 0, 0, 0},
		{"landscape", 1280, 720, 640, 640, 360, 0, 140, 0, 140},
		{"portrait", 300, 600, 640, 320, 640, 160, 0, 160, 0},
		{"odd padding", 640, 479, 640, 640, 479, 0, 80, 0, 81},
		{"upscale", 32, 16, 64, 64, 32, 0, 16, 0, 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lb := NewLetterbox(tt.width, tt.height, tt.size)
			if lb.ScaledWidth != tt.scaledW || lb.ScaledHeight != tt.scaledH {
				t.Errorf("scaled = %dx%d, expected %dx%d", lb.ScaledWidth, lb.ScaledHeight, tt.scaledW, tt.scaledH)
			}
			if lb.Left != tt.left || lb.Top != tt.top || lb.Right != tt.right || lb.Bottom != tt.bottom {
				t.Errorf("padding = l%d t%d r%d b%d, expected l%d t%d r%d b%d",
					lb.Left, lb.Top, lb.Right, lb.Bottom, tt.left, tt.top, tt.right, tt.bottom)
			}
			if lb.Left+lb.ScaledWidth+lb.Right != tt.size || lb.Top+lb.ScaledHeight+lb.Bottom != tt.size {
				t.Errorf("letterbox does not fill %d: %+v", tt.size, lb)
			}
		})
	}
}

func TestLetterbox_ToImage(t *testing.T) {
	lb := NewLetterbox(1280, 720, 640) // gain 0.5, 140 px bars top and bottom

	got := lb.ToImage([4]float64{100, 190, 300, 290})
	want := [4]float64{200, 100, 600, 300}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Fatalf("ToImage = %v, expected %v", got, want)
		}
	}
}

func TestLetterbox_ToImageClips(t *testing.T) {
	lb := NewLetterbox(1280, 720, 640)

	got := lb.ToImage([4]float64{-50, 0, 700, 640})
	want := [4]float64{0, 0, 1280, 720}
	if got != want {
		t.Errorf("ToImage = %v, expected %v", got, want)
	}
}

func TestLetterbox_InvalidImage(t *testing.T) {
	lb := NewLetterbox(0, 100, 640)
	if got := lb.ToImage([4]float64{1, 2, 3, 4}); got != [4]float64{} {
		t.Errorf("Expected zero box for empty image, got %v", got)
	}
}

package gocvnet

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"reflect"
	"testing"

	"github.com/kozi00/wildfire-detect/internal/service/ai"
)

func TestOutputShape(t *testing.T) {
	tests := []struct {
		dims []int
		want []int64
	}{
		{[]int{1, 84, 8400}, []int64{1, 84, 8400}},
		{[]int{25200, 85}, []int64{1, 25200, 85}},
		{[]int{}, []int64{}},
	}

	for _, tt := range tests {
		if got := outputShape(tt.dims); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("outputShape(%v) = %v, expected %v", tt.dims, got, tt.want)
		}
	}
}

func TestNew_MissingModel(t *testing.T) {
	if _, err := New("/does/not/exist.onnx", 640); err == nil {
		t.Error("Expected error for missing model file")
	}
}

// setupTestBackend loads the model named by TEST_MODEL_PATH.
func setupTestBackend(t *testing.T) *Backend {
	t.Helper()

	path := os.Getenv("TEST_MODEL_PATH")
	if path == "" {
		t.Skip("TEST_MODEL_PATH not set")
	}

	backend, err := New(path, 640)
	if err != nil {
		t.Fatalf("Failed to load model: %v", err)
	}
	t.Cleanup(func() { backend.Close() })
	return backend
}

func TestBackend_Detect(t *testing.T) {
	backend := setupTestBackend(t)

	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	for y := 0; y < 240; y++ {
		for x := 0; x < 320; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode png: %v", err)
	}

	out, err := backend.Detect(buf.Bytes())
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	if len(out.Shape) != 3 {
		t.Fatalf("Expected 3D output, got %v", out.Shape)
	}
	if int64(len(out.Data)) != out.Shape[0]*out.Shape[1]*out.Shape[2] {
		t.Errorf("Output of %d values does not fit %v", len(out.Data), out.Shape)
	}
	if out.Letterbox.Width != 320 || out.Letterbox.Height != 240 || out.Letterbox.Size != 640 {
		t.Errorf("Unexpected letterbox %+v", out.Letterbox)
	}
}

func TestBackend_DetectNotAnImage(t *testing.T) {
	backend := setupTestBackend(t)

	_, err := backend.Detect([]byte("plain text, not an image"))
	if !errors.Is(err, ai.ErrDecode) {
		t.Errorf("Expected ErrDecode, got %v", err)
	}
}

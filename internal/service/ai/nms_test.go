package ai

import (
	"math"
	"testing"
)

func TestNonMaxSuppression_SameClassOverlap(t *testing.T) {
	candidates := []candidate{
		{box: [4]float64{0, 0, 100, 100}, score: 0.8, class: 0},
		{box: [4]float64{5, 5, 105, 105}, score: 0.9, class: 0},
		{box: [4]float64{300, 300, 400, 400}, score: 0.5, class: 0},
	}

	kept := nonMaxSuppression(candidates, 0.7, 0)
	if len(kept) != 2 {
		t.Fatalf("Expected 2 boxes, got %d: %+v", len(kept), kept)
	}
	if kept[0].score != 0.9 || kept[1].score != 0.5 {
		t.Errorf("Unexpected survivors: %+v", kept)
	}
}

func TestNonMaxSuppression_DifferentClassesKept(t *testing.T) {
	candidates := []candidate{
		{box: [4]float64{0, 0, 100, 100}, score: 0.8, class: 0},
		{box: [4]float64{0, 0, 100, 100}, score: 0.7, class: 1},
	}

	kept := nonMaxSuppression(candidates, 0.5, 0)
	if len(kept) != 2 {
		t.Errorf("Expected both classes to survive, got %+v", kept)
	}
}

func TestNonMaxSuppression_StableForTies(t *testing.T) {
	candidates := []candidate{
		{box: [4]float64{0, 0, 10, 10}, score: 0.5, class: 0},
		{box: [4]float64{50, 50, 60, 60}, score: 0.5, class: 1},
		{box: [4]float64{90, 90, 99, 99}, score: 0.5, class: 0},
	}

	kept := nonMaxSuppression(candidates, 0.5, 0)
	for i := range candidates {
		if kept[i] != candidates[i] {
			t.Errorf("Tie order changed at %d: %+v", i, kept)
		}
	}
}

func TestIoU(t *testing.T) {
	tests := []struct {
		name string
		a, b [4]float64
		want float64
	}{
		{"identical", [4]float64{0, 0, 10, 10}, [4]float64{0, 0, 10, 10}, 1},
		{"disjoint", [4]float64{0, 0, 10, 10}, [4]float64{20, 20, 30, 30}, 0},
		{"touching", [4]float64{0, 0, 10, 10}, [4]float64{10, 0, 20, 10}, 0},
		{"half", [4]float64{0, 0, 10, 10}, [4]float64{5, 0, 15, 10}, 50.0 / 150.0},
		{"degenerate", [4]float64{0, 0, 0, 0}, [4]float64{0, 0, 0, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := iou(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("iou = %v, expected %v", got, tt.want)
			}
		})
	}
}

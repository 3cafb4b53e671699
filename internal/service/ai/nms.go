package ai

import (
	"math"
	"sort"
)

// nonMaxSuppression keeps the highest scoring box of every cluster of
// same-class boxes overlapping by more than iouThreshold. The result is
// ordered by descending score, ties keep their input order.
func nonMaxSuppression(candidates []candidate, iouThreshold float64, maxDetections int) []candidate {
	sorted := make([]candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].score > sorted[j].score
	})

	suppressed := make([]bool, len(sorted))
	var kept []candidate
	for i := range sorted {
		if suppressed[i] {
			continue
		}
		if maxDetections > 0 && len(kept) >= maxDetections {
			break
		}
		kept = append(kept, sorted[i])

		for j := i + 1; j < len(sorted); j++ {
			if suppressed[j] || sorted[j].class != sorted[i].class {
				continue
			}
			if iou(sorted[i].box, sorted[j].box) > iouThreshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}

// iou is the intersection over union of two x1,y1,x2,y2 boxes.
func iou(a, b [4]float64) float64 {
	iw := math.Min(a[2], b[2]) - math.Max(a[0], b[0])
	ih := math.Min(a[3], b[3]) - math.Max(a[1], b[1])
	if iw <= 0 || ih <= 0 {
		return 0
	}

	inter := iw * ih
	union := (a[2]-a[0])*(a[3]-a[1]) + (b[2]-b[0])*(b[3]-b[1]) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

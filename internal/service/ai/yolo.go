package ai

import (
	"math"

	"github.com/kozi00/wildfire-detect/internal/dto"
	"github.com/kozi00/wildfire-detect/internal/model"
	"github.com/shopspring/decimal"
	"golang.org/x/xerrors"
)

// Options tune how raw model output becomes detections.
type Options struct {
	ConfidenceThreshold float64
	IoUThreshold        float64
	MaxDetections       int
}

// DefaultOptions match the ultralytics predictor defaults.
func DefaultOptions() Options {
	return Options{
		ConfidenceThreshold: 0.25,
		IoUThreshold:        0.7,
		MaxDetections:       300,
	}
}

// layout describes where the attributes of one candidate live in the tensor.
type layout struct {
	channelsFirst bool // [1, attrs, anchors] instead of [1, anchors, attrs]
	objectness    bool // YOLOv5 style: cx, cy, w, h, obj, classes...
	attrs         int
	anchors       int
}

func (l layout) at(data []float32, anchor, attr int) float64 {
	if l.channelsFirst {
		return float64(data[attr*l.anchors+anchor])
	}
	return float64(data[anchor*l.attrs+attr])
}

// candidate is a box in model input space before suppression.
type candidate struct {
	box   [4]float64
	score float64
	class int
}

// DecodeOutput turns the raw tensor of a YOLO detection head into detection
// records ordered by descending confidence.
//
// Two heads are understood: ultralytics YOLOv8 and later, which emit
// [1, 4+nc, anchors] with class scores only, and YOLOv5, which emits
// [1, anchors, 5+nc] with an objectness score before the class scores.
func DecodeOutput(out RawOutput, labels model.Labels, opts Options) ([]dto.Detection, error) {
	l, err := detectLayout(out, labels.Len())
	if err != nil {
		return nil, err
	}

	classOffset := 4
	if l.objectness {
		classOffset = 5
	}

	var candidates []candidate
	for i := 0; i < l.anchors; i++ {
		objectConfidence := 1.0
		if l.objectness {
			objectConfidence = l.at(out.Data, i, 4)
			if !(objectConfidence >= opts.ConfidenceThreshold) {
				continue
			}
		}

		classID := -1
		classConfidence := math.Inf(-1)
		for c := classOffset; c < l.attrs; c++ {
			if score := l.at(out.Data, i, c); score > classConfidence {
				classConfidence = score
				classID = c - classOffset
			}
		}

		score := objectConfidence * classConfidence
		if classID < 0 || !(score >= opts.ConfidenceThreshold) {
			continue
		}

		cx, cy := l.at(out.Data, i, 0), l.at(out.Data, i, 1)
		w, h := math.Abs(l.at(out.Data, i, 2)), math.Abs(l.at(out.Data, i, 3))
		candidates = append(candidates, candidate{
			box:   [4]float64{cx - w/2, cy - h/2, cx + w/2, cy + h/2},
			score: score,
			class: classID,
		})
	}

	kept := nonMaxSuppression(candidates, opts.IoUThreshold, opts.MaxDetections)

	detections := make([]dto.Detection, 0, len(kept))
	for _, c := range kept {
		detections = append(detections, dto.Detection{
			Label:      labels.Name(c.class),
			Confidence: RoundConfidence(c.score),
			BBox:       out.Letterbox.ToImage(c.box),
		})
	}
	return detections, nil
}

// RoundConfidence clamps a score to [0,1] and rounds it to three decimals.
func RoundConfidence(score float64) float64 {
	if math.IsNaN(score) {
		return 0
	}
	score = clampFloat(score, 0, 1)
	return decimal.NewFromFloat(score).Round(3).InexactFloat64()
}

func detectLayout(out RawOutput, classes int) (layout, error) {
	if len(out.Shape) != 3 || out.Shape[0] != 1 {
		return layout{}, xerrors.Errorf("unexpected output dims %v: %w", out.Shape, ErrInference)
	}

	a, b := int(out.Shape[1]), int(out.Shape[2])
	if a <= 0 || b <= 0 || a*b != len(out.Data) {
		return layout{}, xerrors.Errorf("output of %d values does not fit dims %v: %w", len(out.Data), out.Shape, ErrInference)
	}

	switch {
	case a == 4+classes:
		return layout{channelsFirst: true, attrs: a, anchors: b}, nil
	case b == 4+classes:
		return layout{attrs: b, anchors: a}, nil
	case b == 5+classes:
		return layout{objectness: true, attrs: b, anchors: a}, nil
	case a == 5+classes:
		return layout{channelsFirst: true, objectness: true, attrs: a, anchors: b}, nil
	}
	return layout{}, xerrors.Errorf("output dims %v do not match %d classes: %w", out.Shape, classes, ErrInference)
}

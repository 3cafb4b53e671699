package ai

import "math"

// LetterboxFill is the grey level used to pad letterboxed images.
const LetterboxFill = 114

// Backend runs the model on one encoded image. Implementations are not
// required to be safe for concurrent use; DetectorService gives each backend
// instance to a single worker.
type Backend interface {
	// Detect decodes the image and runs a forward pass. Decode failures wrap
	// ErrDecode; failures of the model wrap ErrInference.
	Detect(image []byte) (RawOutput, error)
	Close() error
	Name() string
}

// BackendFactory creates one backend instance per worker.
type BackendFactory func() (Backend, error)

// RawOutput is the untyped output tensor of a forward pass together with the
// geometry needed to map boxes back onto the uploaded image.
type RawOutput struct {
	Data      []float32
	Shape     []int64
	Letterbox Letterbox
}

// Letterbox describes an aspect-preserving resize of a Width x Height image
// into a Size x Size square, centred, with constant padding.
type Letterbox struct {
	Width, Height int // original image
	Size          int // square model input
	Gain          float64
	ScaledWidth   int
	ScaledHeight  int
	Left, Top     int
	Right, Bottom int
}

// NewLetterbox computes the resize and padding for an image.
func NewLetterbox(width, height, size int) Letterbox {
	lb := Letterbox{Width: width, Height: height, Size: size}
	if width <= 0 || height <= 0 || size <= 0 {
		return lb
	}

	lb.Gain = math.Min(float64(size)/float64(height), float64(size)/float64(width))
	lb.ScaledWidth = clampInt(int(math.Round(float64(width)*lb.Gain)), 1, size)
	lb.ScaledHeight = clampInt(int(math.Round(float64(height)*lb.Gain)), 1, size)

	dw := float64(size-lb.ScaledWidth) / 2
	dh := float64(size-lb.ScaledHeight) / 2
	lb.Left = int(math.Round(dw - 0.1))
	lb.Top = int(math.Round(dh - 0.1))
	lb.Right = size - lb.ScaledWidth - lb.Left
	lb.Bottom = size - lb.ScaledHeight - lb.Top
	return lb
}

// ToImage maps a box from model input space to original image pixels and
// clips it to the image bounds.
func (lb Letterbox) ToImage(box [4]float64) [4]float64 {
	if lb.Gain == 0 {
		return [4]float64{}
	}

	x1 := (box[0] - float64(lb.Left)) / lb.Gain
	y1 := (box[1] - float64(lb.Top)) / lb.Gain
	x2 := (box[2] - float64(lb.Left)) / lb.Gain
	y2 := (box[3] - float64(lb.Top)) / lb.Gain

	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}

	w, h := float64(lb.Width), float64(lb.Height)
	return [4]float64{
		clampFloat(x1, 0, w),
		clampFloat(y1, 0, h),
		clampFloat(x2, 0, w),
		clampFloat(y2, 0, h),
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

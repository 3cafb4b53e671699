// Package gocvnet runs detection models through the OpenCV DNN module.
package gocvnet

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/kozi00/wildfire-detect/internal/model"
	"github.com/kozi00/wildfire-detect/internal/service/ai"
	"gocv.io/x/gocv"
	"golang.org/x/xerrors"
)

// Name identifies this backend in logs and health output.
const Name = "gocv"

// Backend owns one OpenCV network. A gocv.Net is not thread-safe, so every
// worker needs its own Backend.
type Backend struct {
	net       gocv.Net
	imageSize int
}

// NewFactory returns an ai.BackendFactory that loads modelPath for every
// worker.
func NewFactory(modelPath string, meta *model.Metadata) ai.BackendFactory {
	return func() (ai.Backend, error) {
		return New(modelPath, meta.ImageSize)
	}
}

// New loads the network and sets backend/target preferences.
func New(modelPath string, imageSize int) (*Backend, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", modelPath)
	}

	net := gocv.ReadNet(modelPath, "")
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network from %s", modelPath)
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend or target")
	}

	return &Backend{net: net, imageSize: imageSize}, nil
}

// Name implements ai.Backend.
func (b *Backend) Name() string {
	return Name
}

// Detect decodes the image, letterboxes it to the model input and returns
// the raw output tensor.
func (b *Backend) Detect(imageBytes []byte) (ai.RawOutput, error) {
	mat, err := gocv.IMDecode(imageBytes, gocv.IMReadColor)
	if err != nil {
		return ai.RawOutput{}, xerrors.Errorf("imdecode: %v: %w", err, ai.ErrDecode)
	}
	defer mat.Close()

	if mat.Empty() {
		return ai.RawOutput{}, xerrors.Errorf("decoded image is empty: %w", ai.ErrDecode)
	}

	lb := ai.NewLetterbox(mat.Cols(), mat.Rows(), b.imageSize)

	input, err := letterbox(mat, lb)
	if err != nil {
		return ai.RawOutput{}, err
	}
	defer input.Close()

	// Create blob with parameters that fit the ultralytics export: RGB, 0..1
	blob := gocv.BlobFromImage(input, 1.0/255.0, image.Pt(b.imageSize, b.imageSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()
	if blob.Empty() {
		return ai.RawOutput{}, xerrors.Errorf("blob from %dx%d image is empty: %w", mat.Cols(), mat.Rows(), ai.ErrInference)
	}

	b.net.SetInput(blob, "")

	output := b.net.Forward("")
	defer output.Close()
	if output.Empty() {
		return ai.RawOutput{}, xerrors.Errorf("network returned no output: %w", ai.ErrInference)
	}

	data, err := output.DataPtrFloat32()
	if err != nil {
		return ai.RawOutput{}, xerrors.Errorf("read output: %v: %w", err, ai.ErrInference)
	}

	// The Mat owns data; copy before it is closed.
	values := make([]float32, len(data))
	copy(values, data)

	return ai.RawOutput{
		Data:      values,
		Shape:     outputShape(output.Size()),
		Letterbox: lb,
	}, nil
}

// Close releases the network.
func (b *Backend) Close() error {
	return b.net.Close()
}

// letterbox resizes mat into the scaled size of lb and pads it to a square.
func letterbox(mat gocv.Mat, lb ai.Letterbox) (gocv.Mat, error) {
	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(mat, &resized, image.Pt(lb.ScaledWidth, lb.ScaledHeight), 0, 0, gocv.InterpolationLinear)
	if resized.Empty() {
		return gocv.Mat{}, xerrors.Errorf("resize to %dx%d failed: %w", lb.ScaledWidth, lb.ScaledHeight, ai.ErrInference)
	}

	padded := gocv.NewMat()
	fill := color.RGBA{R: ai.LetterboxFill, G: ai.LetterboxFill, B: ai.LetterboxFill, A: 0}
	gocv.CopyMakeBorder(resized, &padded, lb.Top, lb.Bottom, lb.Left, lb.Right, gocv.BorderConstant, fill)
	if padded.Empty() {
		padded.Close()
		return gocv.Mat{}, xerrors.Errorf("padding to %d failed: %w", lb.Size, ai.ErrInference)
	}
	return padded, nil
}

// outputShape reports OpenCV dims as a batch-first tensor shape.
func outputShape(dims []int) []int64 {
	shape := make([]int64, 0, 3)
	if len(dims) == 2 {
		shape = append(shape, 1)
	}
	for _, d := range dims {
		shape = append(shape, int64(d))
	}
	return shape
}

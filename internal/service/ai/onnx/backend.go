// Package onnx runs detection models through ONNX Runtime.
package onnx

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"sync"

	"github.com/kozi00/wildfire-detect/internal/model"
	"github.com/kozi00/wildfire-detect/internal/service/ai"
	"github.com/nfnt/resize"
	ort "github.com/yalue/onnxruntime_go"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/xerrors"
)

// Name identifies this backend in logs and health output.
const Name = "onnx"

var (
	envOnce sync.Once
	envErr  error
)

// InitEnvironment loads the onnxruntime shared library once per process.
// An empty libraryPath uses the library's default lookup.
func InitEnvironment(libraryPath string) error {
	envOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			envErr = fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	})
	return envErr
}

// DestroyEnvironment releases the runtime after every session is destroyed.
func DestroyEnvironment() error {
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// Backend owns one session and its bound tensors. Run writes into the shared
// tensors, so a Backend serves one image at a time.
type Backend struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	outputShape  []int64
	imageSize    int
}

// NewFactory returns an ai.BackendFactory creating one session per worker.
func NewFactory(modelPath, libraryPath string, meta *model.Metadata) ai.BackendFactory {
	return func() (ai.Backend, error) {
		if err := InitEnvironment(libraryPath); err != nil {
			return nil, err
		}
		return New(modelPath, meta)
	}
}

// New creates a session with input and output tensors sized from meta.
func New(modelPath string, meta *model.Metadata) (*Backend, error) {
	outputDims := meta.OutputShape
	if len(outputDims) == 0 {
		outputDims = defaultOutputShape(meta.ImageSize, len(meta.Classes))
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(meta.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(outputDims...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{meta.InputNameOrDefault()}, []string{meta.OutputNameOrDefault()},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &Backend{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		outputShape:  outputDims,
		imageSize:    meta.ImageSize,
	}, nil
}

// Name implements ai.Backend.
func (b *Backend) Name() string {
	return Name
}

// Detect decodes the image, letterboxes it into the input tensor and runs the
// session.
func (b *Backend) Detect(imageBytes []byte) (ai.RawOutput, error) {
	img, format, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return ai.RawOutput{}, xerrors.Errorf("image decode: %v: %w", err, ai.ErrDecode)
	}

	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return ai.RawOutput{}, xerrors.Errorf("%s image has no pixels: %w", format, ai.ErrDecode)
	}

	lb := ai.NewLetterbox(bounds.Dx(), bounds.Dy(), b.imageSize)
	FillTensor(b.inputTensor.GetData(), img, lb)

	if err := b.session.Run(); err != nil {
		return ai.RawOutput{}, xerrors.Errorf("session run: %v: %w", err, ai.ErrInference)
	}

	output := b.outputTensor.GetData()
	values := make([]float32, len(output))
	copy(values, output)

	return ai.RawOutput{
		Data:      values,
		Shape:     b.outputShape,
		Letterbox: lb,
	}, nil
}

// Close destroys the session and its tensors.
func (b *Backend) Close() error {
	var firstErr error
	for _, destroy := range []func() error{b.session.Destroy, b.inputTensor.Destroy, b.outputTensor.Destroy} {
		if err := destroy(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// FillTensor writes img into dst as a letterboxed NCHW RGB tensor scaled to
// [0,1]. dst must hold 3*lb.Size*lb.Size values.
func FillTensor(dst []float32, img image.Image, lb ai.Letterbox) {
	area := lb.Size * lb.Size
	fill := float32(ai.LetterboxFill) / 255.0
	for i := range dst[:3*area] {
		dst[i] = fill
	}

	resized := resize.Resize(uint(lb.ScaledWidth), uint(lb.ScaledHeight), img, resize.Bilinear)
	rb := resized.Bounds()

	for y := 0; y < lb.ScaledHeight; y++ {
		for x := 0; x < lb.ScaledWidth; x++ {
			r, g, bl, _ := resized.At(rb.Min.X+x, rb.Min.Y+y).RGBA()

			pixelIndex := (y+lb.Top)*lb.Size + x + lb.Left
			dst[pixelIndex] = float32(r) / 65535.0
			dst[area+pixelIndex] = float32(g) / 65535.0
			dst[2*area+pixelIndex] = float32(bl) / 65535.0
		}
	}
}

// defaultOutputShape is the detection head of an ultralytics YOLOv8 export:
// 4 box values plus one score per class for every anchor of strides 8, 16, 32.
func defaultOutputShape(imageSize, classes int) []int64 {
	anchors := 0
	for _, stride := range []int{8, 16, 32} {
		cells := imageSize / stride
		anchors += cells * cells
	}
	return []int64{1, int64(4 + classes), int64(anchors)}
}

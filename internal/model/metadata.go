package model

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultImageSize is the square input resolution used when the metadata does
// not name one.
const DefaultImageSize = 640

// Tensor names of an ultralytics ONNX export.
const (
	DefaultInputName  = "images"
	DefaultOutputName = "output0"
)

// ErrMetadata reports an unreadable or inconsistent model metadata artifact.
var ErrMetadata = errors.New("invalid model metadata")

// Metadata describes the model artifact: its class names and tensor shapes.
type Metadata struct {
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
	InputName   string   `json:"input_name,omitempty"`
	OutputName  string   `json:"output_name,omitempty"`
}

// LoadMetadata reads the metadata that ships with the model. A .json file is
// parsed as Metadata; any other extension is read as a names file with one
// class label per line.
func LoadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata %s: %w", path, err)
	}

	var meta Metadata
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(data, &meta); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMetadata, path, err)
		}
	} else {
		meta.Classes = parseNames(data)
	}

	if err := meta.normalize(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMetadata, path, err)
	}
	return &meta, nil
}

// normalize fills defaults and checks that shapes agree with each other.
func (m *Metadata) normalize() error {
	if len(m.Classes) == 0 {
		return errors.New("no classes defined")
	}

	if m.ImageSize <= 0 {
		if len(m.InputShape) == 4 && m.InputShape[2] > 0 {
			m.ImageSize = int(m.InputShape[2])
		} else {
			m.ImageSize = DefaultImageSize
		}
	}

	if len(m.InputShape) == 0 {
		m.InputShape = []int64{1, 3, int64(m.ImageSize), int64(m.ImageSize)}
	}
	if len(m.InputShape) != 4 || m.InputShape[1] != 3 {
		return fmt.Errorf("input shape %v is not [1 3 H W]", m.InputShape)
	}
	if m.InputShape[2] != m.InputShape[3] || int(m.InputShape[2]) != m.ImageSize {
		return fmt.Errorf("input shape %v does not match image size %d", m.InputShape, m.ImageSize)
	}

	if len(m.OutputShape) != 0 && len(m.OutputShape) != 3 {
		return fmt.Errorf("output shape %v is not three dimensional", m.OutputShape)
	}
	return nil
}

// InputNameOrDefault returns the graph input name to bind.
func (m *Metadata) InputNameOrDefault() string {
	if m.InputName != "" {
		return m.InputName
	}
	return DefaultInputName
}

// OutputNameOrDefault returns the graph output name to bind.
func (m *Metadata) OutputNameOrDefault() string {
	if m.OutputName != "" {
		return m.OutputName
	}
	return DefaultOutputName
}

// Labels returns the immutable class index to name mapping.
func (m *Metadata) Labels() Labels {
	return NewLabels(m.Classes)
}

func parseNames(data []byte) []string {
	var names []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		if name := strings.TrimSpace(scanner.Text()); name != "" {
			names = append(names, name)
		}
	}
	return names
}

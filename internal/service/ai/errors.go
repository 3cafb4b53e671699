package ai

import "errors"

var (
	// ErrDecode means the uploaded bytes are not an image the backend can read.
	ErrDecode = errors.New("failed to decode image")
	// ErrInference means the model could not process a decoded image.
	ErrInference = errors.New("inference failed")
	// ErrUnavailable means the detector is closed or the caller gave up
	// waiting for a worker.
	ErrUnavailable = errors.New("detector unavailable")
)

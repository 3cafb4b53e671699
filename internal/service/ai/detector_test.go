package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/kozi00/wildfire-detect/internal/logger"
)

// stubBackend returns one fire detection whose centre x equals the first byte
// of the image, so callers can tell their results apart.
type stubBackend struct {
	mu     sync.Mutex
	busy   bool
	closed bool
	calls  int
	err    error
	panics bool
	block  chan struct{}
}

func (b *stubBackend) Detect(image []byte) (RawOutput, error) {
	b.mu.Lock()
	if b.busy {
		b.mu.Unlock()
		panic("backend used concurrently")
	}
	b.busy = true
	b.calls++
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.busy = false
		b.mu.Unlock()
	}()

	if b.block != nil {
		<-b.block
	}
	if b.panics {
		panic("corrupt model state")
	}
	if b.err != nil {
		return RawOutput{}, b.err
	}

	out := channelsFirst([][]float32{
		{float32(image[0]) + 100, 100, 20, 20, 0.9, 0},
	})
	return out, nil
}

func (b *stubBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *stubBackend) Name() string { return "stub" }

func newTestService(t *testing.T, workers int, backends ...*stubBackend) *DetectorService {
	t.Helper()

	next := 0
	factory := func() (Backend, error) {
		if next < len(backends) {
			b := backends[next]
			next++
			return b, nil
		}
		b := &stubBackend{}
		backends = append(backends, b)
		next++
		return b, nil
	}

	service, err := NewDetectorService(factory, testLabels, DefaultOptions(), workers, 4, logger.NewConsole(io.Discard, io.Discard))
	if err != nil {
		t.Fatalf("NewDetectorService failed: %v", err)
	}
	t.Cleanup(service.Close)
	return service
}

func TestDetectorService_Detect(t *testing.T) {
	service := newTestService(t, 1)

	detections, err := service.Detect(context.Background(), []byte{10})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(detections) != 1 {
		t.Fatalf("Expected 1 detection, got %d", len(detections))
	}
	if detections[0].Label != "fire" || detections[0].Confidence != 0.9 {
		t.Errorf("Unexpected detection: %+v", detections[0])
	}
	if detections[0].BBox != [4]float64{100, 90, 120, 110} {
		t.Errorf("Unexpected bbox: %v", detections[0].BBox)
	}
}

func TestDetectorService_EmptyUpload(t *testing.T) {
	service := newTestService(t, 1)

	_, err := service.Detect(context.Background(), nil)
	if !errors.Is(err, ErrDecode) {
		t.Errorf("Expected ErrDecode, got %v", err)
	}
}

func TestDetectorService_BackendErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"decode", fmt.Errorf("bad header: %w", ErrDecode), ErrDecode},
		{"inference", fmt.Errorf("shape: %w", ErrInference), ErrInference},
		{"unclassified", errors.New("opencv exploded"), ErrInference},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := newTestService(t, 1, &stubBackend{err: tt.err})

			detections, err := service.Detect(context.Background(), []byte{1})
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
			if detections != nil {
				t.Errorf("Expected no partial result, got %+v", detections)
			}
		})
	}
}

func TestDetectorService_RecoversFromPanic(t *testing.T) {
	backend := &stubBackend{panics: true}
	service := newTestService(t, 1, backend)

	if _, err := service.Detect(context.Background(), []byte{1}); !errors.Is(err, ErrInference) {
		t.Fatalf("Expected ErrInference after panic, got %v", err)
	}

	backend.mu.Lock()
	backend.panics = false
	backend.mu.Unlock()

	if _, err := service.Detect(context.Background(), []byte{1}); err != nil {
		t.Errorf("Worker did not survive panic: %v", err)
	}
}

func TestDetectorService_ConcurrentRequests(t *testing.T) {
	service := newTestService(t, 3)

	var wg sync.WaitGroup
	errs := make(chan error, 60)
	for i := 0; i < 60; i++ {
		wg.Add(1)
		go func(marker byte) {
			defer wg.Done()
			detections, err := service.Detect(context.Background(), []byte{marker})
			if err != nil {
				errs <- err
				return
			}
			if len(detections) != 1 || detections[0].BBox[0] != float64(marker)+90 {
				errs <- fmt.Errorf("request %d got foreign result %+v", marker, detections)
			}
		}(byte(i))
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestDetectorService_Idempotent(t *testing.T) {
	service := newTestService(t, 2)

	first, err := service.Detect(context.Background(), []byte{42})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	second, err := service.Detect(context.Background(), []byte{42})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("Results differ: %+v vs %+v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("Detection %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestDetectorService_ContextCancelled(t *testing.T) {
	backend := &stubBackend{block: make(chan struct{})}
	service := newTestService(t, 1, backend)
	defer close(backend.block)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := service.Detect(ctx, []byte{1})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}
}

func TestDetectorService_Close(t *testing.T) {
	backend := &stubBackend{}
	service := newTestService(t, 1, backend)

	service.Close()
	service.Close()

	if !backend.closed {
		t.Error("Backend was not closed")
	}
	if _, err := service.Detect(context.Background(), []byte{1}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable after Close, got %v", err)
	}
}

func TestNewDetectorService_FactoryError(t *testing.T) {
	created := &stubBackend{}
	calls := 0
	factory := func() (Backend, error) {
		calls++
		if calls == 1 {
			return created, nil
		}
		return nil, errors.New("model file not found")
	}

	_, err := NewDetectorService(factory, testLabels, DefaultOptions(), 2, 1, logger.NewConsole(io.Discard, io.Discard))
	if err == nil {
		t.Fatal("Expected error from factory")
	}
	if !created.closed {
		t.Error("Already created backend was not closed")
	}
}

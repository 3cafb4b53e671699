package ai

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kozi00/wildfire-detect/internal/dto"
	"github.com/kozi00/wildfire-detect/internal/logger"
	"github.com/kozi00/wildfire-detect/internal/model"
	"golang.org/x/xerrors"
)

// DetectorService runs object detection on uploaded images.
//
// Model instances are not safe for concurrent use, so the service owns one
// backend per worker and feeds the workers from a bounded queue. With a single
// worker every inference call is serialized.
type DetectorService struct {
	backends []Backend
	labels   model.Labels
	options  Options
	logger   *logger.Logger

	processingQueue chan detectionTask
	wg              sync.WaitGroup

	mu     sync.RWMutex // guards closed and sends on processingQueue
	closed bool
}

type detectionTask struct {
	ctx   context.Context
	image []byte
	reply chan detectionReply
}

type detectionReply struct {
	detections []dto.Detection
	err        error
}

// NewDetectorService creates workers backends from factory and starts them.
func NewDetectorService(factory BackendFactory, labels model.Labels, options Options, workers, queueSize int, logger *logger.Logger) (*DetectorService, error) {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	backends := make([]Backend, 0, workers)
	for i := 0; i < workers; i++ {
		backend, err := factory() // each worker loads its own model
		if err != nil {
			for _, b := range backends {
				b.Close()
			}
			return nil, xerrors.Errorf("worker %d: %w", i, err)
		}
		backends = append(backends, backend)
	}

	service := &DetectorService{
		backends:        backends,
		labels:          labels,
		options:         options,
		logger:          logger,
		processingQueue: make(chan detectionTask, queueSize),
	}

	for i := range backends {
		service.wg.Add(1)
		go service.processingWorker(i)
	}

	logger.Info("Detector started: backend=%s workers=%d classes=%d", backends[0].Name(), workers, labels.Len())
	return service, nil
}

// Detect decodes image, runs the model and returns the detections in the
// order the model reports them. It blocks until a worker is free, the result
// is ready or ctx is done.
func (s *DetectorService) Detect(ctx context.Context, image []byte) ([]dto.Detection, error) {
	if len(image) == 0 {
		return nil, xerrors.Errorf("empty upload: %w", ErrDecode)
	}

	task := detectionTask{
		ctx:   ctx,
		image: image,
		reply: make(chan detectionReply, 1),
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrUnavailable
	}
	select {
	case s.processingQueue <- task:
		s.mu.RUnlock()
	case <-ctx.Done():
		s.mu.RUnlock()
		return nil, xerrors.Errorf("waiting for a worker: %v: %w", ctx.Err(), ErrUnavailable)
	}

	select {
	case reply := <-task.reply:
		return reply.detections, reply.err
	case <-ctx.Done():
		return nil, xerrors.Errorf("waiting for inference: %v: %w", ctx.Err(), ErrUnavailable)
	}
}

// BackendName reports which model runtime serves requests.
func (s *DetectorService) BackendName() string {
	return s.backends[0].Name()
}

// Workers reports the number of model instances.
func (s *DetectorService) Workers() int {
	return len(s.backends)
}

// Labels returns the class mapping of the loaded model.
func (s *DetectorService) Labels() model.Labels {
	return s.labels
}

// Close stops accepting work, waits for queued tasks and releases the models.
func (s *DetectorService) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.processingQueue)
	s.mu.Unlock()

	s.wg.Wait()
	for i, backend := range s.backends {
		if err := backend.Close(); err != nil {
			s.logger.Error("Failed to close backend %d: %v", i, err)
		}
	}
	s.logger.Info("All detection workers stopped")
}

// processingWorker serves tasks with the backend it owns.
func (s *DetectorService) processingWorker(workerID int) {
	defer s.wg.Done()

	for task := range s.processingQueue {
		if err := task.ctx.Err(); err != nil {
			task.reply <- detectionReply{err: xerrors.Errorf("request abandoned: %v: %w", err, ErrUnavailable)}
			continue
		}

		start := time.Now()
		detections, err := s.process(workerID, task.image)
		if err != nil {
			s.logger.Warning("Worker %d: detection failed after %v: %+v", workerID, time.Since(start), err)
		} else {
			s.logger.Info("Worker %d: %d object(s) in %v", workerID, len(detections), time.Since(start))
		}
		task.reply <- detectionReply{detections: detections, err: err}
	}
}

// process runs one image through the worker's backend. A panic in the
// backend is reported as an inference failure.
func (s *DetectorService) process(workerID int, image []byte) (detections []dto.Detection, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Worker %d: recovered from panic: %v", workerID, r)
			detections = nil
			err = xerrors.Errorf("backend panic: %v: %w", r, ErrInference)
		}
	}()

	raw, err := s.backends[workerID].Detect(image)
	if err != nil {
		if errors.Is(err, ErrDecode) || errors.Is(err, ErrInference) {
			return nil, err
		}
		return nil, xerrors.Errorf("%v: %w", err, ErrInference)
	}

	return DecodeOutput(raw, s.labels, s.options)
}

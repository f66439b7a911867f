package cancel

import (
	"context"
	"sync"
	"time"

	"github.com/kart-io/summaryhub/pkg/batch"
	"github.com/kart-io/summaryhub/pkg/config"
	"github.com/kart-io/summaryhub/pkg/errors"
	"github.com/kart-io/summaryhub/pkg/logger"
	"github.com/kart-io/summaryhub/pkg/notify"
	"github.com/kart-io/summaryhub/pkg/utils/clock"
)

// PartialSaver persists a partial result for a batch during graceful
// cancellation. Provided by the orchestrator so this package stays free
// of batch internals.
type PartialSaver func(ctx context.Context, batchID, owner string) (partialID string, err error)

// entry is the per-batch cancellation state
type entry struct {
	token        *Token
	request      *batch.CancellationRequest
	result       *batch.CancellationResult
	registeredAt time.Time
}

// Service registers batches and executes cancellation requests
type Service struct {
	config config.CancellationConfig
	clock  clock.Clock
	logger logger.Logger
	sink   notify.Sink
	saver  PartialSaver

	mutex   sync.Mutex
	entries map[string]*entry
}

// NewService creates a cancellation service
func NewService(cfg config.CancellationConfig, saver PartialSaver, sink notify.Sink, clk clock.Clock, log logger.Logger) *Service {
	if clk == nil {
		clk = clock.Real
	}
	if log == nil {
		log = logger.Discard
	}
	if sink == nil {
		sink = notify.NopSink{}
	}
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = 30 * time.Second
	}
	if cfg.CheckpointPoll <= 0 {
		cfg.CheckpointPoll = 100 * time.Millisecond
	}
	return &Service{
		config:  cfg,
		clock:   clk,
		logger:  log,
		sink:    sink,
		saver:   saver,
		entries: make(map[string]*entry),
	}
}

// Register installs cancellation state for a batch and returns the token
// the orchestrator must observe. Registering an already-known batch
// returns the existing token.
func (s *Service) Register(batchID string, parent context.Context) *Token {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if existing, ok := s.entries[batchID]; ok {
		return existing.token
	}

	token := newToken(parent)
	s.entries[batchID] = &entry{token: token, registeredAt: s.clock.Now()}
	return token
}

// Unregister removes a batch's cancellation state and releases its token
func (s *Service) Unregister(batchID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if e, ok := s.entries[batchID]; ok {
		e.token.release()
		delete(s.entries, batchID)
	}
}

// IsRequested reports whether cancellation was requested for a batch
func (s *Service) IsRequested(batchID string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if e, ok := s.entries[batchID]; ok {
		return e.token.Requested()
	}
	return false
}

// Token returns the batch's token, or nil when unknown
func (s *Service) Token(batchID string) *Token {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if e, ok := s.entries[batchID]; ok {
		return e.token
	}
	return nil
}

// SetCheckpoint marks or clears the safe-checkpoint flag for a batch
func (s *Service) SetCheckpoint(batchID string, safe bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if e, ok := s.entries[batchID]; ok {
		e.token.SetCheckpoint(safe)
	}
}

// Request executes a cancellation. Repeated requests for the same batch
// are idempotent: the recorded result is returned with no further side
// effects.
func (s *Service) Request(ctx context.Context, req batch.CancellationRequest) (batch.CancellationResult, error) {
	s.mutex.Lock()
	e, ok := s.entries[req.BatchID]
	if !ok {
		s.mutex.Unlock()
		return batch.CancellationResult{}, errors.New(errors.ErrBatchNotFound, "batch is not registered for cancellation").WithBatch(req.BatchID)
	}
	if e.result != nil {
		result := *e.result
		s.mutex.Unlock()
		return result, nil
	}
	if e.request == nil {
		reqCopy := req
		e.request = &reqCopy
	}
	token := e.token
	s.mutex.Unlock()

	s.sink.CancellationRequested(req.BatchID, req)
	token.signal(req.Force)

	start := s.clock.Now()
	var result batch.CancellationResult
	if req.Force {
		result = s.forceCancel(req)
	} else {
		result = s.gracefulCancel(ctx, req, token, start)
	}

	s.audit(req, result)

	s.mutex.Lock()
	if e.result == nil {
		stored := result
		e.result = &stored
	} else {
		// A concurrent request won the race; return its outcome
		result = *e.result
	}
	s.mutex.Unlock()

	return result, nil
}

// gracefulCancel waits for a safe checkpoint bounded by the configured
// deadline, then optionally saves a partial result
func (s *Service) gracefulCancel(ctx context.Context, req batch.CancellationRequest, token *Token, start time.Time) batch.CancellationResult {
	deadline := start.Add(s.config.GracefulTimeout)

	reachedCheckpoint := token.AtCheckpoint()
	for !reachedCheckpoint && s.clock.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return batch.CancellationResult{
				BatchID: req.BatchID,
				Success: false,
				Message: "cancellation aborted: " + ctx.Err().Error(),
			}
		case <-s.clock.After(s.config.CheckpointPoll):
		}
		reachedCheckpoint = token.AtCheckpoint()
	}
	if !reachedCheckpoint {
		s.logger.Warn("Graceful cancellation timed out waiting for checkpoint",
			"batchId", req.BatchID, "timeout", s.config.GracefulTimeout)
	}

	result := batch.CancellationResult{
		BatchID:            req.BatchID,
		Success:            true,
		GracefulDurationMs: s.clock.Now().Sub(start).Milliseconds(),
	}

	if req.SavePartial && s.saver != nil {
		partialID, err := s.saver(ctx, req.BatchID, req.Owner)
		if err != nil {
			s.logger.Error("Failed to save partial result during cancellation",
				"batchId", req.BatchID, "error", err)
			result.Message = "cancelled; partial result could not be saved"
		} else {
			result.PartialSaved = true
			result.PartialResultID = partialID
		}
	}

	return result
}

// forceCancel tears down immediately; no partial result is saved
func (s *Service) forceCancel(req batch.CancellationRequest) batch.CancellationResult {
	return batch.CancellationResult{
		BatchID: req.BatchID,
		Success: true,
		Forced:  true,
	}
}

// audit emits the structured cancellation record
func (s *Service) audit(req batch.CancellationRequest, result batch.CancellationResult) {
	s.logger.Info("Cancellation processed",
		"batchId", req.BatchID,
		"owner", req.Owner,
		"reason", req.Reason,
		"comment", req.Comment,
		"force", req.Force,
		"savePartial", req.SavePartial,
		"success", result.Success,
		"partialSaved", result.PartialSaved,
		"partialResultId", result.PartialResultID,
		"gracefulDurationMs", result.GracefulDurationMs)
}

// Registered returns the ids of all currently registered batches,
// used by the recovery scanner
func (s *Service) Registered() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	return ids
}

package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/upb/authcore/models"
	"github.com/upb/authcore/repositories"
	"go.uber.org/zap"
)

// AuditService handles asynchronous audit logging
type AuditService struct {
	auditRepo    repositories.AuditRepository
	logger       *zap.Logger
	eventChan    chan *models.AuditLog
	workerCount  int
	bufferSize   int
	writeTimeout time.Duration
	wg           sync.WaitGroup
	ctx          context.Context
	cancel       context.CancelFunc
	started      bool
	stopped      bool
	mu           sync.RWMutex
}

// Config holds configuration for the AuditService
type Config struct {
	BufferSize   int           // Size of the event buffer channel
	WorkerCount  int           // Number of concurrent workers
	WriteTimeout time.Duration // Per-insert timeout
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:   1000,
		WorkerCount:  2,
		WriteTimeout: 5 * time.Second,
	}
}

// NewAuditService creates a new AuditService instance
func NewAuditService(auditRepo repositories.AuditRepository, logger *zap.Logger, config Config) *AuditService {
	defaults := DefaultConfig()
	if config.BufferSize <= 0 {
		config.BufferSize = defaults.BufferSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = defaults.WorkerCount
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &AuditService{
		auditRepo:    auditRepo,
		logger:       logger,
		eventChan:    make(chan *models.AuditLog, config.BufferSize),
		workerCount:  config.WorkerCount,
		bufferSize:   config.BufferSize,
		writeTimeout: config.WriteTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start starts the background workers
func (s *AuditService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("audit service already started")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started audit service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop gracefully stops the audit service.
// Pending events are flushed until the timeout elapses.
func (s *AuditService) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("audit service not running")
	}
	s.stopped = true
	s.logger.Info("stopping audit service", zap.Int("pending_events", len(s.eventChan)))
	close(s.eventChan)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit service stopped gracefully")
		s.cancel()
		return nil
	case <-time.After(timeout):
		s.cancel()
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// LogEvent queues an entry without blocking. A full buffer drops the entry.
func (s *AuditService) LogEvent(log *models.AuditLog) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started || s.stopped {
		return fmt.Errorf("audit service not running")
	}

	select {
	case s.eventChan <- log:
		return nil
	default:
		s.logger.Warn("audit event channel full, dropping event",
			zap.String("action", string(log.Action)),
			zap.String("request_id", log.RequestID))
		return fmt.Errorf("audit event buffer full")
	}
}

// worker processes events from the channel
func (s *AuditService) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("audit worker started", zap.Int("worker_id", id))

	for log := range s.eventChan {
		if err := s.processEvent(log); err != nil {
			s.logger.Error("failed to process audit event",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("action", string(log.Action)),
				zap.String("request_id", log.RequestID))
		}
	}

	s.logger.Debug("audit worker stopped", zap.Int("worker_id", id))
}

// processEvent processes a single audit event
func (s *AuditService) processEvent(log *models.AuditLog) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()

	if err := s.auditRepo.Insert(ctx, log); err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	return nil
}

// Convenience methods for logging authentication events. Request metadata is
// taken from ctx (see WithRequestMeta). Queue errors are logged, not returned.

// LogRegistration records a successful registration.
func (s *AuditService) LogRegistration(ctx context.Context, user *models.User) {
	log := models.NewAuditLog(models.AuditActionUserRegistered, models.AuditOutcomeSuccess).
		WithActor(user.ID).
		WithSubject(user.ID).
		WithEmail(user.Email).
		WithDetails(map[string]interface{}{"role": user.Role.String()})
	s.enqueue(ctx, log)
}

// LogRegistrationFailed records a rejected registration attempt.
func (s *AuditService) LogRegistrationFailed(ctx context.Context, email, reason string) {
	log := models.NewAuditLog(models.AuditActionRegistrationFailed, models.AuditOutcomeFailure).
		WithEmail(email).
		WithDetails(map[string]interface{}{"reason": reason})
	s.enqueue(ctx, log)
}

// LogLogin records a successful login.
func (s *AuditService) LogLogin(ctx context.Context, user *models.User) {
	log := models.NewAuditLog(models.AuditActionLoginSucceeded, models.AuditOutcomeSuccess).
		WithActor(user.ID).
		WithSubject(user.ID).
		WithEmail(user.Email)
	s.enqueue(ctx, log)
}

// LogLoginFailed records a failed login. The reason is never sent to the client.
func (s *AuditService) LogLoginFailed(ctx context.Context, email, reason string) {
	log := models.NewAuditLog(models.AuditActionLoginFailed, models.AuditOutcomeFailure).
		WithEmail(email).
		WithDetails(map[string]interface{}{"reason": reason})
	s.enqueue(ctx, log)
}

// LogProfileUpdated records a profile change made by the user themself.
func (s *AuditService) LogProfileUpdated(ctx context.Context, user *models.User, changes map[string]interface{}) {
	log := models.NewAuditLog(models.AuditActionProfileUpdated, models.AuditOutcomeSuccess).
		WithActor(user.ID).
		WithSubject(user.ID).
		WithEmail(user.Email).
		WithDetails(map[string]interface{}{"changes": changes})
	s.enqueue(ctx, log)
}

// LogUserDeleted records an administrative deletion.
func (s *AuditService) LogUserDeleted(ctx context.Context, actorID uuid.UUID, deleted *models.User) {
	log := models.NewAuditLog(models.AuditActionUserDeleted, models.AuditOutcomeSuccess).
		WithActor(actorID).
		WithSubject(deleted.ID).
		WithEmail(deleted.Email)
	s.enqueue(ctx, log)
}

// LogAccessDenied records a guard rejection.
func (s *AuditService) LogAccessDenied(ctx context.Context, actorID uuid.UUID, operation, requiredRole string) {
	log := models.NewAuditLog(models.AuditActionAccessDenied, models.AuditOutcomeFailure).
		WithActor(actorID).
		WithDetails(map[string]interface{}{
			"operation":     operation,
			"required_role": requiredRole,
		})
	s.enqueue(ctx, log)
}

func (s *AuditService) enqueue(ctx context.Context, log *models.AuditLog) {
	log.WithRequest(RequestMetaFromContext(ctx))
	if err := s.LogEvent(log); err != nil {
		s.logger.Warn("audit event not recorded",
			zap.String("action", string(log.Action)),
			zap.Error(err))
	}
}

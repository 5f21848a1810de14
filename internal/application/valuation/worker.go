package valuation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/turtacn/DealScope/internal/infrastructure/database/redis"
	"github.com/turtacn/DealScope/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/DealScope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DealScope/pkg/errors"
)

// DefaultJobLockTTL is how long a processed job ID stays claimed.  A
// redelivery inside this window is skipped.
const DefaultJobLockTTL = 10 * time.Minute

// Locker is satisfied by *redis.LockFactory.
type Locker interface {
	NewMutex(name string, opts ...redis.LockOption) redis.Mutex
}

// JobHandler consumes valuation.requested messages.
type JobHandler struct {
	svc     *Service
	locks   Locker
	lockTTL time.Duration
	logger  logging.Logger
}

// NewJobHandler returns a handler for svc.  A nil locker disables
// de-duplication.
func NewJobHandler(svc *Service, locks Locker, lockTTL time.Duration, logger logging.Logger) *JobHandler {
	if lockTTL <= 0 {
		lockTTL = DefaultJobLockTTL
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &JobHandler{svc: svc, locks: locks, lockTTL: lockTTL, logger: logger.Named("valuation-worker")}
}

// Handle runs one job.  Malformed and invalid jobs are answered with a
// failed valuation.completed event and acknowledged; infrastructure errors
// are returned so the consumer retries them.
func (h *JobHandler) Handle(ctx context.Context, msg *kafka.Message) error {
	env, err := kafka.MessageToEventEnvelope(msg)
	if err != nil {
		h.logger.Warn("Dropping malformed job message", logging.Int64("offset", msg.Offset), logging.Err(err))
		return nil
	}
	var p kafka.ValuationRequestedPayload
	if err := env.DecodePayload(&p); err != nil || p.JobID == "" {
		h.logger.Warn("Dropping job without payload", logging.String("event_id", env.EventID), logging.Err(err))
		return nil
	}
	if env.RequestID != "" {
		ctx = logging.WithRequestID(ctx, env.RequestID)
	}
	log := h.logger.With(logging.String("job_id", p.JobID), logging.String("pitch_id", p.Scope.PitchID))

	var mu redis.Mutex
	if h.locks != nil {
		mu = h.locks.NewMutex("job:"+p.JobID, redis.WithLockTTL(h.lockTTL))
		ok, lockErr := mu.TryLock(ctx)
		switch {
		case lockErr != nil:
			log.Warn("Job lock unavailable, processing without de-duplication", logging.Err(lockErr))
			mu = nil
		case !ok:
			log.Info("Skipping duplicate job delivery")
			return nil
		}
	}

	var req ValuateRequest
	if err := json.Unmarshal(p.Request, &req); err != nil {
		h.reject(ctx, p, errors.InvalidInput("malformed valuation job").WithCause(err))
		return nil
	}
	rc := RequestContext{OrgID: p.Scope.OrgID, UserID: p.Scope.UserID, PitchID: p.Scope.PitchID}

	start := time.Now()
	resp, err := h.svc.valuate(ctx, rc, &req, p.JobID)
	if err != nil {
		if errors.IsValidation(err) {
			h.reject(ctx, p, err)
			return nil
		}
		// Release the claim so the retry is not mistaken for a duplicate.
		if mu != nil {
			if uerr := mu.Unlock(context.WithoutCancel(ctx)); uerr != nil {
				log.Warn("Failed to release job lock", logging.Err(uerr))
			}
		}
		log.Error("Valuation job failed", logging.Err(err))
		return err
	}
	log.Info("Valuation job completed",
		logging.String("run_id", resp.RunID),
		logging.Duration("duration", time.Since(start)),
	)
	return nil
}

func (h *JobHandler) reject(ctx context.Context, p kafka.ValuationRequestedPayload, cause error) {
	h.logger.Warn("Rejecting valuation job", logging.String("job_id", p.JobID), logging.Err(cause))
	h.svc.notifier.Notify(ctx, kafka.TopicValuationCompleted, kafka.EventValuationCompleted, p.Scope.PitchID, kafka.ValuationCompletedPayload{
		JobID:       p.JobID,
		Scope:       p.Scope,
		Error:       cause.Error(),
		CompletedAt: time.Now().UTC(),
	})
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nerdherd/push-relay/internal/domain"
	"github.com/nerdherd/push-relay/internal/provider"
	"github.com/nerdherd/push-relay/internal/repository"
	"github.com/nerdherd/push-relay/internal/token"
)

// Stage is a state of the per-request push pipeline.
type Stage string

const (
	StageReceived        Stage = "RECEIVED"
	StageValidated       Stage = "VALIDATED"
	StageTargetResolved  Stage = "TARGET_RESOLVED"
	StageCredentialReady Stage = "CREDENTIAL_READY"
	StageTokenAcquired   Stage = "TOKEN_ACQUIRED"
	StageDelivered       Stage = "DELIVERED"
	StageTargetAbsent    Stage = "TARGET_ABSENT"
	StageFailed          Stage = "FAILED"
)

// Result is the terminal state of one Push call.
type Result struct {
	Stage Stage
	// Reached is the last successful stage before a failure.
	Reached Stage
	// Kind classifies a failure; empty unless Stage is FAILED.
	Kind    string
	Outcome *domain.DeliveryOutcome
}

// CredentialLoader yields the service account for one invocation.
type CredentialLoader interface {
	Load(ctx context.Context) (*domain.ServiceAccount, error)
}

// Waiter throttles outbound sends.
type Waiter interface {
	Wait(ctx context.Context) error
}

// MetricHooks are optional observation callbacks; nil fields are skipped.
type MetricHooks struct {
	OnFinish     func(stage string, latency time.Duration)
	OnDelivered  func(statusCode int)
	OnSuppressed func()
}

// Deps bundles the collaborators of PushService.
type Deps struct {
	Targets    repository.TargetRepository
	Deliveries repository.DeliveryRepository
	Suppressor repository.Suppressor
	Credential CredentialLoader
	Tokens     token.Source
	Provider   provider.Provider
	Limiter    Waiter
	BundleID   string
	Hooks      MetricHooks
}

// PushService runs the push pipeline. Every step of a request is sequential;
// concurrent requests share nothing but the injected collaborators.
type PushService struct {
	deps   Deps
	logger *zap.Logger
}

func NewPushService(deps Deps, logger *zap.Logger) *PushService {
	if deps.Suppressor == nil {
		deps.Suppressor = repository.NopSuppressor{}
	}
	return &PushService{deps: deps, logger: logger}
}

// Push delivers req to the recipient's device. A recipient without a device
// token ends in TARGET_ABSENT with a nil error. On failure the returned
// Result is still populated so callers can log where the pipeline stopped.
func (s *PushService) Push(ctx context.Context, req *domain.PushRequest) (*Result, error) {
	start := time.Now()
	log := s.logger.With(
		zap.String("user_id", req.UserID),
		zap.String("correlation_id", req.CorrelationID),
	)
	reached := StageReceived

	fail := func(err error) (*Result, error) {
		res := &Result{Stage: StageFailed, Reached: reached, Kind: failureKind(err)}
		log.Error("push failed",
			zap.String("stage", string(reached)),
			zap.String("kind", res.Kind),
			zap.Error(err),
		)
		s.finish(res, start)
		return res, err
	}

	if err := req.Validate(); err != nil {
		return fail(err)
	}
	reached = StageValidated

	target, err := s.deps.Targets.FCMToken(ctx, req.UserID)
	if errors.Is(err, domain.ErrNoTarget) {
		log.Info("no FCM token for user")
		return s.absent(start), nil
	}
	if err != nil {
		return fail(fmt.Errorf("resolve target: %w", err))
	}
	if suppressed, err := s.deps.Suppressor.IsSuppressed(ctx, target); err != nil {
		log.Warn("suppression lookup failed, delivering anyway", zap.Error(err))
	} else if suppressed {
		log.Info("device token suppressed after unregistered response")
		return s.absent(start), nil
	}
	reached = StageTargetResolved

	sa, err := s.deps.Credential.Load(ctx)
	if err != nil {
		return fail(err)
	}
	if sa.ProjectID == "" {
		return fail(domain.ErrMissingProject)
	}
	reached = StageCredentialReady

	tok, err := s.deps.Tokens.Token(ctx, sa)
	if err != nil {
		return fail(err)
	}
	reached = StageTokenAcquired

	// A request cancelled while the token was being fetched must not send.
	if err := ctx.Err(); err != nil {
		return fail(fmt.Errorf("request ended before delivery: %w", err))
	}

	msg := provider.Compose(req, target, s.deps.BundleID)
	if s.deps.Limiter != nil {
		if err := s.deps.Limiter.Wait(ctx); err != nil {
			return fail(fmt.Errorf("wait for send slot: %w", err))
		}
	}

	out, err := s.deps.Provider.Send(ctx, sa.ProjectID, tok, msg)
	if err != nil {
		return fail(fmt.Errorf("deliver: %w", err))
	}
	if s.deps.Hooks.OnDelivered != nil {
		s.deps.Hooks.OnDelivered(out.StatusCode)
	}

	s.record(ctx, log, req, out)
	if provider.IsUnregistered(out) {
		s.suppress(ctx, log, target)
	}

	res := &Result{Stage: StageDelivered, Reached: StageDelivered, Outcome: out}
	log.Info("push delivered", zap.Int("status", out.StatusCode))
	s.finish(res, start)
	return res, nil
}

func (s *PushService) absent(start time.Time) *Result {
	res := &Result{Stage: StageTargetAbsent, Reached: StageValidated}
	s.finish(res, start)
	return res
}

func (s *PushService) finish(res *Result, start time.Time) {
	if s.deps.Hooks.OnFinish != nil {
		s.deps.Hooks.OnFinish(string(res.Stage), time.Since(start))
	}
}

// record writes the audit row. It never changes the relayed response.
func (s *PushService) record(ctx context.Context, log *zap.Logger, req *domain.PushRequest, out *domain.DeliveryOutcome) {
	if s.deps.Deliveries == nil {
		return
	}
	rec := &domain.DeliveryRecord{
		ID:            uuid.New().String(),
		UserID:        req.UserID,
		StatusCode:    out.StatusCode,
		Response:      out.Body,
		CorrelationID: req.CorrelationID,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.deps.Deliveries.Record(context.WithoutCancel(ctx), rec); err != nil {
		log.Warn("failed to record delivery", zap.Error(err))
	}
}

func (s *PushService) suppress(ctx context.Context, log *zap.Logger, target string) {
	if err := s.deps.Suppressor.Suppress(context.WithoutCancel(ctx), target); err != nil {
		log.Warn("failed to suppress unregistered token", zap.Error(err))
		return
	}
	if s.deps.Hooks.OnSuppressed != nil {
		s.deps.Hooks.OnSuppressed()
	}
	log.Info("device token unregistered, suppressed")
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrMissingRecipient), errors.Is(err, domain.ErrInvalidBody):
		return "validation"
	case errors.Is(err, domain.ErrMissingCredential),
		errors.Is(err, domain.ErrIncompleteAccount),
		errors.Is(err, domain.ErrMissingProject):
		return "config"
	case errors.Is(err, domain.ErrCredentialParse):
		return "credential_parse"
	case errors.Is(err, domain.ErrKeyImport):
		return "key_import"
	case errors.Is(err, domain.ErrTokenExchange):
		return "token_exchange"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "internal"
	}
}

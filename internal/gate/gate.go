// Package gate is the single entry point every plant identification passes
// through. It combines the subscription ledger, the quota manager and the
// entitlement policy into one decision per attempt.
package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"plantscan/internal/clock"
	"plantscan/internal/domain"
	"plantscan/internal/entitlement"
	"plantscan/internal/quota"
	"plantscan/internal/subscription"
)

// DefaultIdentifyTimeout bounds a single provider call.
const DefaultIdentifyTimeout = 30 * time.Second

// Identifier is the recognition provider.
type Identifier interface {
	Identify(ctx context.Context, image domain.ImageHandle) (*domain.Identification, error)
}

// Options configures optional collaborators of a Gate.
type Options struct {
	IdentifyTimeout time.Duration
	Usage           domain.UsageRecorder
	Garden          domain.GardenRepository
}

// Gate evaluates entitlement on every attempt; no decision is reused.
type Gate struct {
	ledger  *subscription.Ledger
	quota   *quota.Manager
	policy  *entitlement.Policy
	clock   clock.Source
	logger  zerolog.Logger
	timeout time.Duration
	usage   domain.UsageRecorder
	garden  domain.GardenRepository
}

// New builds a Gate.
func New(ledger *subscription.Ledger, qm *quota.Manager, policy *entitlement.Policy, src clock.Source, logger zerolog.Logger, opts Options) *Gate {
	if opts.IdentifyTimeout <= 0 {
		opts.IdentifyTimeout = DefaultIdentifyTimeout
	}
	return &Gate{
		ledger:  ledger,
		quota:   qm,
		policy:  policy,
		clock:   src,
		logger:  logger.With().Str("component", "gate").Logger(),
		timeout: opts.IdentifyTimeout,
		usage:   opts.Usage,
		garden:  opts.Garden,
	}
}

// TryIdentify decides whether subject may run one identification now.
//
// A counter that cannot be read denies the attempt with an error wrapping
// domain.ErrTransientStorage. A subscription that cannot be refreshed falls back
// to the last known-good tier, or Free when none is known.
func (g *Gate) TryIdentify(ctx context.Context, subject domain.Subject) (Decision, error) {
	if err := subject.Validate(); err != nil {
		return Decision{}, err
	}

	var (
		snap     subscription.Snapshot
		usage    quota.Usage
		staleSub bool
	)
	eg, egctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		snap, err = g.ledger.Refresh(egctx, subject)
		if err != nil {
			if !errors.Is(err, domain.ErrTransientStorage) {
				return err
			}
			staleSub = true
			g.logger.Warn().Err(err).Str("subject", subject.Key()).Str("tier", string(snap.Tier)).Msg("using last known entitlement")
		}
		return nil
	})
	eg.Go(func() error {
		var err error
		usage, err = g.quota.Usage(egctx, subject)
		return err
	})
	if err := eg.Wait(); err != nil {
		d := Decision{Used: usage.Used, DayKey: usage.DayKey}
		return d, err
	}

	rem := g.quota.Evaluate(usage, snap.Tier, snap.Status)
	d := Decision{
		Tier:             snap.Tier,
		Remaining:        rem.Remaining,
		Limit:            rem.Limit,
		Used:             rem.Used,
		DayKey:           rem.DayKey,
		StaleEntitlement: staleSub || snap.Stale,
	}
	switch {
	case rem.Allowed:
		d.Kind = KindAllowed
		d.Ticket = &Ticket{subject: subject, record: g.quota.RecordIdentification}
	case rem.Reason == entitlement.ReasonPaidExhausted:
		d.Kind = KindDeniedSubscriptionExhausted
		d.ResetsAt = clock.NextMidnight(g.clock.Now(), g.clock.Location(ctx))
	case rem.Reason == entitlement.ReasonFreeExhausted:
		d.Kind = KindDeniedFreeExhausted
		d.Remaining = 0
		d.CanEarnBonus = rem.CanEarnBonus
	default:
		g.logger.Error().Str("subject", subject.Key()).Str("tier", string(snap.Tier)).Str("status", string(snap.Status)).Msg("unrecognized entitlement; denying")
		return Decision{}, fmt.Errorf("%w: unrecognized entitlement %q/%q", domain.ErrConfiguration, snap.Tier, snap.Status)
	}
	return d, nil
}

// GetRemaining returns the display view of subject's allowance. Counts stay
// available (marked stale) when storage fails.
func (g *Gate) GetRemaining(ctx context.Context, subject domain.Subject) (quota.Remaining, subscription.Snapshot, error) {
	snap, err := g.ledger.Refresh(ctx, subject)
	if err != nil && !errors.Is(err, domain.ErrTransientStorage) {
		return quota.Remaining{}, snap, err
	}
	rem, qerr := g.quota.GetRemaining(ctx, subject, snap.Tier, snap.Status)
	return rem, snap, qerr
}

// RecordEarnedBonus records a fully watched rewarded ad.
func (g *Gate) RecordEarnedBonus(ctx context.Context, subject domain.Subject) (quota.Usage, bool, error) {
	return g.quota.RecordEarnedBonus(ctx, subject)
}

// Request is one identification attempt.
type Request struct {
	Image     domain.ImageHandle
	RequestID string
}

// Outcome is the result of Identify.
type Outcome struct {
	Decision       Decision
	Identification *domain.Identification
	Usage          quota.Usage
	// Counted reports whether the attempt consumed a scan.
	Counted bool
}

// Identify runs the full protocol for one attempt: decide, call the provider
// under a timeout, and confirm only a usable result. Provider rate limiting,
// failures and timeouts never consume quota. A denial is returned in the Outcome
// with a nil error.
func (g *Gate) Identify(ctx context.Context, subject domain.Subject, req Request, identifier Identifier) (Outcome, error) {
	start := time.Now()
	decision, err := g.TryIdentify(ctx, subject)
	if err != nil {
		g.audit(ctx, subject, req, "denied_error", false, start, map[string]any{"error": err.Error()})
		return Outcome{Decision: decision}, err
	}
	if !decision.Allowed() {
		g.audit(ctx, subject, req, string(decision.Kind), false, start, map[string]any{
			"used":           decision.Used,
			"limit":          decision.Limit,
			"can_earn_bonus": decision.CanEarnBonus,
		})
		return Outcome{Decision: decision}, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	result, err := identifier.Identify(callCtx, req.Image)
	timedOut := errors.Is(callCtx.Err(), context.DeadlineExceeded)
	cancel()
	if err != nil {
		switch {
		case ctx.Err() != nil:
			err = ctx.Err()
		case timedOut && !errors.Is(err, domain.ErrIdentificationTimeout):
			err = fmt.Errorf("%w: %w", domain.ErrIdentificationTimeout, err)
		}
		g.audit(ctx, subject, req, "provider_error", false, start, map[string]any{"error": err.Error()})
		return Outcome{Decision: decision}, err
	}
	if !result.Usable() {
		g.audit(ctx, subject, req, "no_match", false, start, nil)
		return Outcome{Decision: decision, Identification: result}, nil
	}

	out := Outcome{Decision: decision, Identification: result}
	out.Usage, out.Counted, err = decision.Ticket.Confirm(ctx)
	if err != nil {
		// The result is still returned; the scan goes uncounted.
		g.logger.Error().Err(err).Str("subject", subject.Key()).Str("request_id", req.RequestID).Msg("failed to record identification")
	}
	props := map[string]any{"suggestions": len(result.Suggestions), "counted": out.Counted}
	if len(result.Suggestions) > 0 {
		props["top"] = result.Suggestions[0].Name
		props["probability"] = result.Suggestions[0].Probability
	}
	g.audit(ctx, subject, req, "identified", true, start, props)
	return out, nil
}

func (g *Gate) audit(ctx context.Context, subject domain.Subject, req Request, eventType string, success bool, start time.Time, props map[string]any) {
	if g.usage == nil {
		return
	}
	ev := domain.UsageEvent{
		SubjectKey: subject.Key(),
		RequestID:  req.RequestID,
		EventType:  eventType,
		Success:    success,
		LatencyMS:  int(time.Since(start).Milliseconds()),
		Properties: props,
	}
	if err := g.usage.RecordUsage(context.WithoutCancel(ctx), ev); err != nil {
		g.logger.Warn().Err(err).Str("event", eventType).Msg("usage audit failed")
	}
}

package gate

import (
	"context"
	"sync"
	"time"

	"plantscan/internal/domain"
	"plantscan/internal/quota"
)

// Kind names a gate decision variant.
type Kind string

const (
	KindAllowed                     Kind = "allowed"
	KindDeniedSubscriptionExhausted Kind = "denied_subscription_exhausted"
	KindDeniedFreeExhausted         Kind = "denied_free_exhausted"
)

// Decision is the outcome of TryIdentify. Exactly one variant is populated:
// Allowed carries a Ticket, DeniedSubscriptionExhausted carries ResetsAt and
// DeniedFreeExhausted carries CanEarnBonus.
type Decision struct {
	Kind      Kind
	Tier      domain.PlanTier
	Remaining int
	Limit     int
	Used      int
	DayKey    string

	ResetsAt     time.Time
	CanEarnBonus bool
	Ticket       *Ticket

	// StaleEntitlement is set when the subscription could not be refreshed and
	// the last known-good tier was used.
	StaleEntitlement bool
}

// Allowed reports whether the caller may run the identification.
func (d Decision) Allowed() bool {
	return d.Kind == KindAllowed && d.Ticket != nil
}

// Ticket is handed out with an Allowed decision. Confirm must be called if and
// only if the identification produced a usable result. Abandoning a ticket
// consumes nothing.
type Ticket struct {
	subject domain.Subject
	record  func(context.Context, domain.Subject) (quota.Usage, error)

	once  sync.Once
	usage quota.Usage
	err   error
}

// Confirm counts the identification. Only the first call has an effect; later
// calls return the first result with counted=false.
func (t *Ticket) Confirm(ctx context.Context) (usage quota.Usage, counted bool, err error) {
	t.once.Do(func() {
		t.usage, t.err = t.record(ctx, t.subject)
		counted = t.err == nil
	})
	return t.usage, counted, t.err
}

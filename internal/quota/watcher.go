package quota

import (
	"context"
	"sync"
	"time"

	"plantscan/internal/domain"
)

// Watcher re-checks a subject's day key on an interval for the lifetime of a
// session. Stop must be called when the session ends.
type Watcher struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// WatchRollover starts a session watcher. onRollover is called from the watcher
// goroutine with the fresh usage each time the day advances past the last seen
// day. The watcher ends when ctx is done or Stop is called.
func (m *Manager) WatchRollover(ctx context.Context, subject domain.Subject, onRollover func(Usage)) *Watcher {
	ctx, cancel := context.WithCancel(ctx)
	w := &Watcher{cancel: cancel, done: make(chan struct{})}

	lastDay := m.clock.DayKey(ctx)
	if u, err := m.Usage(ctx, subject); err == nil && u.DayKey > lastDay {
		lastDay = u.DayKey
	}

	go func() {
		defer close(w.done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if m.clock.DayKey(ctx) <= lastDay {
					continue
				}
				u, err := m.Usage(ctx, subject)
				if err != nil {
					m.logger.Warn().Err(err).Str("subject", subject.Key()).Msg("rollover check failed")
					continue
				}
				lastDay = u.DayKey
				if onRollover != nil {
					onRollover(u)
				}
			}
		}
	}()
	return w
}

// Stop ends the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	w.once.Do(w.cancel)
	<-w.done
}

// Done is closed once the watcher has exited.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

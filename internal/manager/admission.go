package manager

import (
	"context"
	"time"
)

// admit reserves a queue slot and then the engine slot, giving up after
// maxWait. Returns a release func to be deferred.
func (m *Manager) admit(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}
	timer := time.NewTimer(m.maxWait)
	defer timer.Stop()
	select {
	case m.queueCh <- struct{}{}:
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer.C:
		return func() {}, ErrTooBusy(m.activeID())
	}

	acquired := false
	defer func() {
		if !acquired {
			<-m.queueCh
		}
	}()
	select {
	case m.slot <- struct{}{}:
		acquired = true
		return func() { <-m.slot; <-m.queueCh }, nil
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer.C:
		return func() {}, ErrTooBusy(m.activeID())
	}
}

// lock takes the engine slot without a deadline. Lifecycle operations use it:
// they may legitimately wait for a long generation to finish.
func (m *Manager) lock(ctx context.Context) (func(), error) {
	select {
	case m.slot <- struct{}{}:
		return func() { <-m.slot }, nil
	case <-ctx.Done():
		return func() {}, ctx.Err()
	}
}

package orchestrator

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Registry owns one cancellable background loop per draft.
type Registry struct {
	name string

	mu     sync.Mutex
	loops  map[uuid.UUID]*loop
	closed bool
	wg     sync.WaitGroup
}

type loop struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRegistry(name string) *Registry {
	return &Registry{
		name:  name,
		loops: make(map[uuid.UUID]*loop),
	}
}

// Start runs fn for draftID, first stopping and waiting for any loop already running for it.
// fn must return once its context is cancelled. Start must not be called from inside the loop
// it would replace.
func (r *Registry) Start(draftID uuid.UUID, fn func(ctx context.Context)) {
	r.mu.Lock()
	for {
		old, ok := r.loops[draftID]
		if !ok {
			break
		}
		delete(r.loops, draftID)
		old.cancel()
		r.mu.Unlock()
		<-old.done
		log.Debug().Str("registry", r.name).Str("draft_id", draftID.String()).Msg("replaced running loop")
		r.mu.Lock()
	}
	if r.closed {
		r.mu.Unlock()
		log.Warn().Str("registry", r.name).Str("draft_id", draftID.String()).Msg("registry shut down, loop not started")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &loop{cancel: cancel, done: make(chan struct{})}
	r.loops[draftID] = l
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer close(l.done)
		defer r.remove(draftID, l)
		defer cancel()
		fn(ctx)
	}()
}

// Stop cancels the draft's loop without waiting for it, so a loop may stop itself.
func (r *Registry) Stop(draftID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.loops[draftID]; ok {
		delete(r.loops, draftID)
		l.cancel()
	}
}

// Running reports whether a loop is registered for the draft.
func (r *Registry) Running(draftID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.loops[draftID]
	return ok
}

// Len is the number of registered loops.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.loops)
}

// Shutdown cancels every loop and waits for all of them to return or for ctx to end.
// No loop can be started afterwards.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	for id, l := range r.loops {
		l.cancel()
		delete(r.loops, id)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Info().Str("registry", r.name).Msg("all loops stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// remove drops the entry if it still belongs to l.
func (r *Registry) remove(draftID uuid.UUID, l *loop) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loops[draftID] == l {
		delete(r.loops, draftID)
	}
}

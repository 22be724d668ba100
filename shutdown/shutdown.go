// Package shutdown cancels a root context on SIGINT or SIGTERM and runs
// registered cleanup hooks, such as flushing telemetry, before it does.
package shutdown

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"
)

// Handler owns the signal subscription and the cleanup hooks.
type Handler struct {
	mu     sync.Mutex
	hooks  []func(context.Context)
	signal chan os.Signal
	cancel context.CancelFunc
	once   sync.Once
}

// NewHandler returns a context that is canceled once the process receives
// SIGINT or SIGTERM, or Shutdown is called. Hooks run before cancellation,
// in reverse registration order, while the context is still alive.
func NewHandler(parent context.Context) (context.Context, *Handler) {
	ctx, cancel := context.WithCancel(parent)

	h := &Handler{
		signal: make(chan os.Signal, 1),
		cancel: cancel,
	}

	signal.Notify(h.signal, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-h.signal:
			slog.Warn("Received " + sig.String() + ", shutting down...")
			h.Shutdown(ctx)
		case <-ctx.Done():
		}

		signal.Stop(h.signal)
	}()

	return ctx, h
}

// BeforeShutdown registers a hook. Hooks registered after shutdown are ignored.
func (h *Handler) BeforeShutdown(hook func(context.Context)) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.hooks = append(h.hooks, hook)
}

// Shutdown runs the hooks and cancels the context. Only the first call has
// any effect.
func (h *Handler) Shutdown(ctx context.Context) {
	h.once.Do(func() {
		h.mu.Lock()
		hooks := slices.Clone(h.hooks)
		h.hooks = nil
		h.mu.Unlock()

		for _, hook := range slices.Backward(hooks) {
			hook(ctx)
		}

		h.cancel()
	})
}

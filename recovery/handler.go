package recovery

import (
	"os"
	"sync"

	"github.com/juju/errors"
	log "github.com/sirupsen/logrus"

	"github.com/Esclender/dai-assistant/types"
)

// HandlerFunc reacts to a failure (logging, cleanup, alerting).
type HandlerFunc func(err error)

// FallbackFunc converts a failure into a degraded result value that
// the caller can carry on with instead of propagating the error.
type FallbackFunc func(err error) types.Data

func NewHandler() *Handler {
	return NewHandlerWithExit(os.Exit)
}

// NewHandlerWithExit builds a Handler whose user-interrupt handler
// calls the given function instead of os.Exit. Tests inject a recorder
// here.
func NewHandlerWithExit(exit func(code int)) *Handler {
	h := &Handler{
		handlers:  make(map[types.ErrorKind]HandlerFunc),
		fallbacks: make(map[types.ErrorKind]FallbackFunc),
		exit:      exit,
	}
	h.registerDefaults()
	return h
}

/**
 * Handler is the central error-handling registry. It keeps at most one
 * handler and one fallback per error kind; registering again replaces
 * the previous entry. Handle reacts to a failure (and for a user
 * interruption ends the whole process), Fallback produces a degraded
 * result value so a pipeline can continue without the failed output.
 */
type Handler struct {
	mu        sync.Mutex
	handlers  map[types.ErrorKind]HandlerFunc
	fallbacks map[types.ErrorKind]FallbackFunc
	lastErr   error
	exit      func(code int)
}

// Register installs the handler for a kind, replacing any previous one.
func (h *Handler) Register(kind types.ErrorKind, handler HandlerFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[kind] = handler
}

// RegisterFallback installs the fallback for a kind, replacing any
// previous one.
func (h *Handler) RegisterFallback(kind types.ErrorKind, fallback FallbackFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fallbacks[kind] = fallback
}

// Handle classifies err and runs the matching handler, falling back to
// the generic one for kinds without a registration. A nil err is a
// no-op.
func (h *Handler) Handle(err error) {
	if err == nil {
		return
	}
	h.mu.Lock()
	h.lastErr = err
	handler, exists := h.handlers[types.KindOf(err)]
	h.mu.Unlock()

	if exists {
		handler(err)
		return
	}
	h.handleGeneric(err)
}

// Fallback classifies err and returns the matching degraded result,
// or the generic error-status value for kinds without a registration.
func (h *Handler) Fallback(err error) types.Data {
	if err == nil {
		return nil
	}
	h.mu.Lock()
	h.lastErr = err
	fallback, exists := h.fallbacks[types.KindOf(err)]
	h.mu.Unlock()

	if exists {
		return fallback(err)
	}
	log.Infof("using generic fallback strategy")
	return types.Data{"status": "error", "message": err.Error()}
}

// LastError returns the most recent error seen by Handle or Fallback.
func (h *Handler) LastError() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr
}

func (h *Handler) registerDefaults() {
	h.Register(types.KindTokenLimit, func(err error) {
		log.Warnf("token limit exceeded: %v", err)
	})
	h.Register(types.KindTimeout, func(err error) {
		log.Warnf("request timed out: %v", err)
	})
	h.Register(types.KindInvalidOutput, func(err error) {
		log.Errorf("invalid agent output: %v", err)
	})
	h.Register(types.KindConfiguration, func(err error) {
		log.Errorf("configuration error: %v", err)
	})
	h.Register(types.KindDependency, func(err error) {
		log.Errorf("dependency error: %v", err)
	})
	h.Register(types.KindUserInterrupt, h.handleUserInterrupt)

	h.RegisterFallback(types.KindTokenLimit, func(err error) types.Data {
		log.Infof("using fallback for token limit error: reducing context")
		return types.Data{"status": "retrying", "action": "reduce_context"}
	})
	h.RegisterFallback(types.KindTimeout, func(err error) types.Data {
		log.Infof("using fallback for timeout error: backoff and retry")
		return types.Data{"status": "retrying", "action": "backoff_retry"}
	})
	h.RegisterFallback(types.KindInvalidOutput, func(err error) types.Data {
		log.Infof("using fallback for invalid output: simplified request")
		return types.Data{"status": "retrying", "action": "simplify_request"}
	})
}

// a user interruption ends the whole process, not just the current task
func (h *Handler) handleUserInterrupt(err error) {
	log.Infof("user interrupted: %v", err)
	h.exit(0)
}

func (h *Handler) handleGeneric(err error) {
	log.Errorf("unexpected error: %v", err)
	log.Error(errors.ErrorStack(err))
}

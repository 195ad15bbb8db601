package opendkim

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/synqronlabs/opendkim/dkim"
)

// Engine owns a DKIM library and the handlers that answer its callbacks.
// It is safe for concurrent use.
type Engine struct {
	lib    *dkim.Library
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	handlers handlers
	sessions map[*Session]struct{}
	closed   bool
}

// Open creates an Engine.
func Open(cfg Config) (*Engine, error) {
	cfg = cfg.withDefaults()
	lib, err := dkim.NewLibrary(dkim.LibraryConfig{
		Resolver:      cfg.Resolver,
		KeyCacheSize:  cfg.KeyCacheSize,
		KeyCacheTTL:   cfg.KeyCacheTTL,
		MinRSAKeyBits: cfg.MinRSAKeyBits,
		SignedHeaders: cfg.SignedHeaders,
		Logger:        cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoMemory, err)
	}
	return &Engine{
		lib:      lib,
		cfg:      cfg,
		logger:   cfg.Logger,
		sessions: make(map[*Session]struct{}),
	}, nil
}

// Sign creates a signing session. An empty p.ID is replaced with a ULID.
func (e *Engine) Sign(p dkim.SignParams) (*Session, error) {
	if p.ID == "" {
		p.ID = ulid.Make().String()
	}
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	h, st, err := e.lib.Sign(p)
	if st != dkim.StatOK {
		msg := ""
		if err != nil {
			msg = err.Error()
		}
		return nil, &StatusError{Stat: st, Message: msg}
	}
	return e.newSession(h)
}

// Verify creates a verifying session. An empty id is replaced with a ULID.
func (e *Engine) Verify(id string) (*Session, error) {
	if id == "" {
		id = ulid.Make().String()
	}
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	h, st, err := e.lib.Verify(id)
	if st != dkim.StatOK {
		msg := ""
		if err != nil {
			msg = err.Error()
		}
		return nil, &StatusError{Stat: st, Message: msg}
	}
	return e.newSession(h)
}

func (e *Engine) newSession(h *dkim.Handle) (*Session, error) {
	s := &Session{
		engine: e,
		handle: h,
		id:     h.ID(),
		logger: e.logger.With(slog.String("session", h.ID()), slog.String("mode", h.Mode().String())),
	}
	h.SetUserContext(s)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		h.SetUserContext(nil)
		h.Free()
		return nil, ErrClosed
	}
	e.sessions[s] = struct{}{}
	e.mu.Unlock()

	metricSessionsOpen.Inc()
	s.logger.Debug("session opened")
	return s, nil
}

func (e *Engine) forget(s *Session) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sessions, s)
}

func (e *Engine) checkOpen() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	return nil
}

// configure runs fn with the registry locked, refusing while sessions are open.
func (e *Engine) configure(fn func()) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if len(e.sessions) > 0 {
		return fmt.Errorf("%w: %d", ErrSessionsActive, len(e.sessions))
	}
	fn()
	return nil
}

// SetFinalHandler registers fn for the final callback and returns the previous
// handler. A nil fn restores the engine's default behavior.
func (e *Engine) SetFinalHandler(fn FinalHandler) (FinalHandler, error) {
	var prev FinalHandler
	err := e.configure(func() {
		prev = e.handlers.final
		e.handlers.final = fn
		e.install(KindFinal, fn != nil)
	})
	return prev, err
}

// SetKeyLookupHandler registers fn for key retrieval and returns the previous
// handler. With no handler the engine queries its resolver.
func (e *Engine) SetKeyLookupHandler(fn KeyLookupHandler) (KeyLookupHandler, error) {
	var prev KeyLookupHandler
	err := e.configure(func() {
		prev = e.handlers.keyLookup
		e.handlers.keyLookup = fn
		e.install(KindKeyLookup, fn != nil)
	})
	return prev, err
}

// SetPrescreenHandler registers fn for the prescreen callback and returns the
// previous handler.
func (e *Engine) SetPrescreenHandler(fn PrescreenHandler) (PrescreenHandler, error) {
	var prev PrescreenHandler
	err := e.configure(func() {
		prev = e.handlers.prescreen
		e.handlers.prescreen = fn
		e.install(KindPrescreen, fn != nil)
	})
	return prev, err
}

// EnableAsync makes sessions wait for posted results for kinds even though no
// handler is registered. Results are then posted with the Session.Post methods
// or PostWorkResult. Registering a nil handler for a kind disables it again.
func (e *Engine) EnableAsync(kinds ...Kind) error {
	for _, k := range kinds {
		if k < 0 || k >= numKinds {
			return fmt.Errorf("opendkim: invalid kind %s", k)
		}
	}
	return e.configure(func() {
		for _, k := range kinds {
			e.install(k, true)
		}
	})
}

// install connects or disconnects the dispatcher for kind. e.mu must be held.
func (e *Engine) install(kind Kind, on bool) {
	switch kind {
	case KindFinal:
		if on {
			e.lib.SetFinal(e.dispatchFinal)
		} else {
			e.lib.SetFinal(nil)
		}
	case KindKeyLookup:
		if on {
			e.lib.SetKeyLookup(e.dispatchKeyLookup)
		} else {
			e.lib.SetKeyLookup(nil)
		}
	case KindPrescreen:
		if on {
			e.lib.SetPrescreen(e.dispatchPrescreen)
		} else {
			e.lib.SetPrescreen(nil)
		}
	}
}

func (e *Engine) registry() handlers {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.handlers
}

// FlushCache empties the key cache and returns the number of records dropped,
// or -1 when caching is disabled.
func (e *Engine) FlushCache() (int, error) {
	if err := e.checkOpen(); err != nil {
		return 0, err
	}
	return e.lib.FlushCache(), nil
}

// CacheStats returns the key cache counters and optionally resets them.
func (e *Engine) CacheStats(reset bool) (dkim.CacheStats, error) {
	if err := e.checkOpen(); err != nil {
		return dkim.CacheStats{}, err
	}
	stats, st := e.lib.CacheStats(reset)
	if st != dkim.StatOK {
		return stats, &StatusError{Stat: st, Message: "key cache disabled"}
	}
	return stats, nil
}

func (e *Engine) LibFeature(f dkim.Feature) bool {
	return e.lib.LibFeature(f)
}

// OpenSessions returns the number of sessions not yet closed.
func (e *Engine) OpenSessions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

// Close closes every open session and then the library. Calling Close
// again returns ErrClosed.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.closed = true
	open := make([]*Session, 0, len(e.sessions))
	for s := range e.sessions {
		open = append(open, s)
	}
	e.mu.Unlock()

	for _, s := range open {
		_ = s.Close()
	}
	e.lib.Close()
	return nil
}

// LibVersion returns the engine version, encoded as 0xMMmmpp00.
func LibVersion() uint32 {
	return dkim.LibVersion()
}

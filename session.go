package opendkim

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/synqronlabs/opendkim/dkim"
)

// Session is one signing or verifying operation on a message. It owns its
// engine handle and tracks the callbacks the handle is waiting on.
//
// A Session is driven by one goroutine at a time. Posting results and
// querying pending operations may happen from other goroutines.
type Session struct {
	engine *Engine
	handle *dkim.Handle
	id     string
	logger *slog.Logger

	mu      sync.Mutex
	tracker tracker
	closed  bool
}

func (s *Session) ID() string { return s.id }

func (s *Session) Mode() dkim.Mode { return s.handle.Mode() }

// GetError returns the engine's description of the most recent failure.
func (s *Session) GetError() string { return s.handle.GetError() }

// Signatures returns the signatures of a verifying session, available after EOH.
func (s *Session) Signatures() []*dkim.SigInfo { return s.handle.Signatures() }

func (s *Session) Signer() string { return s.handle.Signer() }

func (s *Session) SetSigner(signer string) error {
	return s.call(func() dkim.Stat { return s.handle.SetSigner(signer) })
}

// Header adds one header field.
func (s *Session) Header(line []byte) error {
	return s.call(func() dkim.Stat { return s.handle.Header(line) })
}

// EOH ends the header block. It returns an error matching dkim.StatCBTryAgain
// when a callback is pending; call EOH again once it has been resolved.
func (s *Session) EOH(ctx context.Context) error {
	return s.call(func() dkim.Stat { return s.handle.EOH(ctx) })
}

func (s *Session) Body(buf []byte) error {
	return s.call(func() dkim.Stat { return s.handle.Body(buf) })
}

// EOM completes the message. testKey reports whether the deciding key is a test key.
func (s *Session) EOM(ctx context.Context) (testKey bool, err error) {
	err = s.call(func() dkim.Stat {
		var st dkim.Stat
		st, testKey = s.handle.EOM(ctx)
		return st
	})
	return testKey, err
}

// Chunk feeds raw message data, headers and body alike. A nil buf marks the end
// of the message. After a try-again, call Chunk with nil to resume without
// sending the same data twice.
func (s *Session) Chunk(ctx context.Context, buf []byte) error {
	return s.call(func() dkim.Stat { return s.handle.Chunk(ctx, buf) })
}

// GetSigHdr returns the DKIM-Signature value generated by a signing session.
func (s *Session) GetSigHdr() (string, error) {
	var hdr string
	err := s.call(func() dkim.Stat {
		var st dkim.Stat
		hdr, st = s.handle.GetSigHdr()
		return st
	})
	return hdr, err
}

func (s *Session) call(fn func() dkim.Stat) error {
	if s.isClosed() {
		return ErrClosed
	}
	st := fn()
	return statusError(st, s.handle.GetError())
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the engine handle. Pending operations are dropped.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.closed = true
	s.tracker = tracker{}
	s.mu.Unlock()

	s.handle.SetUserContext(nil)
	st := s.handle.Free()
	s.engine.forget(s)
	metricSessionsOpen.Dec()
	s.logger.Debug("session closed")
	return statusError(st, "")
}

// PostFinalResult answers the pending final callback.
func (s *Session) PostFinalResult(stat dkim.CBStat) error {
	return s.post(KindFinal, result{stat: stat})
}

// PostKeyLookupResult answers the pending key lookup with a TXT record.
func (s *Session) PostKeyLookupResult(stat dkim.CBStat, txt string) error {
	return s.post(KindKeyLookup, result{stat: stat, txt: txt, hasTxt: true})
}

// PostKeyLookupResultNone answers the pending key lookup without a record.
func (s *Session) PostKeyLookupResultNone(stat dkim.CBStat) error {
	return s.post(KindKeyLookup, result{stat: stat})
}

// PostPrescreenResult answers the pending prescreen callback.
func (s *Session) PostPrescreenResult(stat dkim.CBStat) error {
	return s.post(KindPrescreen, result{stat: stat})
}

func (s *Session) post(kind Kind, res result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.tracker.postResult(kind, res); err != nil {
		return err
	}
	s.logger.Debug("result posted",
		slog.String("kind", kind.String()),
		slog.String("result", res.stat.String()))
	return nil
}

// PendingOperations lists the callbacks that are waiting for a result.
func (s *Session) PendingOperations() ([]PendingOperation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.tracker.pending(), nil
}

func (s *Session) String() string {
	return fmt.Sprintf("session %s (%s)", s.id, s.handle.Mode())
}

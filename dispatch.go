package opendkim

import (
	"log/slog"

	"github.com/synqronlabs/opendkim/dkim"
)

// The dispatchers below are installed on the library. They never block: a
// callback is answered from a posted result when one matches, and otherwise
// recorded as pending and answered with dkim.CBTryAgain.

func (e *Engine) dispatchFinal(h *dkim.Handle, sigs []*dkim.SigInfo) dkim.CBStat {
	res, _ := e.dispatch(h, KindFinal, request{sigs: sigs})
	return res.stat
}

func (e *Engine) dispatchPrescreen(h *dkim.Handle, sigs []*dkim.SigInfo) dkim.CBStat {
	res, _ := e.dispatch(h, KindPrescreen, request{sigs: sigs})
	return res.stat
}

func (e *Engine) dispatchKeyLookup(h *dkim.Handle, sig *dkim.SigInfo, buf []byte) dkim.CBStat {
	res, ok := e.dispatch(h, KindKeyLookup, request{sig: sig})
	if ok && len(buf) > 0 {
		if res.hasTxt {
			n := copy(buf[:len(buf)-1], res.txt)
			buf[n] = 0
		} else {
			buf[0] = 0
		}
	}
	return res.stat
}

// dispatch returns the posted result and true when kind was resolved for req.
// Otherwise the returned stat is CBTryAgain, or CBError when h has no usable session.
func (e *Engine) dispatch(h *dkim.Handle, kind Kind, req request) (result, bool) {
	s := e.sessionOf(h)
	if s == nil {
		metricCallback.WithLabelValues(kind.String(), "error").Inc()
		e.logger.Error("callback without session", slog.String("kind", kind.String()))
		return result{stat: dkim.CBError}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		metricCallback.WithLabelValues(kind.String(), "error").Inc()
		return result{stat: dkim.CBError}, false
	}

	res, ok := s.tracker.consumeIfMatching(kind, req)
	if !ok {
		metricCallback.WithLabelValues(kind.String(), "tryagain").Inc()
		s.logger.Debug("callback pending", slog.String("kind", kind.String()))
		return result{stat: dkim.CBTryAgain}, false
	}
	metricCallback.WithLabelValues(kind.String(), "resolved").Inc()
	s.logger.Debug("callback resolved",
		slog.String("kind", kind.String()),
		slog.String("result", res.stat.String()))
	return res, true
}

// sessionOf returns the open session attached to h by this engine, or nil.
func (e *Engine) sessionOf(h *dkim.Handle) *Session {
	if h == nil {
		return nil
	}
	s, ok := h.UserContext().(*Session)
	if !ok || s == nil || s.engine != e {
		return nil
	}
	return s
}

package opendkim

import (
	"errors"
	"fmt"

	"github.com/synqronlabs/opendkim/dkim"
)

var (
	ErrNotPending     = errors.New("opendkim: no operation of that kind is pending")
	ErrClosed         = errors.New("opendkim: closed")
	ErrNoMemory       = errors.New("opendkim: cannot create engine")
	ErrNoHandler      = errors.New("opendkim: no handler registered")
	ErrRetryLimit     = errors.New("opendkim: retry limit reached")
	ErrSessionsActive = errors.New("opendkim: sessions are open")
	ErrWrongSession   = errors.New("opendkim: work result belongs to another session")
	ErrWrongMode      = errors.New("opendkim: operation not valid in this mode")
)

// StatusError is a non-success status returned by the engine, with the
// engine's description of what went wrong.
//
// It matches its Stat with errors.Is:
//
//	if errors.Is(err, dkim.StatNoSig) { ... }
type StatusError struct {
	Stat    dkim.Stat
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return "opendkim: " + e.Stat.String()
	}
	return fmt.Sprintf("opendkim: %s: %s", e.Stat, e.Message)
}

func (e *StatusError) Unwrap() error {
	return e.Stat
}

// statusError returns nil for dkim.StatOK.
func statusError(st dkim.Stat, msg string) error {
	if st == dkim.StatOK {
		return nil
	}
	return &StatusError{Stat: st, Message: msg}
}

package opendkim

import (
	"fmt"
	"slices"

	"github.com/synqronlabs/opendkim/dkim"
)

// Kind identifies one of the engine callbacks that can be resolved asynchronously.
type Kind int

const (
	KindFinal Kind = iota
	KindKeyLookup
	KindPrescreen

	numKinds = 3
)

func (k Kind) String() string {
	switch k {
	case KindFinal:
		return "final"
	case KindKeyLookup:
		return "key_lookup"
	case KindPrescreen:
		return "prescreen"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

type opState int

const (
	opIdle opState = iota
	opPending
	opResolved
)

// request is the payload the engine passed to a callback.
// Final and prescreen carry sigs, key lookup carries sig.
type request struct {
	sigs []*dkim.SigInfo
	sig  *dkim.SigInfo
}

// matches compares by identity: the same SigInfo objects in the same order.
func (r request) matches(o request) bool {
	if r.sig != o.sig || len(r.sigs) != len(o.sigs) {
		return false
	}
	for i := range r.sigs {
		if r.sigs[i] != o.sigs[i] {
			return false
		}
	}
	return true
}

type result struct {
	stat   dkim.CBStat
	txt    string
	hasTxt bool
}

type slot struct {
	state opState
	req   request
	res   result
}

// tracker holds the asynchronous state of each callback kind for one session.
type tracker struct {
	slots [numKinds]slot
}

// recordRequest marks kind as pending with req. Recording the request that
// is already pending changes nothing.
func (t *tracker) recordRequest(kind Kind, req request) {
	s := &t.slots[kind]
	if s.state == opPending && s.req.matches(req) {
		return
	}
	req.sigs = slices.Clone(req.sigs)
	*s = slot{state: opPending, req: req}
}

// postResult stores the outcome for a pending kind. Posting again before the
// result is consumed replaces it.
func (t *tracker) postResult(kind Kind, res result) error {
	s := &t.slots[kind]
	if s.state == opIdle {
		return fmt.Errorf("%w: %s", ErrNotPending, kind)
	}
	s.state = opResolved
	s.res = res
	return nil
}

// consumeIfMatching returns the posted result when kind is resolved for req,
// and resets the slot. Otherwise req becomes the pending request.
func (t *tracker) consumeIfMatching(kind Kind, req request) (result, bool) {
	s := &t.slots[kind]
	if s.state == opResolved && s.req.matches(req) {
		res := s.res
		*s = slot{}
		return res, true
	}
	t.recordRequest(kind, req)
	return result{}, false
}

// PendingOperation is a callback the engine is waiting on.
type PendingOperation struct {
	Kind Kind

	// Signatures is set for KindFinal and KindPrescreen.
	Signatures []*dkim.SigInfo

	// Signature is set for KindKeyLookup.
	Signature *dkim.SigInfo
}

func (t *tracker) pending() []PendingOperation {
	var ops []PendingOperation
	for k := range Kind(numKinds) {
		s := &t.slots[k]
		if s.state != opPending {
			continue
		}
		ops = append(ops, PendingOperation{
			Kind:       k,
			Signatures: slices.Clone(s.req.sigs),
			Signature:  s.req.sig,
		})
	}
	return ops
}

package opendkim

//go:generate msgp -io=false -tests=false
//msgp:shim dkim.CBStat as:int using:int/dkim.CBStat

import (
	"fmt"

	"github.com/tinylib/msgp/msgp"

	"github.com/synqronlabs/opendkim/dkim"
)

// WorkItem describes a pending operation to a worker outside the process.
// It carries enough to perform the lookup or decision, not the engine objects.
type WorkItem struct {
	SessionID  string         `msg:"session"`
	Kind       Kind           `msg:"kind"`
	Signatures []SignatureRef `msg:"sigs"`
}

// SignatureRef identifies one signature of a message.
type SignatureRef struct {
	Index     int    `msg:"index"`
	Domain    string `msg:"d"`
	Selector  string `msg:"s"`
	Algorithm string `msg:"a"`
	Identity  string `msg:"i"`
}

// WorkResult is a worker's answer to a WorkItem.
type WorkResult struct {
	SessionID string      `msg:"session"`
	Kind      Kind        `msg:"kind"`
	Stat      dkim.CBStat `msg:"stat"`
	TXT       string      `msg:"txt"`
	HasTXT    bool        `msg:"has_txt"`
}

var (
	_ msgp.Marshaler   = (*WorkItem)(nil)
	_ msgp.Unmarshaler = (*WorkItem)(nil)
	_ msgp.Sizer       = (*WorkItem)(nil)
	_ msgp.Marshaler   = (*WorkResult)(nil)
	_ msgp.Unmarshaler = (*WorkResult)(nil)
)

func signatureRef(si *dkim.SigInfo) SignatureRef {
	return SignatureRef{
		Index:     si.Index(),
		Domain:    si.Domain(),
		Selector:  si.Selector(),
		Algorithm: si.Algorithm(),
		Identity:  si.Identity(),
	}
}

// WorkItem converts op for transfer. Key lookups carry a single signature.
func (op PendingOperation) WorkItem(sessionID string) WorkItem {
	w := WorkItem{SessionID: sessionID, Kind: op.Kind}
	if op.Signature != nil {
		w.Signatures = []SignatureRef{signatureRef(op.Signature)}
	}
	for _, si := range op.Signatures {
		w.Signatures = append(w.Signatures, signatureRef(si))
	}
	return w
}

// WorkItems returns the pending operations of s as WorkItems.
func (s *Session) WorkItems() ([]WorkItem, error) {
	ops, err := s.PendingOperations()
	if err != nil {
		return nil, err
	}
	items := make([]WorkItem, len(ops))
	for i, op := range ops {
		items[i] = op.WorkItem(s.id)
	}
	return items, nil
}

// PostWorkResult posts a worker's answer.
func (s *Session) PostWorkResult(r WorkResult) error {
	if r.SessionID != s.id {
		return fmt.Errorf("%w: %s", ErrWrongSession, r.SessionID)
	}
	if r.Kind < 0 || r.Kind >= numKinds {
		return fmt.Errorf("%w: %s", ErrNotPending, r.Kind)
	}
	return s.post(r.Kind, result{stat: r.Stat, txt: r.TXT, hasTxt: r.HasTXT})
}

// ToMessagePack encodes w.
func (w *WorkItem) ToMessagePack() ([]byte, error) {
	return w.MarshalMsg(nil)
}

// WorkItemFromMessagePack decodes a WorkItem.
func WorkItemFromMessagePack(data []byte) (*WorkItem, error) {
	w := &WorkItem{}
	if _, err := w.UnmarshalMsg(data); err != nil {
		return nil, err
	}
	return w, nil
}

// ToMessagePack encodes r.
func (r *WorkResult) ToMessagePack() ([]byte, error) {
	return r.MarshalMsg(nil)
}

// WorkResultFromMessagePack decodes a WorkResult.
func WorkResultFromMessagePack(data []byte) (*WorkResult, error) {
	r := &WorkResult{}
	if _, err := r.UnmarshalMsg(data); err != nil {
		return nil, err
	}
	return r, nil
}

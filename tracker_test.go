package opendkim

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/synqronlabs/opendkim/dkim"
)

func TestTrackerRoundTrip(t *testing.T) {
	sig := &dkim.SigInfo{}
	sigs := []*dkim.SigInfo{sig, {}}

	tests := []struct {
		kind Kind
		req  request
	}{
		{KindFinal, request{sigs: sigs}},
		{KindKeyLookup, request{sig: sig}},
		{KindPrescreen, request{sigs: sigs}},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			var tr tracker
			if _, ok := tr.consumeIfMatching(tt.kind, tt.req); ok {
				t.Fatal("first call returned a result")
			}
			if err := tr.postResult(tt.kind, result{stat: dkim.CBReject}); err != nil {
				t.Fatalf("postResult: %v", err)
			}
			res, ok := tr.consumeIfMatching(tt.kind, tt.req)
			if !ok || res.stat != dkim.CBReject {
				t.Fatalf("second call = %v, %v; want reject, true", res.stat, ok)
			}
			if tr.slots[tt.kind].state != opIdle {
				t.Errorf("slot state after consume = %d, want idle", tr.slots[tt.kind].state)
			}
		})
	}
}

func TestTrackerPostWithoutRequest(t *testing.T) {
	var tr tracker
	err := tr.postResult(KindFinal, result{stat: dkim.CBContinue})
	if !errors.Is(err, ErrNotPending) {
		t.Fatalf("postResult error = %v, want ErrNotPending", err)
	}
	if s := tr.slots[KindFinal]; s.state != opIdle || s.res != (result{}) {
		t.Errorf("failed post changed slot to %+v", s)
	}
}

func TestTrackerRecordIsIdempotent(t *testing.T) {
	var tr tracker
	sig := &dkim.SigInfo{}
	tr.recordRequest(KindKeyLookup, request{sig: sig})
	if err := tr.postResult(KindKeyLookup, result{stat: dkim.CBContinue, txt: "v=DKIM1; p=", hasTxt: true}); err != nil {
		t.Fatal(err)
	}
	// Recording a different request discards the posted result.
	tr.recordRequest(KindKeyLookup, request{sig: &dkim.SigInfo{}})
	if tr.slots[KindKeyLookup].state != opPending {
		t.Fatalf("state = %d, want pending", tr.slots[KindKeyLookup].state)
	}
	if _, ok := tr.consumeIfMatching(KindKeyLookup, request{sig: sig}); ok {
		t.Fatal("stale result returned")
	}

	tr.recordRequest(KindKeyLookup, request{sig: sig})
	tr.recordRequest(KindKeyLookup, request{sig: sig})
	if got := len(tr.pending()); got != 1 {
		t.Errorf("pending = %d, want 1", got)
	}
}

func TestTrackerMismatchRecordsNewRequest(t *testing.T) {
	var tr tracker
	h1, h2 := &dkim.SigInfo{}, &dkim.SigInfo{}
	tr.recordRequest(KindKeyLookup, request{sig: h1})
	if err := tr.postResult(KindKeyLookup, result{stat: dkim.CBContinue}); err != nil {
		t.Fatal(err)
	}
	if _, ok := tr.consumeIfMatching(KindKeyLookup, request{sig: h2}); ok {
		t.Fatal("result for h1 returned for h2")
	}
	ops := tr.pending()
	if len(ops) != 1 || ops[0].Signature != h2 {
		t.Fatalf("pending = %+v, want key lookup for h2", ops)
	}
}

func TestTrackerSignatureListIdentity(t *testing.T) {
	a, b := &dkim.SigInfo{}, &dkim.SigInfo{}
	var tr tracker
	tr.recordRequest(KindFinal, request{sigs: []*dkim.SigInfo{a, b}})
	if err := tr.postResult(KindFinal, result{stat: dkim.CBContinue}); err != nil {
		t.Fatal(err)
	}
	for _, sigs := range [][]*dkim.SigInfo{{a}, {b, a}, {a, b, a}} {
		if _, ok := tr.consumeIfMatching(KindFinal, request{sigs: sigs}); ok {
			t.Fatalf("list %v matched", sigs)
		}
	}
}

func TestTrackerRecordCopiesSignatureList(t *testing.T) {
	a, b := &dkim.SigInfo{}, &dkim.SigInfo{}
	sigs := []*dkim.SigInfo{a, b}
	var tr tracker
	tr.recordRequest(KindPrescreen, request{sigs: sigs})
	sigs[0] = b
	if got := tr.pending()[0].Signatures[0]; got != a {
		t.Error("tracker shares the caller's slice")
	}
}

func TestTrackerPendingExcludesResolved(t *testing.T) {
	var tr tracker
	sig := &dkim.SigInfo{}
	tr.recordRequest(KindFinal, request{sigs: []*dkim.SigInfo{sig}})
	tr.recordRequest(KindKeyLookup, request{sig: sig})
	tr.recordRequest(KindPrescreen, request{sigs: []*dkim.SigInfo{sig}})
	if err := tr.postResult(KindKeyLookup, result{stat: dkim.CBNotFound}); err != nil {
		t.Fatal(err)
	}

	var kinds []Kind
	for _, op := range tr.pending() {
		kinds = append(kinds, op.Kind)
	}
	if diff := cmp.Diff([]Kind{KindFinal, KindPrescreen}, kinds); diff != "" {
		t.Errorf("pending kinds (-want +got):\n%s", diff)
	}
}

func TestTrackerRepostReplacesResult(t *testing.T) {
	var tr tracker
	sig := &dkim.SigInfo{}
	tr.recordRequest(KindKeyLookup, request{sig: sig})
	_ = tr.postResult(KindKeyLookup, result{stat: dkim.CBNotFound})
	_ = tr.postResult(KindKeyLookup, result{stat: dkim.CBContinue, txt: "x", hasTxt: true})
	res, ok := tr.consumeIfMatching(KindKeyLookup, request{sig: sig})
	if !ok || res.stat != dkim.CBContinue || res.txt != "x" {
		t.Errorf("consume = %+v, %v", res, ok)
	}
}

func TestKindString(t *testing.T) {
	for k, want := range map[Kind]string{
		KindFinal:     "final",
		KindKeyLookup: "key_lookup",
		KindPrescreen: "prescreen",
		Kind(9):       "kind(9)",
	} {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", int(k), got, want)
		}
	}
}

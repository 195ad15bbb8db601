package opendkim

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/synqronlabs/opendkim/dkim"
	"github.com/synqronlabs/opendkim/dns"
)

// FinalHandler decides on the verified signatures at EOM. It may call
// SigInfo.Ignore to exclude signatures from the result.
type FinalHandler func(ctx context.Context, s *Session, sigs []*dkim.SigInfo) (dkim.CBStat, error)

// PrescreenHandler inspects the signatures at EOH, before any key is fetched.
// Signatures marked with SigInfo.Ignore are not verified.
type PrescreenHandler func(ctx context.Context, s *Session, sigs []*dkim.SigInfo) (dkim.CBStat, error)

// KeyLookupHandler retrieves the key record for one signature. It returns
// dkim.CBContinue with the TXT record, dkim.CBNotFound when there is none,
// or dkim.CBDefault to let the engine fetch the key itself.
type KeyLookupHandler func(ctx context.Context, s *Session, sig *dkim.SigInfo) (dkim.CBStat, string, error)

type handlers struct {
	final     FinalHandler
	keyLookup KeyLookupHandler
	prescreen PrescreenHandler
}

// run calls the handler registered for op.
func (hs handlers) run(ctx context.Context, s *Session, op PendingOperation) (result, error) {
	switch op.Kind {
	case KindFinal:
		if hs.final == nil {
			break
		}
		st, err := hs.final(ctx, s, op.Signatures)
		return result{stat: st}, err
	case KindPrescreen:
		if hs.prescreen == nil {
			break
		}
		st, err := hs.prescreen(ctx, s, op.Signatures)
		return result{stat: st}, err
	case KindKeyLookup:
		if hs.keyLookup == nil {
			break
		}
		st, txt, err := hs.keyLookup(ctx, s, op.Signature)
		return result{stat: st, txt: txt, hasTxt: txt != ""}, err
	}
	return result{}, fmt.Errorf("%w: %s", ErrNoHandler, op.Kind)
}

// DNSKeyLookup returns a KeyLookupHandler that fetches key records through r.
// Concurrent lookups of the same name share one query.
func DNSKeyLookup(r dns.Resolver) KeyLookupHandler {
	var group singleflight.Group
	return func(ctx context.Context, s *Session, sig *dkim.SigInfo) (dkim.CBStat, string, error) {
		name := strings.ToLower(sig.Selector() + "._domainkey." + strings.TrimSuffix(sig.Domain(), ".") + ".")
		// The shared query must outlive any single caller's context.
		ch := group.DoChan(name, func() (any, error) {
			res, err := r.LookupTXT(context.WithoutCancel(ctx), name)
			return res.Records, err
		})
		var v any
		var err error
		select {
		case <-ctx.Done():
			return dkim.CBError, "", fmt.Errorf("looking up %s: %w", name, ctx.Err())
		case res := <-ch:
			v, err = res.Val, res.Err
		}
		if err != nil {
			if dns.IsNotFound(err) {
				return dkim.CBNotFound, "", nil
			}
			return dkim.CBError, "", fmt.Errorf("looking up %s: %w", name, err)
		}
		for _, txt := range v.([]string) {
			if _, isDKIM, _ := dkim.ParseRecord(txt); isDKIM {
				return dkim.CBContinue, txt, nil
			}
		}
		return dkim.CBNotFound, "", nil
	}
}

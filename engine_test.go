package opendkim

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/synqronlabs/opendkim/dkim"
	"github.com/synqronlabs/opendkim/dns"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{KeyCacheSize: -1, MaxRetries: 5}.withDefaults()
	if cfg.Resolver == nil || cfg.Logger == nil {
		t.Fatal("resolver or logger not defaulted")
	}
	if cfg.KeyCacheSize != -1 {
		t.Errorf("KeyCacheSize = %d, want -1 kept", cfg.KeyCacheSize)
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5 kept", cfg.MaxRetries)
	}
	if cfg.KeyCacheTTL != time.Hour || cfg.MinRSAKeyBits != 1024 {
		t.Errorf("defaults = %v, %d", cfg.KeyCacheTTL, cfg.MinRSAKeyBits)
	}
	if diff := cmp.Diff(dkim.DefaultSignedHeaders, cfg.SignedHeaders); diff != "" {
		t.Errorf("SignedHeaders (-want +got):\n%s", diff)
	}
}

func TestSetHandlerReturnsPrevious(t *testing.T) {
	e := newTestEngine(t, nil)
	calls := 0
	first := func(ctx context.Context, s *Session, sigs []*dkim.SigInfo) (dkim.CBStat, error) {
		calls++
		return dkim.CBContinue, nil
	}

	prev, err := e.SetFinalHandler(first)
	if err != nil || prev != nil {
		t.Fatalf("first SetFinalHandler = %v, %v; want nil, nil", prev != nil, err)
	}
	prev, err = e.SetFinalHandler(nil)
	if err != nil || prev == nil {
		t.Fatalf("second SetFinalHandler = %v, %v; want previous handler", prev != nil, err)
	}
	prev(context.Background(), nil, nil)
	if calls != 1 {
		t.Error("returned handler is not the one registered")
	}

	lookup := DNSKeyLookup(dns.MockResolver{})
	if prev, err := e.SetKeyLookupHandler(lookup); err != nil || prev != nil {
		t.Fatalf("SetKeyLookupHandler = %v, %v", prev != nil, err)
	}
	if prev, err := e.SetKeyLookupHandler(nil); err != nil || prev == nil {
		t.Fatalf("SetKeyLookupHandler(nil) = %v, %v", prev != nil, err)
	}
	if prev, err := e.SetPrescreenHandler(first); err != nil || prev != nil {
		t.Fatalf("SetPrescreenHandler = %v, %v", prev != nil, err)
	}
}

func TestSetHandlerWithOpenSessions(t *testing.T) {
	e := newTestEngine(t, nil)
	s, err := e.Verify("open")
	if err != nil {
		t.Fatal(err)
	}

	_, err = e.SetKeyLookupHandler(DNSKeyLookup(dns.MockResolver{}))
	if !errors.Is(err, ErrSessionsActive) {
		t.Fatalf("SetKeyLookupHandler with open session = %v, want ErrSessionsActive", err)
	}
	if err := e.EnableAsync(KindFinal); !errors.Is(err, ErrSessionsActive) {
		t.Fatalf("EnableAsync with open session = %v, want ErrSessionsActive", err)
	}
	if e.registry().keyLookup != nil {
		t.Error("registry changed despite the error")
	}

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := e.SetKeyLookupHandler(DNSKeyLookup(dns.MockResolver{})); err != nil {
		t.Fatalf("SetKeyLookupHandler after Close: %v", err)
	}
}

func TestEnableAsyncInvalidKind(t *testing.T) {
	e := newTestEngine(t, nil)
	if err := e.EnableAsync(Kind(7)); err == nil {
		t.Error("EnableAsync accepted an unknown kind")
	}
}

func TestEngineClose(t *testing.T) {
	e, err := Open(Config{Resolver: dns.MockResolver{}})
	if err != nil {
		t.Fatal(err)
	}
	gauge := testutil.ToFloat64(metricSessionsOpen)
	s1, err := e.Verify("a")
	if err != nil {
		t.Fatal(err)
	}
	s2, err := e.Sign(dkim.SignParams{PrivateKey: []byte(testRSAKeyPEM), Selector: "sel", Domain: "example.com"})
	if err != nil {
		t.Fatal(err)
	}
	if got := testutil.ToFloat64(metricSessionsOpen) - gauge; got != 2 {
		t.Errorf("sessions gauge grew by %v, want 2", got)
	}

	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := testutil.ToFloat64(metricSessionsOpen) - gauge; got != 0 {
		t.Errorf("sessions gauge after Close off by %v", got)
	}
	for _, s := range []*Session{s1, s2} {
		if err := s.Close(); !errors.Is(err, ErrClosed) {
			t.Errorf("session Close after engine Close = %v, want ErrClosed", err)
		}
	}
	if _, err := e.Verify("b"); !errors.Is(err, ErrClosed) {
		t.Errorf("Verify after Close = %v, want ErrClosed", err)
	}
	if _, err := e.SetFinalHandler(nil); !errors.Is(err, ErrClosed) {
		t.Errorf("SetFinalHandler after Close = %v, want ErrClosed", err)
	}
	if _, err := e.FlushCache(); !errors.Is(err, ErrClosed) {
		t.Errorf("FlushCache after Close = %v, want ErrClosed", err)
	}
	if err := e.Close(); !errors.Is(err, ErrClosed) {
		t.Errorf("second Close = %v, want ErrClosed", err)
	}
}

func TestEngineKeyCache(t *testing.T) {
	key, txt := testEd25519Key(t, 9)
	e, err := Open(Config{Resolver: dns.MockResolver{TXT: map[string][]string{"k._domainkey.example.com.": {txt}}}})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	if !e.LibFeature(dkim.FeatureKeyCache) {
		t.Error("key cache feature not reported")
	}
	msg := signTestMessage(t, e, dkim.SignParams{PrivateKey: key, Selector: "k", Domain: "example.com"}, testMessage)

	for range 2 {
		s, err := e.Verify("")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := s.ProcessMessage(context.Background(), []byte(msg)); err != nil {
			t.Fatalf("ProcessMessage: %v", err)
		}
		s.Close()
	}

	stats, err := e.CacheStats(true)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(dkim.CacheStats{Queries: 2, Hits: 1, Keys: 1}, stats); diff != "" {
		t.Errorf("CacheStats (-want +got):\n%s", diff)
	}
	if n, err := e.FlushCache(); err != nil || n != 1 {
		t.Errorf("FlushCache = %d, %v; want 1", n, err)
	}
}

func TestEngineNoKeyCache(t *testing.T) {
	e := newTestEngine(t, nil)
	if e.LibFeature(dkim.FeatureKeyCache) {
		t.Error("key cache reported while disabled")
	}
	if n, err := e.FlushCache(); err != nil || n != -1 {
		t.Errorf("FlushCache = %d, %v; want -1", n, err)
	}
	if _, err := e.CacheStats(false); !errors.Is(err, dkim.StatNotImplement) {
		t.Errorf("CacheStats = %v, want StatNotImplement", err)
	}
}

func TestLibVersion(t *testing.T) {
	if LibVersion() != dkim.LibVersion() || LibVersion() == 0 {
		t.Errorf("LibVersion = %#x", LibVersion())
	}
}

func TestStatusError(t *testing.T) {
	if statusError(dkim.StatOK, "ignored") != nil {
		t.Error("StatOK produced an error")
	}
	err := statusError(dkim.StatNoKey, "no key for sel._domainkey.example.com")
	if !errors.Is(err, dkim.StatNoKey) || errors.Is(err, dkim.StatBadSig) {
		t.Errorf("errors.Is mismatch for %v", err)
	}
	if got, want := err.Error(), "opendkim: No key: no key for sel._domainkey.example.com"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

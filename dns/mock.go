package dns

import (
	"context"
	"slices"
	"sync/atomic"
)

// MockResolver is a Resolver used for testing.
// TXT maps FQDNs (with trailing dot) to record values.
type MockResolver struct {
	TXT map[string][]string

	// Fail lists FQDNs whose lookup returns ErrDNSServFail.
	Fail []string

	// AllAuthentic sets Authentic on every response.
	AllAuthentic bool

	// Authentic lists FQDNs answered with Authentic=true.
	Authentic []string

	// Queries, if non-nil, is incremented on every lookup.
	Queries *atomic.Int64
}

var _ Resolver = MockResolver{}

func ensureFQDN(name string) string {
	if len(name) == 0 || name[len(name)-1] != '.' {
		return name + "."
	}
	return name
}

// LookupTXT returns the configured TXT records for name.
func (r MockResolver) LookupTXT(ctx context.Context, name string) (Result[string], error) {
	if r.Queries != nil {
		r.Queries.Add(1)
	}
	fqdn := ensureFQDN(name)
	result := Result[string]{Authentic: r.AllAuthentic || slices.Contains(r.Authentic, fqdn)}

	if err := ctx.Err(); err != nil {
		return result, err
	}
	if slices.Contains(r.Fail, fqdn) {
		return result, ErrDNSServFail
	}

	records, ok := r.TXT[fqdn]
	if !ok || len(records) == 0 {
		return result, ErrDNSNotFound
	}
	result.Records = records
	return result, nil
}

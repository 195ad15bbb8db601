package opendkim

import (
	"github.com/emersion/go-msgauth/authres"

	"github.com/synqronlabs/opendkim/dkim"
)

// AuthResults formats the verification outcome as an Authentication-Results
// header value (RFC 8601) for hostname. Call it after EOM.
func (s *Session) AuthResults(hostname string) (string, error) {
	if s.isClosed() {
		return "", ErrClosed
	}
	if s.Mode() != dkim.ModeVerify {
		return "", ErrWrongMode
	}

	var results []authres.Result
	for _, si := range s.Signatures() {
		if si.Flags()&dkim.SigFlagIgnore != 0 {
			continue
		}
		r := &authres.DKIMResult{
			Value:      authres.ResultValue(si.Status()),
			Domain:     si.Domain(),
			Identifier: si.Identity(),
		}
		if si.Status() != dkim.StatusPass && si.Err() != nil {
			r.Reason = si.Err().Error()
		}
		results = append(results, r)
	}
	if len(results) == 0 {
		results = append(results, &authres.DKIMResult{Value: authres.ResultNone})
	}
	return authres.Format(hostname, results), nil
}

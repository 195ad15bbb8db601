// Package opendkim drives a DKIM signing and verification engine whose
// callbacks are answered asynchronously.
//
// The engine in package dkim calls out during processing: prescreen and key
// lookup at the end of the headers, final at the end of the message. An Engine
// answers those calls without blocking. The first time a callback is reached
// it is recorded as pending on the Session and the processing call fails with
// an error matching dkim.StatCBTryAgain. The caller resolves the pending
// operation, posts the result and repeats the same processing call, which then
// continues from where it stopped.
//
// # Verifying
//
//	engine, err := opendkim.Open(opendkim.Config{})
//	if err != nil {
//	    return err
//	}
//	defer engine.Close()
//	engine.SetKeyLookupHandler(opendkim.DNSKeyLookup(resolver))
//
//	s, err := engine.Verify("")
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//	if _, err := s.ProcessMessage(ctx, msg); err != nil && !errors.Is(err, dkim.StatNoSig) {
//	    return err
//	}
//	header, _ := s.AuthResults("mx.example.com")
//
// # Resolving by hand
//
// When work is done elsewhere, enable the kinds without handlers and answer
// the pending operations directly:
//
//	engine.EnableAsync(opendkim.KindKeyLookup)
//	...
//	for {
//	    err := s.EOH(ctx)
//	    if !errors.Is(err, dkim.StatCBTryAgain) {
//	        break
//	    }
//	    ops, _ := s.PendingOperations()
//	    for _, op := range ops {
//	        if op.Kind == opendkim.KindKeyLookup {
//	            s.PostKeyLookupResult(dkim.CBContinue, lookup(op.Signature))
//	        }
//	    }
//	}
//
// Operations can also travel to other processes as MessagePack encoded
// WorkItems, answered with a WorkResult.
//
// # Signing
//
//	s, err := engine.Sign(dkim.SignParams{
//	    PrivateKey:  pemKey,
//	    Selector:    "2024",
//	    Domain:      "example.com",
//	    HeaderCanon: dkim.CanonRelaxed,
//	})
//	...
//	s.ProcessMessage(ctx, msg)
//	value, err := s.GetSigHdr()
package opendkim

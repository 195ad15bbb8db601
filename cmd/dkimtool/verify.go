package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/synqronlabs/opendkim"
	"github.com/synqronlabs/opendkim/dns"
)

type verifyOptions struct {
	nameservers []string
	dnssec      bool
	hostname    string
	timeout     time.Duration
}

func newVerifyCommand() *cobra.Command {
	var opts verifyOptions
	cmd := &cobra.Command{
		Use:   "verify [flags] MESSAGE",
		Short: "Verify the DKIM signatures of a message",
		Long: "Verify the DKIM signatures of a message and print an Authentication-Results value.\n" +
			"The exit status is 1 unless at least one signature verifies.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, opts, args[0])
		},
	}
	flags := cmd.Flags()
	flags.StringSliceVar(&opts.nameservers, "nameserver", nil, "DNS server address (host:port), repeatable")
	flags.BoolVar(&opts.dnssec, "dnssec", false, "request DNSSEC records")
	flags.StringVar(&opts.hostname, "hostname", "localhost", "authserv-id of the Authentication-Results value")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "overall time limit")
	return cmd
}

func runVerify(cmd *cobra.Command, opts verifyOptions, name string) error {
	msg, err := readMessage(cmd, name)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	resolver := dns.NewResolver(dns.ResolverConfig{
		Nameservers: opts.nameservers,
		DNSSEC:      opts.dnssec,
	})
	engine, err := opendkim.Open(opendkim.Config{Resolver: resolver, KeyCacheSize: -1})
	if err != nil {
		return err
	}
	defer engine.Close()
	if _, err := engine.SetKeyLookupHandler(opendkim.DNSKeyLookup(resolver)); err != nil {
		return err
	}

	s, err := engine.Verify("")
	if err != nil {
		return err
	}
	defer s.Close()

	testKey, verr := s.ProcessMessage(ctx, msg)
	var se *opendkim.StatusError
	if verr != nil && !errors.As(verr, &se) {
		return verr
	}

	ar, err := s.AuthResults(opts.hostname)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), ar)

	for _, si := range s.Signatures() {
		slog.Debug("signature",
			slog.Int("index", si.Index()),
			slog.String("domain", si.Domain()),
			slog.String("selector", si.Selector()),
			slog.String("status", string(si.Status())),
			slog.Any("error", si.Err()))
	}
	if verr != nil {
		slog.Info("verification failed", slog.String("session", s.ID()), slog.Any("error", verr))
		return errVerifyFailed
	}
	if testKey {
		slog.Warn("signing key is in test mode", slog.String("session", s.ID()))
	}
	return nil
}

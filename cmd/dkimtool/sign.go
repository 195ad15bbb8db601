package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/synqronlabs/opendkim"
	"github.com/synqronlabs/opendkim/dkim"
)

type signOptions struct {
	keyFile     string
	selector    string
	domain      string
	identity    string
	headerCanon string
	bodyCanon   string
	algorithm   string
	length      int64
}

func newSignCommand() *cobra.Command {
	var opts signOptions
	cmd := &cobra.Command{
		Use:   "sign [flags] MESSAGE",
		Short: "Print a DKIM-Signature header for a message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSign(cmd, opts, args[0])
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.keyFile, "key", "", "private key file (PEM)")
	flags.StringVarP(&opts.selector, "selector", "s", "", "selector")
	flags.StringVarP(&opts.domain, "domain", "d", "", "signing domain")
	flags.StringVarP(&opts.identity, "identity", "i", "", "signing identity (i=)")
	flags.StringVar(&opts.headerCanon, "header-canon", "relaxed", "header canonicalization")
	flags.StringVar(&opts.bodyCanon, "body-canon", "simple", "body canonicalization")
	flags.StringVarP(&opts.algorithm, "algorithm", "a", "", "signing algorithm (default from the key)")
	flags.Int64Var(&opts.length, "length", -1, "number of body bytes to sign, -1 for all")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("selector")
	_ = cmd.MarkFlagRequired("domain")
	return cmd
}

func runSign(cmd *cobra.Command, opts signOptions, name string) error {
	key, err := os.ReadFile(opts.keyFile)
	if err != nil {
		return err
	}
	msg, err := readMessage(cmd, name)
	if err != nil {
		return err
	}

	engine, err := opendkim.Open(opendkim.Config{KeyCacheSize: -1})
	if err != nil {
		return err
	}
	defer engine.Close()

	s, err := engine.Sign(dkim.SignParams{
		PrivateKey:  key,
		Selector:    opts.selector,
		Domain:      opts.domain,
		HeaderCanon: dkim.Canonicalization(opts.headerCanon),
		BodyCanon:   dkim.Canonicalization(opts.bodyCanon),
		Algorithm:   dkim.Algorithm(opts.algorithm),
		Length:      opts.length,
	})
	if err != nil {
		return err
	}
	defer s.Close()

	if opts.identity != "" {
		if err := s.SetSigner(opts.identity); err != nil {
			return err
		}
	}
	if _, err := s.ProcessMessage(context.Background(), msg); err != nil {
		return err
	}
	value, err := s.GetSigHdr()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", dkim.SignatureHeader, value)
	return nil
}

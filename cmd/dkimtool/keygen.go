package main

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/synqronlabs/opendkim/dkim"
)

func newKeygenCommand() *cobra.Command {
	var (
		keyType string
		bits    int
		testing bool
	)
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a signing key and its DNS record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var key crypto.Signer
			var err error
			switch keyType {
			case "rsa":
				key, err = rsa.GenerateKey(rand.Reader, bits)
			case "ed25519":
				_, key, err = ed25519.GenerateKey(rand.Reader)
			default:
				return fmt.Errorf("unknown key type %q", keyType)
			}
			if err != nil {
				return err
			}

			pemKey, err := dkim.MarshalPrivateKey(key)
			if err != nil {
				return err
			}
			rec, err := dkim.RecordForKey(key)
			if err != nil {
				return err
			}
			if testing {
				rec.Flags = []string{"y"}
			}
			txt, err := rec.ToTXT()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, string(pemKey))
			fmt.Fprintln(out, txt)
			return nil
		},
	}
	cmd.Flags().StringVarP(&keyType, "type", "t", "rsa", "key type: rsa or ed25519")
	cmd.Flags().IntVarP(&bits, "bits", "b", 2048, "RSA key size")
	cmd.Flags().BoolVar(&testing, "testing", false, "mark the record as a test key (t=y)")
	return cmd
}

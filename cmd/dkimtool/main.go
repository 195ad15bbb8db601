// Command dkimtool signs and verifies messages and generates DKIM keys.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var errVerifyFailed = errors.New("verification failed")

func main() {
	if err := newRootCommand().Execute(); err != nil {
		if !errors.Is(err, errVerifyFailed) {
			fmt.Fprintln(os.Stderr, "dkimtool:", err)
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:           "dkimtool",
		Short:         "Sign and verify DKIM signatures",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log callback activity")
	cmd.AddCommand(newSignCommand(), newVerifyCommand(), newKeygenCommand())
	return cmd
}

// readMessage reads the named file, or standard input for "-".
func readMessage(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(name)
}

package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bourkey/revalidate-webhook/pkg/auth"
	"github.com/bourkey/revalidate-webhook/pkg/config"
	"github.com/spf13/cobra"
)

func signCmd() *cobra.Command {
	var (
		secret   string
		bodyFile string
	)

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Print a signature header for a webhook body",
		Long: "Computes the " + config.DefaultSignatureHeader + " header value for a body, " +
			"for replaying deliveries with curl. The secret defaults to SANITY_REVALIDATE_SECRET.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("SANITY_REVALIDATE_SECRET")
			}
			if secret == "" {
				return fmt.Errorf("no secret: pass --secret or set SANITY_REVALIDATE_SECRET")
			}

			var (
				body []byte
				err  error
			)
			if bodyFile == "" || bodyFile == "-" {
				body, err = io.ReadAll(cmd.InOrStdin())
			} else {
				body, err = os.ReadFile(bodyFile)
			}
			if err != nil {
				return fmt.Errorf("failed to read body: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), auth.SignHeader(body, secret, time.Now()))
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "shared webhook secret")
	cmd.Flags().StringVarP(&bodyFile, "file", "f", "-", "body file, - for stdin")

	return cmd
}

package main

import (
	"fmt"
	"strings"

	"github.com/bourkey/revalidate-webhook/internal/models"
	"github.com/bourkey/revalidate-webhook/pkg/policy"
	"github.com/spf13/cobra"
)

func resolveCmd() *cobra.Command {
	var slug string

	cmd := &cobra.Command{
		Use:   "resolve <document-type>",
		Short: "Print the invalidation targets for a document type",
		Long: "Prints the targets a change to the given document type would invalidate.\n" +
			"Types with explicit rules: " + strings.Join(policy.KnownTypes(), ", ") + ".\n" +
			"Any other type invalidates only the tag named after it.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			event := models.ChangeEvent{Type: args[0], Slug: slug}
			for _, target := range policy.Resolve(event) {
				fmt.Fprintln(cmd.OutOrStdout(), target.String())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&slug, "slug", "", "document slug")

	return cmd
}

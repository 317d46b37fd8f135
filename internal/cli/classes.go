package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"offstore/internal/offline"
)

// NewClassesCommand creates the classes command.
func NewClassesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "classes",
		Short:         "List cached classes and pin groups",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := offline.Open(rootOpts.DBPath)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			classes, err := s.Rows().ClassNames(ctx)
			if err != nil {
				return err
			}
			groups, err := s.Rows().GroupNames(ctx)
			if err != nil {
				return err
			}

			doc := map[string]any{
				"classes": toAny(classes),
				"groups":  toAny(groups),
			}
			return writeDoc(cmd.OutOrStdout(), rootOpts.Format, doc)
		},
	}
}

func toAny(list []string) []any {
	out := make([]any, len(list))
	for i, s := range list {
		out[i] = s
	}
	return out
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "get <className> <objectId>",
		Short:         "Fetch one cached object by server identity",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := offline.Open(rootOpts.DBPath)
			if err != nil {
				return err
			}
			defer s.Close()

			obj := s.Registry().GetOrCreateInstance(args[0], args[1])
			if _, err := s.FetchLocally(cmd.Context(), obj); err != nil {
				return fmt.Errorf("fetch %s#%s: %w", args[0], args[1], err)
			}
			return writeDoc(cmd.OutOrStdout(), rootOpts.Format, displayObject(obj))
		},
	}
}

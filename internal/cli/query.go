package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"offstore/internal/offline"
	"offstore/internal/query"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Where    string
	Order    []string
	Skip     int
	Limit    int
	Includes []string
	Pin      string
	Count    bool
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <className>",
		Short: "Run an offline query against the local cache",
		Long: `Run an offline query against the local cache.

The --where flag takes a wire-format constraint document.

Example:
  offstore query GameScore --where '{"score":{"$gt":7}}' --order -score --limit 10`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Where, "where", "{}", "constraint document as JSON")
	cmd.Flags().StringArrayVar(&opts.Order, "order", nil, "sort key (prefix with - for descending); repeatable")
	cmd.Flags().IntVar(&opts.Skip, "skip", 0, "results to skip")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum results (0 = unlimited)")
	cmd.Flags().StringArrayVar(&opts.Includes, "include", nil, "dotted include path; repeatable")
	cmd.Flags().StringVar(&opts.Pin, "pin", "", "restrict to a pin group")
	cmd.Flags().BoolVar(&opts.Count, "count", false, "print the match count instead of results")

	return cmd
}

func runQuery(opts *QueryOptions, className string, cmd *cobra.Command) error {
	var rawWhere map[string]any
	if err := json.Unmarshal([]byte(opts.Where), &rawWhere); err != nil {
		return fmt.Errorf("invalid --where JSON: %w", err)
	}

	s, err := offline.Open(opts.DBPath)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	where, err := parseWhere(ctx, s, rawWhere)
	if err != nil {
		return err
	}

	q := &query.Query{
		ClassName:  className,
		Where:      where,
		Order:      opts.Order,
		Skip:       opts.Skip,
		Limit:      opts.Limit,
		Includes:   opts.Includes,
		Pin:        opts.Pin,
		IgnoreACLs: true, // the CLI inspects the cache; it has no acting user
	}

	if opts.Count {
		n, err := s.Count(ctx, q)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), n)
		return nil
	}

	results, err := s.Find(ctx, q)
	if err != nil {
		return err
	}
	docs := make([]any, len(results))
	for i, obj := range results {
		docs[i] = displayObject(obj)
	}
	if opts.Verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "%d result(s)\n", len(results))
	}
	return writeDoc(cmd.OutOrStdout(), opts.Format, docs)
}

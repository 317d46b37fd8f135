package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"offstore/internal/object"
	"offstore/internal/offline"
)

// fixture is one object in a YAML fixture file.
type fixture struct {
	ClassName string         `yaml:"className"`
	ObjectID  string         `yaml:"objectId"`
	Fields    map[string]any `yaml:"fields"`
}

// NewPinCommand creates the pin command.
func NewPinCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pin <group> <fixtures.yaml>",
		Short: "Load objects from a YAML fixture file into a pin group",
		Long: `Load objects from a YAML fixture file into a pin group.

The fixture file is a list of objects:

  - className: GameScore
    objectId: xWMyZ4YEGZ
    fields:
      name: alice
      score: 10`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPin(rootOpts, args[0], args[1], cmd)
		},
	}
}

func runPin(opts *RootOptions, group, path string, cmd *cobra.Command) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var fixtures []fixture
	if err := yaml.Unmarshal(raw, &fixtures); err != nil {
		return fmt.Errorf("parse fixtures: %w", err)
	}

	s, err := offline.Open(opts.DBPath)
	if err != nil {
		return err
	}
	defer s.Close()

	roots := make([]*object.Object, 0, len(fixtures))
	for i, f := range fixtures {
		if f.ClassName == "" {
			return fmt.Errorf("fixture %d: className is required", i)
		}
		var obj *object.Object
		if f.ObjectID != "" {
			obj = s.Registry().GetOrCreateInstance(f.ClassName, f.ObjectID)
		} else {
			obj = object.New(f.ClassName)
		}
		for key, value := range f.Fields {
			obj.Set(key, normalizeYAML(value))
		}
		roots = append(roots, obj)
	}

	if err := s.SaveGraph(cmd.Context(), group, roots, true); err != nil {
		return err
	}
	if opts.Verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "pinned %d object(s) under %q\n", len(roots), group)
	}
	return nil
}

// normalizeYAML converts the map types the YAML decoder produces into the
// string-keyed documents the object model stores.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for key, item := range t {
			out[key] = normalizeYAML(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for key, item := range t {
			out[fmt.Sprint(key)] = normalizeYAML(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalizeYAML(item)
		}
		return out
	case int:
		return float64(t)
	}
	return v
}

// NewUnpinCommand creates the unpin command.
func NewUnpinCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "unpin <group>",
		Short:         "Remove a pin group and delete its orphaned rows",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := offline.Open(rootOpts.DBPath)
			if err != nil {
				return err
			}
			defer s.Close()
			return s.UnpinAllByName(cmd.Context(), args[0])
		},
	}
}

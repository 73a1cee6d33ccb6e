package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/objectstore/internal/cli/document"
	"github.com/conduit-lang/objectstore/internal/cli/ui"
	"github.com/conduit-lang/objectstore/internal/orm/writer"
)

var (
	loadFixturesFlag string
	loadDedupFlag    bool
)

// NewLoadCommand creates the load command
func NewLoadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Store the object graphs of a fixture file",
		Long: `Store every root of a fixture file. Objects reachable from a root are
deduplicated against the store using the example fields the file declares;
each root is written as given unless --dedup-roots is set.`,
		Example: `  objectstore load --model model.yml --fixtures companies.yml`,
		RunE:    withEnvironment(runLoad),
	}

	cmd.Flags().StringVar(&loadFixturesFlag, "fixtures", "", "fixture file (required)")
	cmd.Flags().BoolVar(&loadDedupFlag, "dedup-roots", false, "deduplicate roots by example too")
	cmd.MarkFlagRequired("fixtures")

	return cmd
}

func runLoad(cmd *cobra.Command, env *environment) error {
	f, err := os.Open(loadFixturesFlag)
	if err != nil {
		return fmt.Errorf("failed to open fixtures: %w", err)
	}
	defer f.Close()

	fixtures, err := document.DecodeFixtures(f)
	if err != nil {
		return err
	}
	policy, err := fixtures.Policy(env.registry)
	if err != nil {
		return err
	}
	roots, err := fixtures.Build(env.registry)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	s, closeFn, err := env.openSession(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	var total writer.Result
	opts := writer.Options{Examples: policy, DedupRoot: loadDedupFlag}
	for _, root := range roots {
		result, err := s.Store(ctx, root, opts)
		if err != nil {
			return fmt.Errorf("failed to store %s: %w", root, err)
		}
		total.Inserted += result.Inserted
		total.Updated += result.Updated
		total.Merged += result.Merged
		total.Untouched += result.Untouched
		total.Links += result.Links
	}

	out := cmd.OutOrStdout()
	if err := ui.RenderKeyValues(out, [][2]string{
		{"inserted", fmt.Sprint(total.Inserted)},
		{"updated", fmt.Sprint(total.Updated)},
		{"merged", fmt.Sprint(total.Merged)},
		{"untouched", fmt.Sprint(total.Untouched)},
		{"links", fmt.Sprint(total.Links)},
	}); err != nil {
		return err
	}
	ui.WriteSuccess(out, fmt.Sprintf("stored %d roots", len(roots)), noColorFlag)
	return nil
}

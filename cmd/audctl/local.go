package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/audienced/internal/catalog"
	"github.com/fyrsmithlabs/audienced/internal/tui"
	"github.com/fyrsmithlabs/audienced/pkg/labels"
	"github.com/fyrsmithlabs/audienced/pkg/selection"
)

var (
	repair bool
	prune  bool
)

var labelsCmd = &cobra.Command{
	Use:   "labels [selection.json]",
	Short: "Print the labels of a selection",
	Long: `Resolve a selection payload to display names using a taxonomy file.

Examples:
  # Label a saved payload
  audctl labels --tree tree.json selection.json

  # Label from stdin
  echo '{"identityIds":[1]}' | audctl labels --tree tree.json -`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		snap, err := loadSnapshot(cmd.Context(), treePath, prune)
		if err != nil {
			return err
		}
		return runLabels(cmd.OutOrStdout(), snap, data)
	},
}

var checkCmd = &cobra.Command{
	Use:   "check [selection.json]",
	Short: "Check a selection against a taxonomy",
	Long: `Report ids missing from the taxonomy and selections that lack their
category or subcategory. With --repair the reconciled payload is printed
instead of failing.

Examples:
  audctl check --tree tree.json selection.json
  audctl check --tree tree.json --repair selection.json > fixed.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		snap, err := loadSnapshot(cmd.Context(), treePath, prune)
		if err != nil {
			return err
		}
		return runCheck(cmd.OutOrStdout(), snap, data, repair)
	},
}

var pickCmd = &cobra.Command{
	Use:   "pick [selection.json]",
	Short: "Pick an audience interactively",
	Long: `Open the terminal selector over a taxonomy file. The saved payload is
printed on exit; quitting without saving prints nothing.

Examples:
  audctl pick --tree tree.json
  audctl pick --tree tree.json current.json > next.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		initial := selection.Empty()
		if len(args) > 0 {
			data, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			if initial, err = parseSelection(data); err != nil {
				return err
			}
		}
		snap, err := loadSnapshot(cmd.Context(), treePath, prune)
		if err != nil {
			return err
		}
		final, ok, err := tui.Run(cmd.Context(), snap, snap.Engine.Repair(initial))
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		return writeJSON(cmd.OutOrStdout(), final.Payload())
	},
}

func init() {
	for _, c := range []*cobra.Command{labelsCmd, checkCmd, pickCmd} {
		c.Flags().BoolVar(&prune, "prune", false, "prune empty ancestors on deselect")
	}
	checkCmd.Flags().BoolVar(&repair, "repair", false, "print the repaired selection instead of failing")
}

// loadSnapshot reads the taxonomy file once.
func loadSnapshot(ctx context.Context, path string, prune bool) (*catalog.Snapshot, error) {
	if path == "" {
		return nil, errors.New("--tree is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	cat, err := catalog.Open(ctx, path, catalog.WithPolicy(selection.Policy{PruneEmptyAncestors: prune}))
	if err != nil {
		return nil, err
	}
	return cat.Current(), nil
}

type labelsOutput struct {
	Labels  labels.Labels `json:"labels"`
	Summary string        `json:"summary"`
}

func runLabels(w io.Writer, snap *catalog.Snapshot, data []byte) error {
	s, err := parseSelection(data)
	if err != nil {
		return err
	}
	l := labels.Project(s, snap.Labels)
	return writeJSON(w, labelsOutput{Labels: l, Summary: l.Summary()})
}

func runCheck(w io.Writer, snap *catalog.Snapshot, data []byte, repair bool) error {
	s, err := parseSelection(data)
	if err != nil {
		return err
	}
	if repair {
		return writeJSON(w, snap.Engine.Repair(s).Payload())
	}
	if err := snap.Engine.Validate(s); err != nil {
		var n int
		for _, v := range violations(err) {
			fmt.Fprintln(w, v.Error())
			n++
		}
		return fmt.Errorf("%d problem(s) found", n)
	}
	fmt.Fprintf(w, "ok: %d id(s) checked against taxonomy %s\n", s.Len(), snap.Version)
	return nil
}

// violations unpacks the joined error Validate returns.
func violations(err error) []error {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		return joined.Unwrap()
	}
	return []error{err}
}

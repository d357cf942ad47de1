package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/apply-agent/internal/fieldsync"
	"github.com/jonathan/apply-agent/internal/observability"
	"github.com/jonathan/apply-agent/internal/types"
)

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "Inspect and synchronise the learned field mapping",
}

var fieldsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the local field mapping",
	RunE:  runFieldsList,
}

var fieldsHydrateCmd = &cobra.Command{
	Use:   "hydrate",
	Short: "Pull the remote mapping and merge it into the local one",
	RunE:  runFieldsHydrate,
}

var fieldsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push the local mapping and merge the acknowledgement",
	RunE:  runFieldsSync,
}

var fieldsMergeCmd = &cobra.Command{
	Use:   "merge <local.json> <remote.json>",
	Short: "Merge two mapping files offline",
	Long: `Merges two learned-field files with last-write-wins on updatedAt (remote wins ties)
and writes the result to --out, or stdout.`,
	Args: cobra.ExactArgs(2),
	RunE: runFieldsMerge,
}

var (
	fieldsForce    bool
	fieldsMergeOut string
)

func init() {
	fieldsHydrateCmd.Flags().BoolVar(&fieldsForce, "force", false, "Run even when sync_enabled is off")
	fieldsSyncCmd.Flags().BoolVar(&fieldsForce, "force", false, "Run even when sync_enabled is off")
	fieldsMergeCmd.Flags().StringVarP(&fieldsMergeOut, "out", "o", "", "Write the merged mapping to this file")

	fieldsCmd.AddCommand(fieldsListCmd, fieldsHydrateCmd, fieldsSyncCmd, fieldsMergeCmd)
	rootCmd.AddCommand(fieldsCmd)
}

func runFieldsList(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer a.Close()

	repo, err := a.repository(cmd.Context())
	if err != nil {
		return err
	}
	fields, err := repo.LoadLearnedFields(cmd.Context())
	if err != nil {
		return err
	}
	a.printer.PrintLearnedFields(fields)
	return nil
}

func runFieldsHydrate(cmd *cobra.Command, _ []string) error {
	return withSyncer(cmd, func(s *fieldsync.Syncer) (*fieldsync.Result, error) {
		return s.Hydrate(cmd.Context())
	})
}

func runFieldsSync(cmd *cobra.Command, _ []string) error {
	return withSyncer(cmd, func(s *fieldsync.Syncer) (*fieldsync.Result, error) {
		return s.Sync(cmd.Context())
	})
}

func withSyncer(cmd *cobra.Command, op func(*fieldsync.Syncer) (*fieldsync.Result, error)) error {
	a, err := newApp(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer a.Close()

	repo, err := a.repository(cmd.Context())
	if err != nil {
		return err
	}
	s := a.syncer(repo)
	if fieldsForce {
		s.SetEnabled(true)
	}

	res, err := op(s)
	if err != nil {
		return err
	}
	a.printer.PrintMergeSummary(res)
	return nil
}

func runFieldsMerge(cmd *cobra.Command, args []string) error {
	local, err := readLearnedFields(args[0])
	if err != nil {
		return err
	}
	remote, err := readLearnedFields(args[1])
	if err != nil {
		return err
	}

	merged := fieldsync.Merge(local, remote)
	res := &fieldsync.Result{
		Direction: fieldsync.DirectionMerge,
		Summary:   fieldsync.Summarize(local, merged),
		Total:     len(merged),
	}

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode merged fields: %w", err)
	}

	if fieldsMergeOut == "" {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}
	if err := os.WriteFile(fieldsMergeOut, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", fieldsMergeOut, err)
	}
	res.Persisted = !merged.Equal(local)
	observability.NewPrinter(cmd.OutOrStdout()).PrintMergeSummary(res)
	return nil
}

// readLearnedFields accepts either a bare mapping or the service's {"fields": {...}} payload.
func readLearnedFields(path string) (types.LearnedFields, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var wrapped struct {
		Fields types.LearnedFields `json:"fields"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Fields != nil {
		return wrapped.Fields, nil
	}

	var fields types.LearnedFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if fields == nil {
		fields = types.LearnedFields{}
	}
	return fields, nil
}

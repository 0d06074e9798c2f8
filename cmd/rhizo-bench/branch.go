package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rhizo/internal/engine"
)

var branchCmd = &cobra.Command{
	Use:   "branch",
	Short: "Create, diff, and merge branches",
}

var branchCreateCmd = &cobra.Command{
	Use:   "create <name> [--from <parent>]",
	Args:  cobra.ExactArgs(1),
	Short: "Create a branch as a child of --from (default branch if omitted)",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := engine.Open(rootDir)
		if err != nil {
			return err
		}
		from, _ := cmd.Flags().GetString("from")
		b, err := e.Branches.Create(args[0], from, "")
		if err != nil {
			return err
		}
		fmt.Printf("created branch %s (head=%v)\n", b.Name, b.Head)
		return nil
	},
}

var branchDiffCmd = &cobra.Command{
	Use:   "diff <source> <target>",
	Args:  cobra.ExactArgs(2),
	Short: "Three-way diff between two branches",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := engine.Open(rootDir)
		if err != nil {
			return err
		}
		d, err := e.Branches.Diff(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("unchanged=%v\nsource_only=%v\ntarget_only=%v\nconflicts=%v\nadded_in_source=%v\nadded_in_target=%v\n",
			d.Unchanged, d.SourceOnlyChanges, d.TargetOnlyChanges, d.Modified, d.AddedInSource, d.AddedInTarget)
		return nil
	},
}

var branchMergeCmd = &cobra.Command{
	Use:   "merge <source> <target>",
	Args:  cobra.ExactArgs(2),
	Short: "Merge source into target",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := engine.Open(rootDir)
		if err != nil {
			return err
		}
		if err := e.Branches.Merge(args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("merged %s into %s\n", args[0], args[1])
		return nil
	},
}

func init() {
	branchCreateCmd.Flags().String("from", "", "parent branch")
	branchCmd.AddCommand(branchCreateCmd, branchDiffCmd, branchMergeCmd)
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rhizo/internal/changelog"
	"rhizo/internal/engine"
)

var changelogBranch string
var changelogTables []string
var changelogLimit int

var changelogCmd = &cobra.Command{
	Use:   "changelog",
	Short: "List committed transactions as per-table before/after deltas",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := engine.Open(rootDir)
		if err != nil {
			return err
		}
		q := changelog.NewQuery()
		if changelogBranch != "" {
			q = q.OnBranch(changelogBranch)
		}
		if len(changelogTables) > 0 {
			q = q.ForTables(changelogTables...)
		}
		if changelogLimit > 0 {
			q = q.WithLimit(changelogLimit)
		}
		entries, err := e.Changelog.Query(q)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			fmt.Printf("tx %d (epoch %d, %s): ", entry.TxID, entry.EpochID, entry.Branch)
			for _, c := range entry.Changes {
				old := "new"
				if !c.IsNewTable() {
					old = fmt.Sprintf("%d", *c.OldVersion)
				}
				fmt.Printf("%s %s->%d ", c.TableName, old, c.NewVersion)
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	changelogCmd.Flags().StringVar(&changelogBranch, "branch", "", "filter by branch")
	changelogCmd.Flags().StringSliceVar(&changelogTables, "table", nil, "filter by table (repeatable)")
	changelogCmd.Flags().IntVar(&changelogLimit, "limit", 0, "max entries (0 = unlimited)")
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rhizo/internal/engine"
)

var commitTable string
var commitFiles []string

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Put files into the chunk store and commit a new table version",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := engine.Open(rootDir)
		if err != nil {
			return err
		}
		hashes := make([]string, 0, len(commitFiles))
		for _, path := range commitFiles {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("commit: read %s: %w", path, err)
			}
			hash, err := e.Chunks.Put(data)
			if err != nil {
				return fmt.Errorf("commit: put %s: %w", path, err)
			}
			hashes = append(hashes, hash)
		}
		version, err := e.Catalog.CommitNextVersion(commitTable, hashes)
		if err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		fmt.Printf("committed %s@%d (%d chunks)\n", commitTable, version, len(hashes))
		return nil
	},
}

func init() {
	commitCmd.Flags().StringVar(&commitTable, "table", "", "table name")
	commitCmd.Flags().StringSliceVar(&commitFiles, "file", nil, "file to chunk and commit (repeatable)")
	commitCmd.MarkFlagRequired("table")
}

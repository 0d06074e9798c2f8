// Command rhizo-bench is a thin cobra harness for exercising the storage
// engine end to end: init a root directory, commit table versions,
// create and merge branches, run transactions, and simulate a
// coordination-free cluster. It is a manual-testing surface only — the
// core packages under internal/ have no dependency on it.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootDir string

var rootCmd = &cobra.Command{
	Use:   "rhizo-bench",
	Short: "Exercise the rhizo storage engine from the command line",
}

func main() {
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", ".rhizo", "engine root directory")
	rootCmd.AddCommand(initCmd, commitCmd, branchCmd, txCmd, changelogCmd, simulateCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "rhizo-bench:", err)
		os.Exit(1)
	}
}

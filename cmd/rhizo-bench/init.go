package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rhizo/internal/config"
	"rhizo/internal/engine"
)

var initEpochPreset string
var initNodeID string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new engine root directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := engine.Open(rootDir); err != nil {
			return fmt.Errorf("init: %w", err)
		}
		cfg := config.Default(rootDir)
		cfg.EpochPreset = initEpochPreset
		cfg.NodeID = initNodeID
		if err := config.WriteTOML(cfg.Root+"/rhizo.toml", cfg); err != nil {
			return fmt.Errorf("init: write config: %w", err)
		}
		fmt.Printf("initialized rhizo root at %s (epoch preset %s)\n", rootDir, cfg.EpochPreset)
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initEpochPreset, "epoch-preset", "single_node", "epoch configuration preset (single_node, high_throughput, low_latency)")
	initCmd.Flags().StringVar(&initNodeID, "node-id", "", "node id for coordination-free mode")
}

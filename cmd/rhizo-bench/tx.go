package main

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/cobra"

	"rhizo/internal/engine"
	"rhizo/internal/rzerr"
	"rhizo/internal/txn"
)

var txBranch string
var txRetry bool

var txCmd = &cobra.Command{
	Use:   "tx",
	Short: "Begin and commit transactions",
}

var txBeginCmd = &cobra.Command{
	Use:   "begin",
	Short: "Begin a transaction and print its id",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := engine.Open(rootDir)
		if err != nil {
			return err
		}
		rec, err := e.Txns.Begin(txBranch)
		if err != nil {
			return err
		}
		fmt.Printf("tx %d started on %s, epoch %d\n", rec.TxID, rec.Branch, rec.EpochID)
		return nil
	},
}

var txCommitCmd = &cobra.Command{
	Use:   "commit <tx-id>",
	Args:  cobra.ExactArgs(1),
	Short: "Commit a transaction; --retry retries on Conflict with exponential backoff",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := engine.Open(rootDir)
		if err != nil {
			return err
		}
		var txID uint64
		if _, err := fmt.Sscanf(args[0], "%d", &txID); err != nil {
			return fmt.Errorf("tx commit: invalid tx id %q", args[0])
		}

		commit := func() (*txn.TransactionRecord, error) { return e.Txns.Commit(txID) }
		if !txRetry {
			rec, err := commit()
			if err != nil {
				return err
			}
			fmt.Printf("tx %d committed\n", rec.TxID)
			return nil
		}

		bo := backoff.NewExponentialBackOff()
		bo.MaxElapsedTime = 10 * time.Second
		var rec *txn.TransactionRecord
		err = backoff.Retry(func() error {
			r, err := commit()
			if err != nil {
				if rzerr.IsConflict(err) {
					return err // retryable: WriteConflict/SnapshotConflict
				}
				return backoff.Permanent(err)
			}
			rec = r
			return nil
		}, bo)
		if err != nil {
			return err
		}
		fmt.Printf("tx %d committed (after retry)\n", rec.TxID)
		return nil
	},
}

func init() {
	txBeginCmd.Flags().StringVar(&txBranch, "branch", "main", "branch to begin on")
	txCommitCmd.Flags().BoolVar(&txRetry, "retry", false, "retry on WriteConflict/SnapshotConflict with exponential backoff")
	txCmd.AddCommand(txBeginCmd, txCommitCmd)
}

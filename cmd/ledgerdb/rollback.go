package main

import (
	"github.com/spf13/cobra"

	"github.com/quaylabs/ledgerdb/core/state"
	"github.com/quaylabs/ledgerdb/core/types"
)

var rollbackHeight uint64

func init() {
	rollbackCmd.Flags().Uint64Var(&rollbackHeight, "height", 0, "height the consensus layer rolled back to")
	rollbackCmd.MarkFlagRequired("height")
	rootCmd.AddCommand(rollbackCmd)
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Rewind the state by one block to match the consensus layer",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := state.Open(dbPath, state.Options{})
		if err != nil {
			return err
		}
		defer db.Close()

		return db.Rollback(types.BlockHeight(rollbackHeight))
	},
}

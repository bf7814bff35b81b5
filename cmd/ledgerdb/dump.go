package main

import (
	"github.com/spf13/cobra"

	"github.com/quaylabs/ledgerdb/core/state"
	"github.com/quaylabs/ledgerdb/core/types"
)

var (
	dumpOut      string
	dumpHistoric bool
	dumpHeight   uint64
)

func init() {
	dumpCmd.Flags().StringVar(&dumpOut, "out", "dump_db", "output file path, the height and extension are appended")
	dumpCmd.Flags().BoolVar(&dumpHistoric, "historic", false, "also dump the height-prepended diff and block keys")
	dumpCmd.Flags().Uint64Var(&dumpHeight, "height", 0, "block height to dump, defaults to the last committed one")
	rootCmd.AddCommand(dumpCmd)
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the block state to a text file",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := state.Open(dbPath, state.Options{ReadOnly: true})
		if err != nil {
			return err
		}
		defer db.Close()

		var height *types.BlockHeight
		if cmd.Flags().Changed("height") {
			h := types.BlockHeight(dumpHeight)
			height = &h
		}
		return db.DumpBlock(dumpOut, dumpHistoric, height)
	},
}

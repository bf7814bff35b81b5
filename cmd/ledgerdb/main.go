package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	dbPath string
)

var rootCmd = &cobra.Command{
	Use:   "ledgerdb",
	Short: "Admin tooling for the block-state storage engine",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to the state database directory")
	rootCmd.MarkPersistentFlagRequired("db")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

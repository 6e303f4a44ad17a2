package cmd

import (
	"github.com/spf13/cobra"
)

var RootCmd = &cobra.Command{
	Use:   "splitbook",
	Short: "split bills and settle group balances",
	Long:  `splitbook tracks shared bills in groups, keeps an exact balance ledger, and plans the cheapest way to settle up`,
}

func init() {
	RootCmd.AddCommand(planCmd())
	RootCmd.AddCommand(serverCommand())
	RootCmd.AddCommand(migrateCommand())
}

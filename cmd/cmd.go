package cmd

import (
	"github.com/spf13/cobra"
)

var RootCmd = &cobra.Command{
	Use:   "splitledger",
	Short: "split group expenses and settle debts",
	Long:  `splitledger tracks shared expenses in groups, derives who owes whom, and settles debts with as few payments as possible`,
}

func init() {
	RootCmd.AddCommand(planCmd())
	RootCmd.AddCommand(serverCommand())
	RootCmd.AddCommand(migrateCommand())
}

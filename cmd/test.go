package cmd

import (
	"github.com/spf13/cobra"
)

// testCmd represents the test command
var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Invoke a specified command for testing",
}

func init() {
	rootCmd.AddCommand(testCmd)
}

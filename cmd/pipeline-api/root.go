package main

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use: "pipeline-api",
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(sweepCmd)
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thesyncim/droidmedia"
)

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "List registered recorder backends",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range droidmedia.AvailableBackends() {
			note := ""
			if name == droidmedia.BackendNative && !droidmedia.IsNativeAvailable() {
				note = " (shim library not found)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", name, note)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(backendsCmd)
}

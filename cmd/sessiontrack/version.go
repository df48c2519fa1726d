package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/venuekit/sessiontrack"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of sessiontrack",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sessiontrack version %s\n", strings.TrimSpace(sessiontrack.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

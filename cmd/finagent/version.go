package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ternarybob/finagent/internal/common"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		common.LoadVersionFromFile()
		fmt.Printf("finagent version %s\n", common.GetFullVersion())
	},
}

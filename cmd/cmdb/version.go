package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bgp-cmdb/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	// no configuration needed
	PersistentPreRun: func(cmd *cobra.Command, args []string) {},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Build Version:    ", version.Build)
		fmt.Println("Build date:       ", version.BuildDate)
		fmt.Println("Git commit:       ", version.GitRevision)
	},
}

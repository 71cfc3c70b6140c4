package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/objectis/cmd/kv"
	"github.com/ValentinKolb/objectis/cmd/obj"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "objectis",
		Short: "object persistence on top of key-value stores",
		Long: fmt.Sprintf(`objectis (v%s)

Stores typed records in a key-value backend (in-memory or redis),
keeps a per-type index and named collections, and queries records
with a chainable filter.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of objectis",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("objectis v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(obj.ObjectCommands)
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

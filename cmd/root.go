package cmd

import (
	"fmt"
	"os"

	"github.com/lbrandt/cedar/cmd/kv"
	"github.com/lbrandt/cedar/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.1"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "cedar",
		Short: "embedded key-value store",
		Long: fmt.Sprintf(`cedar (v%s)

An embedded, crash-consistent key-value store with typed values
(strings, numbers, booleans, lists) and in-place mutation operators,
persisted through a write-ahead log and periodic snapshots.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of cedar",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("cedar v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "log-level"
	RootCmd.PersistentFlags().String(key, "warn", util.WrapString("log level (debug, info, warn, error)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

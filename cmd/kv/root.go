package kv

import (
	"github.com/lbrandt/cedar/cmd/util"
	"github.com/lbrandt/cedar/lib/store"
	"github.com/lbrandt/cedar/lib/store/estore"
	"github.com/spf13/cobra"
)

var (
	kvStore store.IStore

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:                "kv",
		Short:              "Perform key-value store operations",
		PersistentPreRunE:  setupStore,
		PersistentPostRunE: closeStore,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add the store configuration flags to the KV command group
	util.SetupStoreFlags(KeyValueCommands)

	// Add subcommands
	KeyValueCommands.AddCommand(setCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(hasCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(pushCmd)
	KeyValueCommands.AddCommand(pullCmd)
	KeyValueCommands.AddCommand(addCmd)
	KeyValueCommands.AddCommand(subCmd)
	KeyValueCommands.AddCommand(lenCmd)
	KeyValueCommands.AddCommand(sizeCmd)
	KeyValueCommands.AddCommand(infoCmd)
	KeyValueCommands.AddCommand(compactCmd)
	KeyValueCommands.AddCommand(perfTestCmd)
}

// setupStore opens the store directory all kv subcommands operate on
func setupStore(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	if err := util.SetupLogLevel(); err != nil {
		return err
	}

	opts, err := util.GetStoreOptions()
	if err != nil {
		return err
	}

	kvStore, err = estore.Open(util.GetStorePath(), opts)
	return err
}

// closeStore flushes and closes the store after the subcommand ran
func closeStore(_ *cobra.Command, _ []string) error {
	if kvStore == nil {
		return nil
	}
	return kvStore.Close()
}

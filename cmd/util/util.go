package util

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/lbrandt/cedar/lib/logger"
	"github.com/lbrandt/cedar/lib/store/estore"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupStoreFlags adds the store configuration flags to a command
func SetupStoreFlags(cmd *cobra.Command) {
	key := "path"
	cmd.PersistentFlags().String(key, "./cedar-data", WrapString("Path of the store directory"))

	key = "wal-sync"
	cmd.PersistentFlags().String(key, "always", WrapString("WAL durability mode: always (fsync per write) or batched (fsync on an interval)"))

	key = "wal-sync-interval"
	cmd.PersistentFlags().Int(key, 100, WrapString("Flush interval for batched mode (in milliseconds)"))

	key = "wal-segment-size"
	cmd.PersistentFlags().Int(key, 64, WrapString("Maximum size of one WAL segment file (in MB)"))

	key = "compaction-threshold"
	cmd.PersistentFlags().Int(key, 128, WrapString("Total WAL size that triggers background compaction (in MB)"))
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("cedar")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetStorePath retrieves the configured store directory
func GetStorePath() string {
	return viper.GetString("path")
}

// GetStoreOptions reads store options from viper
func GetStoreOptions() (*estore.Options, error) {
	opts := estore.DefaultOptions()

	switch mode := viper.GetString("wal-sync"); mode {
	case "always":
		opts.WALSync = estore.SyncAlways
	case "batched":
		opts.WALSync = estore.SyncBatched
	default:
		return nil, fmt.Errorf("invalid wal-sync mode %q (must be always or batched)", mode)
	}

	opts.WALSyncInterval = time.Duration(viper.GetInt("wal-sync-interval")) * time.Millisecond
	opts.WALSegmentSize = int64(viper.GetInt("wal-segment-size")) << 20
	opts.CompactionThresholdBytes = int64(viper.GetInt("compaction-threshold")) << 20
	return opts, nil
}

// SetupLogLevel applies the configured log level to all loggers
func SetupLogLevel() error {
	level, err := logger.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return err
	}
	logger.SetGlobalLevel(level)
	return nil
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

package kv

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/VictoriaMetrics/metrics"
	"github.com/lbrandt/cedar/lib/value"
	"github.com/spf13/cobra"
)

// parseValueArg parses a command-line value. Arguments are read as JSON
// (numbers, booleans, quoted strings, lists); anything that is not valid
// JSON is taken as a plain string, so `cedar kv set name alice` works
// without shell-quoted quotes.
func parseValueArg(arg string) value.Value {
	if v, err := value.ParseJSON([]byte(arg)); err == nil {
		return v
	}
	return value.String(arg)
}

// parseNumberArg parses a numeric command-line argument.
func parseNumberArg(arg string) (float64, error) {
	f, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return 0, fmt.Errorf("delta must be a number: %w", err)
	}
	return f, nil
}

var (
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if err := kvStore.Set(key, parseValueArg(args[1])); err != nil {
				return err
			}
			fmt.Println("set successfully")
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			v, found, err := kvStore.Get(key)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%v, value=%s\n", key, found, v)
			return nil
		},
	}
	hasCmd = &cobra.Command{
		Use:   "has [key]",
		Short: "Checks if a key exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			found, err := kvStore.Has(key)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%t\n", key, found)
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key value pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := kvStore.Delete(args[0]); err != nil {
				return err
			}
			fmt.Println("delete successfully")
			return nil
		},
	}
	pushCmd = &cobra.Command{
		Use:   "push [key] [element]",
		Short: "Appends an element to the list stored at a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := kvStore.Push(args[0], parseValueArg(args[1])); err != nil {
				return err
			}
			fmt.Println("push successfully")
			return nil
		},
	}
	pullCmd = &cobra.Command{
		Use:   "pull [key] [element]",
		Short: "Removes all matching elements from the list stored at a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := kvStore.Pull(args[0], parseValueArg(args[1])); err != nil {
				return err
			}
			fmt.Println("pull successfully")
			return nil
		},
	}
	addCmd = &cobra.Command{
		Use:   "add [key] [delta]",
		Short: "Adds a number to the value stored at a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			delta, err := parseNumberArg(args[1])
			if err != nil {
				return err
			}
			v, err := kvStore.Add(args[0], delta)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, value=%s\n", args[0], v)
			return nil
		},
	}
	subCmd = &cobra.Command{
		Use:   "sub [key] [delta]",
		Short: "Subtracts a number from the value stored at a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			delta, err := parseNumberArg(args[1])
			if err != nil {
				return err
			}
			v, err := kvStore.Subtract(args[0], delta)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, value=%s\n", args[0], v)
			return nil
		},
	}
	lenCmd = &cobra.Command{
		Use:   "len [key]",
		Short: "Prints the length of the string or list stored at a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := kvStore.Length(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, length=%d\n", args[0], n)
			return nil
		},
	}
	sizeCmd = &cobra.Command{
		Use:   "size",
		Short: "Prints the number of entries in the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := kvStore.Size()
			if err != nil {
				return err
			}
			fmt.Printf("size=%d\n", n)
			return nil
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Prints store and on-disk state information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := kvStore.Info()
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))

			if showMetrics, _ := cmd.Flags().GetBool("metrics"); showMetrics {
				fmt.Println()
				metrics.WritePrometheus(os.Stdout, true)
			}
			return nil
		},
	}
	compactCmd = &cobra.Command{
		Use:   "compact",
		Short: "Forces a snapshot and drops the covered WAL segments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			compactor, ok := kvStore.(interface{ Compact() error })
			if !ok {
				return fmt.Errorf("store backend does not support manual compaction")
			}
			if err := compactor.Compact(); err != nil {
				return err
			}
			fmt.Println("compact successfully")
			return nil
		},
	}
)

func init() {
	infoCmd.Flags().Bool("metrics", false, "Also dump internal counters in Prometheus text format")
}

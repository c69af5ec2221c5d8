package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

// cmdRoot is the base command when no other command has been specified.
var cmdRoot = &cobra.Command{
	Use:   "hedgehog",
	Short: "Inspect and edit a Hedgehog key-value map",
	Long: `
hedgehog operates on a Hedgehog map's on-disk files directly, without an
application linking the library: put and get string values, remove keys,
compact a map's files, or print its entry count.
`,
	SilenceErrors:     true,
	SilenceUsage:      true,
	DisableAutoGenTag: true,

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
		os.Exit(0)
	},
}

func init() {
	f := cmdRoot.PersistentFlags()
	f.StringVar(&commonOpts.DataPath, "data-path", ".", "directory holding the map's files")
	f.StringVar(&commonOpts.Name, "name", "hedgehog", "map name (the base filename component)")
	f.IntVar(&commonOpts.Shards, "shards", 1, "concurrency factor used when the map was created")
}

func main() {
	if err := cmdRoot.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

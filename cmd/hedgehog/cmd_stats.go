package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cmdStats = &cobra.Command{
	Use:   "stats",
	Short: "Print the map's entry count",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStats()
	},
}

func init() {
	cmdRoot.AddCommand(cmdStats)
}

func runStats() error {
	m, err := openMap()
	if err != nil {
		return err
	}
	defer m.Close()

	size, err := m.Size()
	if err != nil {
		return err
	}

	fmt.Printf("name=%s shards=%d entries=%d\n", commonOpts.Name, commonOpts.Shards, size)
	return nil
}

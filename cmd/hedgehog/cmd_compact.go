package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cmdCompact = &cobra.Command{
	Use:   "compact",
	Short: "Reclaim space orphaned by overwritten or removed entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCompact()
	},
}

func init() {
	cmdRoot.AddCommand(cmdCompact)
}

func runCompact() error {
	m, err := openMap()
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Compact(); err != nil {
		return err
	}

	fmt.Println("compact complete")
	return nil
}

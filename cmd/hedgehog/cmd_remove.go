package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cmdRemove = &cobra.Command{
	Use:   "remove <key>",
	Short: "Remove a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRemove(args[0])
	},
}

func init() {
	cmdRoot.AddCommand(cmdRemove)
}

func runRemove(key string) error {
	m, err := openMap()
	if err != nil {
		return err
	}
	defer m.Close()

	_, had, err := m.Remove(key)
	if err != nil {
		return err
	}
	if !had {
		return fmt.Errorf("key %q not found", key)
	}

	fmt.Printf("removed %q\n", key)
	return nil
}

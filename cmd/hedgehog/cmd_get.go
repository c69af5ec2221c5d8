package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cmdGet = &cobra.Command{
	Use:   "get <key>",
	Short: "Retrieve a key's value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGet(args[0])
	},
}

func init() {
	cmdRoot.AddCommand(cmdGet)
}

func runGet(key string) error {
	m, err := openMap()
	if err != nil {
		return err
	}
	defer m.Close()

	value, found, err := m.Get(key)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("key %q not found", key)
	}

	fmt.Println(value)
	return nil
}

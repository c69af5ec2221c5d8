package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cmdPut = &cobra.Command{
	Use:   "put <key> <value>",
	Short: "Insert or update a key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPut(args[0], args[1])
	},
}

func init() {
	cmdRoot.AddCommand(cmdPut)
}

func runPut(key, value string) error {
	m, err := openMap()
	if err != nil {
		return err
	}
	defer m.Close()

	_, had, err := m.Put(key, value)
	if err != nil {
		return err
	}
	if had {
		fmt.Printf("updated %q\n", key)
	} else {
		fmt.Printf("inserted %q\n", key)
	}
	return nil
}

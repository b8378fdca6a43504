package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wippyai/wasmgen/wasm"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.wasm>",
	Short: "Summarize and validate a module",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		m, err := wasm.ParseModule(data)
		if err != nil {
			return fmt.Errorf("decode %s: %w", args[0], err)
		}
		fmt.Println(titleStyle.Render("wasmgen inspect") + " " + args[0])
		fmt.Println()
		fmt.Print(renderSummary(m, len(data)))
		if err := m.Validate(); err != nil {
			fmt.Println(errorStyle.Render("invalid: " + err.Error()))
			return err
		}
		success("valid")
		return nil
	},
}

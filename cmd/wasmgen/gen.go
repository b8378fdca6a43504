package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wippyai/wasmgen"
	"github.com/wippyai/wasmgen/corpus"
)

var genCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate one module",
	Long: `Generate one module from a seed or from a file of raw decision bytes.
The module is written to --output, or to stdout when stdout is not a terminal.`,
	RunE: runGen,
}

func init() {
	addConfigFlags(genCmd)
	genCmd.Flags().Uint64("seed", 0, "seed expanded into decision bytes")
	genCmd.Flags().String("input", "", "file of raw decision bytes, overrides --seed")
	genCmd.Flags().StringP("output", "o", "", "output file")
	genCmd.Flags().Bool("check", false, "compile the module with wazero")
}

func runGen(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	seed, _ := cmd.Flags().GetUint64("seed")
	input, _ := cmd.Flags().GetString("input")
	output, _ := cmd.Flags().GetString("output")
	check, _ := cmd.Flags().GetBool("check")

	data := wasmgen.SeedBytes(seed, wasmgen.DefaultStreamSize)
	if input != "" {
		if data, err = os.ReadFile(input); err != nil {
			return err
		}
	}
	m, err := wasmgen.GenerateModule(cfg, data)
	if err != nil {
		return err
	}
	bin := m.Encode()

	ctx := context.Background()
	v := corpus.NewValidator(ctx)
	defer v.Close(ctx)
	if err := v.Validate(bin); err != nil {
		return err
	}
	if check {
		if !corpus.EngineCompatible(cfg) {
			warning("configuration uses features wazero does not compile; check may fail")
		}
		if err := v.Compile(ctx, bin); err != nil {
			return err
		}
		success("wazero compiled the module")
	}

	if output == "" {
		if isTerminal(os.Stdout) {
			return fmt.Errorf("refusing to write a binary module to a terminal, use --output")
		}
		_, err := os.Stdout.Write(bin)
		return err
	}
	if err := os.WriteFile(output, bin, 0o644); err != nil {
		return err
	}
	success("wrote %s (%d bytes, %d funcs, %d types)", output, len(bin), len(m.Funcs()), len(m.Types()))
	return nil
}

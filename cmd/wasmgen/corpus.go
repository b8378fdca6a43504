package main

import (
	"github.com/spf13/cobra"

	"github.com/wippyai/wasmgen/corpus"
)

var corpusCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Generate a directory of modules with a manifest",
	RunE:  runCorpus,
}

func init() {
	addConfigFlags(corpusCmd)
	corpusCmd.Flags().String("dir", "corpus", "output directory")
	corpusCmd.Flags().Int("count", 100, "number of modules")
	corpusCmd.Flags().Uint64("first-seed", 0, "seed of the first module")
	corpusCmd.Flags().IntP("jobs", "j", 0, "parallel jobs (0 = GOMAXPROCS)")
	corpusCmd.Flags().Bool("swarm", false, "draw a random configuration per module")
	corpusCmd.Flags().Bool("compile", true, "compile engine-compatible modules with wazero")
}

func runCorpus(cmd *cobra.Command, _ []string) error {
	cfg, name, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	opts := corpus.Options{Config: cfg, Preset: name}
	opts.Dir, _ = cmd.Flags().GetString("dir")
	opts.Count, _ = cmd.Flags().GetInt("count")
	opts.FirstSeed, _ = cmd.Flags().GetUint64("first-seed")
	opts.Jobs, _ = cmd.Flags().GetInt("jobs")
	opts.Swarm, _ = cmd.Flags().GetBool("swarm")
	opts.Compile, _ = cmd.Flags().GetBool("compile")

	m, err := corpus.Produce(cmd.Context(), opts)
	if err != nil {
		return err
	}
	counts := m.Counts()
	success("%d modules in %s", counts[corpus.StatusOK], opts.Dir)
	if n := counts[corpus.StatusBudget]; n > 0 {
		warning("%d seeds exceeded the export type size budget", n)
	}
	if n := counts[corpus.StatusRejected]; n > 0 {
		warning("%d modules rejected by wazero, see %s", n, corpus.ManifestName)
	}
	return nil
}

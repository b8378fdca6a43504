package corpus

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/wasmgen"
	"github.com/wippyai/wasmgen/config"
	"github.com/wippyai/wasmgen/errors"
	"github.com/wippyai/wasmgen/oracle"
	"github.com/wippyai/wasmgen/smith"
)

// swarmConfigBytes is the prefix of each seed's stream spent on drawing a
// configuration in swarm mode.
const swarmConfigBytes = 256

// Options controls Produce.
type Options struct {
	// Dir receives one .wasm file per seed plus the manifest.
	Dir string
	// Preset names Config in the manifest.
	Preset string
	Config config.Config
	// FirstSeed is the seed of the first module; seeds are consecutive.
	FirstSeed uint64
	Count     int
	// Jobs bounds parallelism. Zero means GOMAXPROCS.
	Jobs int
	// Swarm draws a fresh configuration per seed instead of using Config.
	Swarm bool
	// Compile additionally compiles engine-compatible modules with wazero.
	Compile bool
}

// Produce generates opts.Count modules into opts.Dir and writes the manifest.
// A module failing structural validation aborts the run, since it means the
// generator is broken. Export budget overruns and wazero rejections are
// recorded in the manifest instead.
func Produce(ctx context.Context, opts Options) (*Manifest, error) {
	if opts.Count < 0 {
		return nil, errors.New(errors.PhaseCorpus, errors.KindInvalidConfig).
			Path("count").
			Detail("negative count %d", opts.Count).
			Build()
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, errors.Wrap(errors.PhaseCorpus, errors.KindIO, err, "create corpus directory")
	}
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	v := NewValidator(ctx)
	defer v.Close(ctx)

	log := Logger()
	entries := make([]Entry, opts.Count)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(jobs, opts.Count)))
	for i := range entries {
		seed := opts.FirstSeed + uint64(i)
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			e, err := produceOne(gctx, v, &opts, seed)
			if err != nil {
				return err
			}
			entries[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	m := &Manifest{Preset: opts.Preset, Swarm: opts.Swarm, Entries: entries}
	if err := WriteManifest(opts.Dir, m); err != nil {
		return nil, err
	}
	counts := m.Counts()
	log.Info("corpus written",
		zap.String("dir", opts.Dir),
		zap.Int("ok", counts[StatusOK]),
		zap.Int("budget", counts[StatusBudget]),
		zap.Int("rejected", counts[StatusRejected]))
	return m, nil
}

func produceOne(ctx context.Context, v *Validator, opts *Options, seed uint64) (Entry, error) {
	data := wasmgen.SeedBytes(seed, wasmgen.DefaultStreamSize)
	cfg := opts.Config
	if opts.Swarm {
		cfg = config.Arbitrary(oracle.New(data[:swarmConfigBytes]))
		data = data[swarmConfigBytes:]
	}
	e := Entry{Seed: seed, Features: cfg.Features()}

	m, err := wasmgen.GenerateModule(cfg, data)
	if stderrors.Is(err, smith.ErrExportBudget) {
		e.Status = StatusBudget
		e.Error = err.Error()
		return e, nil
	}
	if err != nil {
		return e, fmt.Errorf("seed %d: %w", seed, err)
	}

	bin := m.Encode()
	if err := v.Validate(bin); err != nil {
		Logger().Error("generated module is invalid", zap.Uint64("seed", seed), zap.Error(err))
		return e, fmt.Errorf("seed %d: %w", seed, err)
	}

	e.Status = StatusOK
	e.Size = len(bin)
	e.Types = len(m.Types())
	e.Funcs = len(m.Funcs())
	e.Imports = len(m.Imports())
	e.Exports = len(m.Exports())

	if opts.Compile && EngineCompatible(cfg) {
		if err := v.Compile(ctx, bin); err != nil {
			e.Status = StatusRejected
			e.Error = err.Error()
		} else {
			e.Compiled = true
		}
	}

	e.File = fmt.Sprintf("%016x.wasm", seed)
	if err := os.WriteFile(filepath.Join(opts.Dir, e.File), bin, 0o644); err != nil {
		return e, errors.Wrap(errors.PhaseCorpus, errors.KindIO, err, "write module")
	}
	return e, nil
}

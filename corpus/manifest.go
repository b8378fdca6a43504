package corpus

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/wippyai/wasmgen/errors"
)

// ManifestName is the manifest file written next to the modules.
const ManifestName = "manifest.mp"

// manifestVersion changes whenever Manifest or Entry change shape.
const manifestVersion uint16 = 1

// Status describes how a seed ended up.
type Status string

const (
	// StatusOK means the module was written and passed every check that ran.
	StatusOK Status = "ok"
	// StatusBudget means generation stopped on the export type size budget.
	StatusBudget Status = "budget"
	// StatusRejected means wazero rejected a structurally valid module.
	StatusRejected Status = "rejected"
)

// Entry describes one generated module.
type Entry struct {
	File     string   `msgpack:"file"`
	Error    string   `msgpack:"error,omitempty"`
	Status   Status   `msgpack:"status"`
	Features []string `msgpack:"features"`
	Seed     uint64   `msgpack:"seed"`
	Size     int      `msgpack:"size"`
	Types    int      `msgpack:"types"`
	Funcs    int      `msgpack:"funcs"`
	Imports  int      `msgpack:"imports"`
	Exports  int      `msgpack:"exports"`
	Compiled bool     `msgpack:"compiled"`
}

// Manifest lists the entries of a corpus in seed order.
type Manifest struct {
	Preset  string  `msgpack:"preset"`
	Entries []Entry `msgpack:"entries"`
	Version uint16  `msgpack:"version"`
	Swarm   bool    `msgpack:"swarm"`
}

// Counts tallies entries by status.
func (m *Manifest) Counts() map[Status]int {
	out := make(map[Status]int)
	for i := range m.Entries {
		out[m.Entries[i].Status]++
	}
	return out
}

// WriteManifest encodes m into dir, replacing any previous manifest
// atomically.
func WriteManifest(dir string, m *Manifest) error {
	m.Version = manifestVersion
	f, err := os.CreateTemp(dir, ManifestName+".*")
	if err != nil {
		return errors.Wrap(errors.PhaseCorpus, errors.KindIO, err, "create manifest")
	}
	defer func() {
		_ = os.Remove(f.Name())
	}()
	if err := msgpack.NewEncoder(f).Encode(m); err != nil {
		_ = f.Close()
		return errors.Wrap(errors.PhaseCorpus, errors.KindIO, err, "encode manifest")
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(errors.PhaseCorpus, errors.KindIO, err, "close manifest")
	}
	if err := os.Rename(f.Name(), filepath.Join(dir, ManifestName)); err != nil {
		return errors.Wrap(errors.PhaseCorpus, errors.KindIO, err, "install manifest")
	}
	return nil
}

// ReadManifest decodes the manifest stored in dir.
func ReadManifest(dir string) (*Manifest, error) {
	f, err := os.Open(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseCorpus, errors.KindIO, err, "open manifest")
	}
	defer f.Close()

	var m Manifest
	if err := msgpack.NewDecoder(f).Decode(&m); err != nil {
		return nil, errors.Wrap(errors.PhaseCorpus, errors.KindInvalidData, err, "decode manifest")
	}
	if m.Version != manifestVersion {
		return nil, errors.New(errors.PhaseCorpus, errors.KindUnsupported).
			Path(ManifestName).
			Expected("version 1").
			Actual(fmt.Sprintf("version %d", m.Version)).
			Build()
	}
	return &m, nil
}

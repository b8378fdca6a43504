package wasmgen

import (
	"encoding/binary"
	"math/rand/v2"

	"github.com/wippyai/wasmgen/codegen"
	"github.com/wippyai/wasmgen/config"
	"github.com/wippyai/wasmgen/oracle"
	"github.com/wippyai/wasmgen/smith"
)

// DefaultStreamSize is the number of decision bytes a seed expands into.
const DefaultStreamSize = 16 << 10

// SeedBytes expands seed into n deterministic decision bytes.
func SeedBytes(seed uint64, n int) []byte {
	var key [32]byte
	binary.LittleEndian.PutUint64(key[:8], seed)
	out := make([]byte, n)
	_, _ = rand.NewChaCha8(key).Read(out)
	return out
}

// GenerateModule builds a module from raw decision bytes with the default
// body builder.
func GenerateModule(cfg config.Config, data []byte) (*smith.Module, error) {
	return smith.New(cfg, oracle.New(data), smith.WithBodyBuilder(codegen.New()))
}

// Generate builds the module for seed and returns its binary encoding.
func Generate(cfg config.Config, seed uint64) ([]byte, error) {
	m, err := GenerateModule(cfg, SeedBytes(seed, DefaultStreamSize))
	if err != nil {
		return nil, err
	}
	return m.Encode(), nil
}

package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/wippyai/wasmgen/errors"
)

// Load reads a TOML file over Default and loads any template modules it names.
// Template paths are resolved relative to the file's directory.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrap(errors.PhaseConfig, errors.KindIO, err, "open config")
	}
	defer f.Close()
	return Decode(f, filepath.Dir(path))
}

// Decode reads TOML from r over Default. Keys the Config does not know are
// rejected. Relative template paths are resolved against baseDir.
func Decode(r io.Reader, baseDir string) (Config, error) {
	cfg := Default()
	meta, err := toml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return Config{}, errors.Wrap(errors.PhaseConfig, errors.KindInvalidConfig, err, "parse TOML")
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, errors.New(errors.PhaseConfig, errors.KindInvalidConfig).
			Detail("unknown keys: %s", strings.Join(keys, ", ")).
			Build()
	}
	if err := cfg.loadTemplates(baseDir); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	cfg.Sanitize()
	return cfg, nil
}

func (c *Config) loadTemplates(baseDir string) error {
	templates := []struct {
		key  string
		path string
		dst  *[]byte
	}{
		{"module_shape", c.ModuleShapePath, &c.ModuleShape},
		{"available_imports", c.AvailableImportsPath, &c.AvailableImports},
		{"exports", c.ExportsPath, &c.Exports},
	}
	for _, t := range templates {
		if t.path == "" {
			continue
		}
		p := t.path
		if !filepath.IsAbs(p) && baseDir != "" {
			p = filepath.Join(baseDir, p)
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return errors.New(errors.PhaseConfig, errors.KindIO).
				Path(t.key).
				Cause(err).
				Detail("read template %s", p).
				Build()
		}
		*t.dst = data
	}
	return nil
}

// Encode writes c as TOML. Template bytes are not written, only their paths.
func (c *Config) Encode(w io.Writer) error {
	if err := toml.NewEncoder(w).Encode(c); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindIO, err, "encode TOML")
	}
	return nil
}

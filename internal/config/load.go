// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/wrgeorge1983/rtrcp/internal/errors"
)

// LoadFile reads and decodes the TOML configuration file at path. path
// must carry a .toml suffix, mirroring the original's Config.load
// extension check.
func LoadFile(path string) (*Config, error) {
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".toml" {
		return nil, errors.Attr(errors.New(errors.KindConfigInvalid, "config file must have a .toml extension"), "path", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Attr(errors.Wrap(err, errors.KindConfigInvalid, "reading config file"), "path", path)
	}

	return Load(data)
}

// Load decodes TOML bytes into a Config. Unknown keys are ignored, per
// §6; go-toml/v2's Unmarshal is tolerant of them without extra code.
func Load(data []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, errors.KindConfigInvalid, "decoding toml config")
	}
	cfg.applyDefaults()
	return &cfg, nil
}

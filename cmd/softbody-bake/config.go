package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/soypat/softbody/blueprint"
	"gopkg.in/yaml.v3"
)

// loadConfig reads a bake file over the defaults. TOML and YAML files
// are recognized by extension. Unknown keys are rejected.
func loadConfig(path string) (blueprint.Config, error) {
	cfg := blueprint.DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	fp, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer fp.Close()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = decodeTOML(fp, &cfg)
	case ".yaml", ".yml":
		err = decodeYAML(fp, &cfg)
	default:
		return cfg, fmt.Errorf("unknown config format %q", ext)
	}
	if err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func decodeTOML(r io.Reader, cfg *blueprint.Config) error {
	return toml.NewDecoder(r).DisallowUnknownFields().Decode(cfg)
}

func decodeYAML(r io.Reader, cfg *blueprint.Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	err := dec.Decode(cfg)
	if err == io.EOF {
		// empty document.
		return nil
	}
	return err
}

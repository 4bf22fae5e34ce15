package config

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/a8m/envsubst"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// Read reads a config from the given file. Environment variables written as ${VAR} are
// substituted before parsing.
func Read(filePath string) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read config file %q", filePath)
	}

	cfg, err := FromReader(bytes.NewReader(buf))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid config file %q", filePath)
	}
	cfg.ConfigFilePath = filePath
	return cfg, nil
}

// FromReader parses and validates a config. Missing fields take their defaults and unknown
// fields are rejected.
func FromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(cfg); err != nil {
		return nil, errors.Wrap(err, "cannot parse config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Schema returns the JSON schema of the config file.
func Schema() *jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := reflector.Reflect(&Config{})
	schema.Title = "gatekeeper configuration"
	return schema
}

package config

import (
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// AttributeMap is a free-form map of component specific attributes.
type AttributeMap map[string]interface{}

// Has returns whether the key is present.
func (am AttributeMap) Has(name string) bool {
	_, has := am[name]
	return has
}

// String returns a string attribute, or the empty string when missing. It panics when the value
// is not a string.
func (am AttributeMap) String(name string) string {
	if x, has := am[name]; has {
		if s, ok := x.(string); ok {
			return s
		}
		panic(errors.Errorf("wanted a string for (%s) but got (%v) %T", name, x, x))
	}
	return ""
}

// Decode converts the map into the struct pointed to by result, matching keys to `json` tags.
// Unknown keys are an error so typos in config files surface at startup.
func (am AttributeMap) Decode(result interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           result,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return errors.Wrap(err, "error creating attribute decoder")
	}
	if err := decoder.Decode(map[string]interface{}(am)); err != nil {
		return errors.Wrap(err, "error decoding attributes")
	}
	return nil
}

// Component configures one pluggable collaborator: which implementation to build and the
// attributes to build it with.
type Component struct {
	Type       string       `json:"type"`
	Attributes AttributeMap `json:"attributes,omitempty"`
}

// Validate checks that a type was given.
func (c Component) Validate(path string) error {
	if c.Type == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "type")
	}
	return nil
}

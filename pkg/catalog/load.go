package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/waftester/scantriage/pkg/iohelper"
)

// Pack is the YAML document shape of a rule pack:
//
//	rules:
//	  - id: internal-token
//	    category: sensitive_data
//	    subkind: api_key
//	    expression: 'itk_(?P<value>[a-z0-9]{32})'
//	    confidence: high
//	    severity: critical
type Pack struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules decodes a YAML rule pack. Unknown keys are rejected so a
// typo in a rule does not silently widen it. The rules are not validated
// until they are registered with a Builder.
func LoadRules(r io.Reader) ([]Rule, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var pack Pack
	if err := dec.Decode(&pack); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	return pack.Rules, nil
}

// LoadFile reads a rule pack from path.
func LoadFile(path string) ([]Rule, error) {
	data, err := iohelper.ReadFile(path, iohelper.DefaultMaxFileSize)
	if err != nil {
		return nil, fmt.Errorf("catalog: read rule pack: %w", err)
	}
	rules, err := LoadRules(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rules, nil
}

// New builds a catalog from the built-in rules followed by extra rules.
func New(extra ...Rule) (*Catalog, error) {
	b := NewBuilder()
	if err := b.Register(Builtin()...); err != nil {
		return nil, err
	}
	if err := b.Register(extra...); err != nil {
		return nil, err
	}
	return b.Build(), nil
}

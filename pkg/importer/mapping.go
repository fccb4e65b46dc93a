package importer

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"it-asset-manager-api/pkg/models"

	"gopkg.in/yaml.v3"
)

// Field names used as keys in a mapping's columns section
const (
	FieldSerialNumber = "serialNumber"
	FieldName         = "name"
	FieldPurchaseDate = "purchaseDate"
	FieldStatus       = "status"
)

// WildcardSheet matches any sheet without its own entry
const WildcardSheet = "*"

var fieldOrder = []string{FieldSerialNumber, FieldName, FieldPurchaseDate, FieldStatus}

//go:embed default_mapping.yaml
var defaultMapping []byte

// MappingConfig represents the YAML mapping configuration
type MappingConfig struct {
	Version       int                    `yaml:"version"`
	DefaultStatus models.Status          `yaml:"default_status"`
	Sheets        map[string]SheetConfig `yaml:"sheets"`
}

// SheetConfig lists the accepted header aliases for each asset field.
// The first alias is the canonical header used on export.
type SheetConfig struct {
	Columns map[string][]string `yaml:"columns"`
}

// LoadMapping reads the mapping at path, or the embedded default when path is empty
func LoadMapping(path string) (*MappingConfig, error) {
	data := defaultMapping
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read mapping %s: %w", path, err)
		}
		data = b
	}
	return ParseMapping(data)
}

// ParseMapping decodes and checks a YAML mapping document
func ParseMapping(data []byte) (*MappingConfig, error) {
	var m MappingConfig
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse mapping: %w", err)
	}
	if len(m.Sheets) == 0 {
		return nil, fmt.Errorf("mapping defines no sheets")
	}
	if m.DefaultStatus == "" {
		m.DefaultStatus = models.DefaultStatus
	}
	if !m.DefaultStatus.Valid() {
		return nil, fmt.Errorf("mapping default_status %q is not a known status", m.DefaultStatus)
	}
	for name, sc := range m.Sheets {
		for _, f := range []string{FieldSerialNumber, FieldName} {
			if len(sc.Columns[f]) == 0 {
				return nil, fmt.Errorf("sheet %q: column %s has no aliases", name, f)
			}
		}
		for f := range sc.Columns {
			if !knownField(f) {
				return nil, fmt.Errorf("sheet %q: unknown field %q", name, f)
			}
		}
	}
	return &m, nil
}

// Sheet returns the configuration for sheet name
func (m *MappingConfig) Sheet(name string) (SheetConfig, bool) {
	if sc, ok := m.Sheets[name]; ok {
		return sc, true
	}
	sc, ok := m.Sheets[WildcardSheet]
	return sc, ok
}

// Headers returns the canonical export header for each field, in column order
func (sc SheetConfig) Headers() []string {
	var out []string
	for _, f := range fieldOrder {
		if aliases := sc.Columns[f]; len(aliases) > 0 {
			out = append(out, aliases[0])
		}
	}
	return out
}

// resolve maps a header cell to the field it names
func (sc SheetConfig) resolve(header string) (string, bool) {
	header = strings.TrimSpace(header)
	for field, aliases := range sc.Columns {
		for _, alias := range aliases {
			if strings.EqualFold(alias, header) {
				return field, true
			}
		}
	}
	return "", false
}

func knownField(f string) bool {
	for _, k := range fieldOrder {
		if k == f {
			return true
		}
	}
	return false
}

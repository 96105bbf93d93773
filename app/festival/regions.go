package festival

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed regions.yml
var defaultRegionsYAML []byte

// RegionTable maps upstream area codes to the labels embedded in addresses.
type RegionTable struct {
	labels map[string]string
	codes  []string
}

type regionsFile struct {
	Regions []struct {
		Code  string `yaml:"code"`
		Label string `yaml:"label"`
	} `yaml:"regions"`
}

// DefaultRegionTable returns the 17 Korean province-level regions.
func DefaultRegionTable() RegionTable {
	table, err := ParseRegionTable(defaultRegionsYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded region table is invalid: %v", err))
	}
	return table
}

// LoadRegionTable reads a YAML override; an empty path yields the default table.
func LoadRegionTable(path string) (RegionTable, error) {
	if path == "" {
		return DefaultRegionTable(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return RegionTable{}, fmt.Errorf("failed to read file: %w", err)
	}

	table, err := ParseRegionTable(data)
	if err != nil {
		return RegionTable{}, fmt.Errorf("invalid region table %s: %w", path, err)
	}
	return table, nil
}

func ParseRegionTable(data []byte) (RegionTable, error) {
	var file regionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return RegionTable{}, fmt.Errorf("failed to parse YAML: %w", err)
	}

	table := RegionTable{
		labels: make(map[string]string, len(file.Regions)),
		codes:  make([]string, 0, len(file.Regions)),
	}

	for i, region := range file.Regions {
		if region.Code == "" || region.Label == "" {
			return RegionTable{}, fmt.Errorf("region at index %d must have a code and a label", i)
		}
		if region.Code == RegionAll {
			return RegionTable{}, fmt.Errorf("region code %q is reserved", RegionAll)
		}
		if _, dup := table.labels[region.Code]; dup {
			return RegionTable{}, fmt.Errorf("duplicate region code %q", region.Code)
		}
		table.labels[region.Code] = region.Label
		table.codes = append(table.codes, region.Code)
	}

	return table, nil
}

func (t RegionTable) Label(code string) (string, bool) {
	label, ok := t.labels[code]
	return label, ok
}

// Codes returns the codes in file order.
func (t RegionTable) Codes() []string {
	codes := make([]string, len(t.codes))
	copy(codes, t.codes)
	return codes
}

func (t RegionTable) Len() int {
	return len(t.codes)
}

package genome

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// defaultMinPeriodsMax bounds min_periods for file strategies using the common genes
const defaultMinPeriodsMax = 200

// registryFile is the YAML layout of a strategies file
//
//	strategies:
//	  - name: macd_narrow
//	    common: true
//	    genes:
//	      - {name: ema_short_period, kind: int, min: 5, max: 15}
//	    fixed:
//	      - {name: neutral_rate, value: auto}
type registryFile struct {
	Strategies []strategyFile `yaml:"strategies"`
}

type strategyFile struct {
	Name   string `yaml:"name"`
	Common bool   `yaml:"common"` // prepend the common genes; file genes with the same name override them
	Genes  []Gene `yaml:"genes"`
	Fixed  []Arg  `yaml:"fixed"`
}

// LoadRegistryFile reads a strategies YAML file
// SSOT 핵심: KnownFields(true)로 오타/미사용 필드 즉시 실패
func LoadRegistryFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read strategies file: %w", err)
	}

	r, err := ParseRegistry(data)
	if err != nil {
		return nil, fmt.Errorf("invalid strategies file %s: %w", path, err)
	}
	return r, nil
}

// ParseRegistry decodes and validates strategies YAML
func ParseRegistry(data []byte) (*Registry, error) {
	var file registryFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, err
	}

	if len(file.Strategies) == 0 {
		return nil, fmt.Errorf("no strategies defined")
	}

	strategies := make([]*Strategy, 0, len(file.Strategies))
	for _, sf := range file.Strategies {
		genes := sf.Genes
		if sf.Common {
			genes = overrideGenes(CommonGenes(defaultMinPeriodsMax), sf.Genes)
		}

		schema, err := NewSchema(genes...)
		if err != nil {
			return nil, fmt.Errorf("strategy %s: %w", sf.Name, err)
		}

		for _, a := range sf.Fixed {
			if a.Name == "" {
				return nil, fmt.Errorf("strategy %s: fixed arg without name", sf.Name)
			}
			if _, clash := schema.Gene(a.Name); clash {
				return nil, fmt.Errorf("strategy %s: fixed arg %s shadows a gene", sf.Name, a.Name)
			}
		}

		strategies = append(strategies, &Strategy{Name: sf.Name, Schema: schema, Fixed: sf.Fixed})
	}

	return NewRegistry(strategies...)
}

// overrideGenes replaces base genes by name and appends the rest
func overrideGenes(base, extra []Gene) []Gene {
	out := make([]Gene, len(base))
	copy(out, base)

	pos := make(map[string]int, len(out))
	for i, g := range out {
		pos[g.Name] = i
	}
	for _, g := range extra {
		if i, ok := pos[g.Name]; ok {
			out[i] = g
			continue
		}
		out = append(out, g)
	}
	return out
}

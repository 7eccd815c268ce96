package policy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// OverrideFile is the on-disk shape of bank-specific policy overrides:
//
//	products:
//	  sba_7a:
//	    minorBreachBand: 0.10
//	    thresholds:
//	      - metric: dscr
//	        minimum: 1.35
type OverrideFile struct {
	Products map[Product]ConfigOverride `yaml:"products"`
}

// LoadOverrides reads policy overrides keyed by product from a YAML file.
// Returns nil (not an error) when path is empty or the file does not exist.
func LoadOverrides(path string) (map[Product]ConfigOverride, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseOverrides(data)
}

// ParseOverrides decodes override YAML. Unknown fields and thresholds
// without a metric or bound are rejected.
func ParseOverrides(data []byte) (map[Product]ConfigOverride, error) {
	var file OverrideFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return map[Product]ConfigOverride{}, nil
		}
		return nil, fmt.Errorf("unmarshal policy overrides: %w", err)
	}
	for product, o := range file.Products {
		for i, t := range o.Thresholds {
			if t.Metric == "" {
				return nil, fmt.Errorf("policy override %s: threshold %d has no metric", product, i)
			}
			if t.Minimum == nil && t.Maximum == nil {
				return nil, fmt.Errorf("policy override %s: threshold %s has no bound", product, t.Metric)
			}
		}
	}
	if file.Products == nil {
		file.Products = map[Product]ConfigOverride{}
	}
	return file.Products, nil
}

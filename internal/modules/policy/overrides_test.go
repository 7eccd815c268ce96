package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const overrideYAML = `
products:
  sba_7a:
    minorBreachBand: 0.10
    thresholds:
      - metric: dscr
        minimum: 1.35
      - metric: interest_coverage
        minimum: 2.5
  line_of_credit:
    thresholds:
      - metric: days_sales_outstanding
        maximum: 45
`

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overrides.yaml")
	require.NoError(t, os.WriteFile(path, []byte(overrideYAML), 0o600))

	overrides, err := LoadOverrides(path)

	require.NoError(t, err)
	require.Len(t, overrides, 2)

	sba := overrides[ProductSBA7a]
	require.NotNil(t, sba.MinorBreachBand)
	assert.Equal(t, 0.10, *sba.MinorBreachBand)
	require.Len(t, sba.Thresholds, 2)
	assert.Equal(t, "dscr", sba.Thresholds[0].Metric)
	assert.Equal(t, 1.35, *sba.Thresholds[0].Minimum)
	assert.Nil(t, sba.Thresholds[0].Maximum)

	loc := overrides[ProductLineOfCredit]
	assert.Equal(t, 45.0, *loc.Thresholds[0].Maximum)
}

func TestLoadOverrides_MissingFileIsNotAnError(t *testing.T) {
	overrides, err := LoadOverrides(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Nil(t, overrides)

	overrides, err = LoadOverrides("")
	require.NoError(t, err)
	assert.Nil(t, overrides)
}

func TestParseOverrides_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown field", "products:\n  sba_7a:\n    thresholds:\n      - metric: dscr\n        minimun: 1.3\n"},
		{"no metric", "products:\n  sba_7a:\n    thresholds:\n      - minimum: 1.3\n"},
		{"no bound", "products:\n  sba_7a:\n    thresholds:\n      - metric: dscr\n"},
		{"not yaml", "products: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOverrides([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParseOverrides_Empty(t *testing.T) {
	overrides, err := ParseOverrides(nil)
	require.NoError(t, err)
	assert.Empty(t, overrides)
}

package channel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/habitability/internal/spatial"
)

func hit(category string, meters float64) spatial.PointHit {
	return spatial.PointHit{Point: spatial.Point{Category: category}, DistanceMeters: meters}
}

func TestPreferences_SignOf(t *testing.T) {
	prefs := Preferences{"Park": "good", "Factory": "bad", "Bar": "meh"}

	tests := []struct {
		category string
		want     Sign
	}{
		{"Park", Good},
		{"Factory", Bad},
		{"Bar", Neutral},
		{"Unknown", Neutral},
		{"park", Neutral},
	}
	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			assert.Equal(t, tt.want, prefs.SignOf(tt.category))
		})
	}

	var empty Preferences
	assert.Equal(t, Neutral, empty.SignOf("Park"))
}

func TestBuild(t *testing.T) {
	prefs := Preferences{"Park": "good", "Factory": "bad"}
	hits := []spatial.PointHit{
		hit("Park", 100),
		hit("Factory", 400),
		hit("Cafe", 250),
		hit("Park", 50),
		{Point: spatial.Point{NestedCategory: "Factory"}, DistanceMeters: 900},
	}

	ch := Build(hits, prefs)
	assert.Equal(t, []Pair{
		{DistanceKm: 0.1, Sign: Good},
		{DistanceKm: 0.4, Sign: Bad},
		{DistanceKm: 0.25, Sign: Neutral},
		{DistanceKm: 0.05, Sign: Good},
		{DistanceKm: 0.9, Sign: Bad},
	}, ch.Pairs)
	assert.Equal(t, []float64{0.1, 0.05}, ch.PositiveKm)
	assert.Equal(t, []float64{0.4, 0.9}, ch.NegativeKm)
	assert.Equal(t, []float64{0.25}, ch.NeutralKm)
}

func TestBuild_Empty(t *testing.T) {
	ch := Build(nil, nil)
	assert.Empty(t, ch.Pairs)
	assert.NotNil(t, ch.PositiveKm)
	assert.NotNil(t, ch.NegativeKm)
	assert.NotNil(t, ch.NeutralKm)
}

func TestSplit(t *testing.T) {
	pos, neg, neu := Split([]Pair{
		{DistanceKm: 1, Sign: Good},
		{DistanceKm: 2, Sign: Neutral},
		{DistanceKm: 3, Sign: Bad},
		{DistanceKm: 4, Sign: Good},
	})
	assert.Equal(t, []float64{1, 4}, pos)
	assert.Equal(t, []float64{3}, neg)
	assert.Equal(t, []float64{2}, neu)
}

func TestPreferences_Merge(t *testing.T) {
	base := Preferences{"Park": "good", "Factory": "bad"}
	merged := base.Merge(Preferences{"Factory": "neutral", "School": "good"})

	assert.Equal(t, Preferences{"Park": "good", "Factory": "neutral", "School": "good"}, merged)
	assert.Equal(t, "bad", base["Factory"], "base must not be modified")
}

func TestPreferences_Normalize(t *testing.T) {
	prefs := Preferences{"Park": " Good ", "Factory": "BAD", " Cafe ": "neutral", "": "good"}
	got := prefs.Normalize()

	assert.Equal(t, Preferences{"Park": "good", "Factory": "bad", "Cafe": "neutral"}, got)
	assert.Equal(t, Good, got.SignOf("Park"))
	assert.Equal(t, Neutral, got.SignOf("park"), "categories stay case-sensitive")
	assert.Equal(t, " Good ", prefs["Park"], "input must not be modified")
	assert.Empty(t, Preferences(nil).Normalize())
}

func TestPreferences_MergeNormalizes(t *testing.T) {
	merged := Preferences{"Park": "GOOD"}.Merge(Preferences{"Factory": "Bad "})
	assert.Equal(t, Good, merged.SignOf("Park"))
	assert.Equal(t, Bad, merged.SignOf("Factory"))
}

func TestLoadPreferences(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "prefs.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("Park: Good\nFactory: bad\nCafe: \"\"\n"), 0o644))
	prefs, err := LoadPreferences(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, Good, prefs.SignOf("Park"))
	assert.Equal(t, Bad, prefs.SignOf("Factory"))
	assert.Equal(t, Neutral, prefs.SignOf("Cafe"))

	jsonPath := filepath.Join(dir, "prefs.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"Transit": "good"}`), 0o644))
	prefs, err = LoadPreferences(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, Good, prefs.SignOf("Transit"))

	_, err = LoadPreferences(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)

	badPath := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(badPath, []byte(`[1,2`), 0o644))
	_, err = LoadPreferences(badPath)
	require.Error(t, err)
}

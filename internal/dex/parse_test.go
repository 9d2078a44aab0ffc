package dex

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fusiondex/internal/fusion"
)

const fixturePageURL = "https://fixture.test/details/1.4"

func loadFixture(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile("testdata/details_1.4.html")
	require.NoError(t, err)
	return string(data)
}

func TestParsePageExtractsBothDirections(t *testing.T) {
	records, err := ParsePage(strings.NewReader(loadFixture(t)), fusion.Pair{Primary: 4, Secondary: 1}, fixturePageURL)
	require.NoError(t, err)
	require.Len(t, records, 2)

	forward := records["#1.4"]
	assert.Equal(t, fusion.Pair{Primary: 1, Secondary: 4}, forward.Pair)
	assert.Equal(t, "Bulbmander", forward.Name)
	assert.Equal(t, []string{"Grass", "Fire"}, forward.Types)
	assert.Equal(t, "https://fixture.test/sprites/custom/1.4.png", forward.SpriteURL)
	assert.Equal(t, fixturePageURL, forward.SourceURL)
	require.NotNil(t, forward.Stats)
	assert.Equal(t, fusion.Stats{HP: 45, ATK: 49, DEF: 49, SpAtk: 65, SpDef: 65, Speed: 45, Total: 318}, *forward.Stats)
	assert.Equal(t, fusion.Weaknesses{
		"x2":   {"Flying", "Ice"},
		"x1/2": {"Grass"},
	}, forward.Weaknesses)

	reverse := records["#4.1"]
	assert.Equal(t, "Charsaur/X", reverse.Name)
	assert.Equal(t, []string{"Fire"}, reverse.Types)
	assert.Equal(t, "https://cdn.fixture.test/4.1.png", reverse.SpriteURL)
	require.NotNil(t, reverse.Stats)
	assert.Equal(t, fusion.Stats{HP: 39, ATK: 52, DEF: 43, SpAtk: 60, SpDef: 50, Speed: 65, Total: 309}, *reverse.Stats)
	assert.Equal(t, fusion.Weaknesses{
		"x2": {"Water"},
		"x0": {"Ground"},
	}, reverse.Weaknesses)
}

func TestParsePageRequiresTwoPanels(t *testing.T) {
	page := strings.Replace(loadFixture(t), `id="details-stack"`, `id="elsewhere"`, 1)
	_, err := ParsePage(strings.NewReader(page), fusion.Pair{Primary: 1, Secondary: 4}, fixturePageURL)
	require.ErrorIs(t, err, ErrStructure)
}

func TestParsePageRejectsUnnamedPanel(t *testing.T) {
	page := strings.Replace(loadFixture(t), `<span class="px-0">Charsaur/wbr>X</span>`, `<span class="px-1">Charsaur</span>`, 1)
	records, err := ParsePage(strings.NewReader(page), fusion.Pair{Primary: 1, Secondary: 4}, fixturePageURL)
	require.ErrorIs(t, err, ErrStructure)
	assert.Nil(t, records)
	assert.Equal(t, ReasonStructure, parseReason(err))
}

func TestParsePageRejectsIncompleteStats(t *testing.T) {
	page := strings.Replace(loadFixture(t), ">SPEED<", ">BST<", 1)
	_, err := ParsePage(strings.NewReader(page), fusion.Pair{Primary: 1, Secondary: 4}, fixturePageURL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIncompleteStats))
	assert.Equal(t, ReasonStats, parseReason(err))
}

func TestParsePageWithoutStatsSection(t *testing.T) {
	page := strings.Replace(loadFixture(t), `<h2 class="accordion-header">Stats</h2>`, `<h2 class="accordion-header">Moves</h2>`, 1)
	_, err := ParsePage(strings.NewReader(page), fusion.Pair{Primary: 1, Secondary: 4}, fixturePageURL)
	require.ErrorIs(t, err, ErrStructure)
	assert.Equal(t, ReasonStructure, parseReason(err))
}

func TestParsePageWithoutWeaknessesKeepsRecords(t *testing.T) {
	page := strings.Replace(loadFixture(t), ">Weaknesses<", ">Abilities<", 1)
	records, err := ParsePage(strings.NewReader(page), fusion.Pair{Primary: 1, Secondary: 4}, fixturePageURL)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Empty(t, records["#1.4"].Weaknesses)
}

func TestStatLabelSynonyms(t *testing.T) {
	cases := map[string]string{
		"HP":     fusion.StatHP,
		"ATK":    fusion.StatATK,
		"DEF":    fusion.StatDEF,
		"SP.ATK": fusion.StatSpAtk,
		"SPA":    fusion.StatSpAtk,
		"SP.DEF": fusion.StatSpDef,
		"SPD":    fusion.StatSpDef,
		"SPEED":  fusion.StatSpeed,
		"Speed":  fusion.StatSpeed,
		"TOT":    fusion.StatTotal,
		" TOTAL": fusion.StatTotal,
	}
	for raw, want := range cases {
		assert.Equal(t, want, statLabel(raw), raw)
	}
}

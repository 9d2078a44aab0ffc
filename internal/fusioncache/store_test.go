package fusioncache_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fusiondex/internal/fusion"
	"fusiondex/internal/fusioncache"
)

func sampleRecord(a, b int) fusion.Record {
	return fusion.Record{
		Pair:  fusion.Pair{Primary: a, Secondary: b},
		Name:  "Fused",
		Types: []string{"Grass", "Fire"},
		Stats: &fusion.Stats{HP: 60, ATK: 70, DEF: 80, SpAtk: 90, SpDef: 100, Speed: 50, Total: 450},
		Weaknesses: fusion.Weaknesses{
			fusion.BucketDouble: {"Rock", "Flying"},
			fusion.BucketHalf:   {"Grass"},
		},
		SpriteURL: "https://example.com/sprite.png",
		SourceURL: "https://example.com/details/1.4",
	}
}

func writeJSON(t *testing.T, path string, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func readRaw(t *testing.T, path string) map[string]json.RawMessage {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	raw := map[string]json.RawMessage{}
	require.NoError(t, json.Unmarshal(data, &raw))
	return raw
}

func compact(t *testing.T, body []byte) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.Compact(&buf, body))
	return buf.String()
}

const existingEntry = `{"name":"Existing","types":["Water"],"stats":{"HP":1,"ATK":2,"DEF":3,"SP.ATK":4,"SP.DEF":5,"SPEED":6,"TOTAL":21},"weaknesses":{"x2":["Grass"]},"sprite_url":"","fusion_url":"","curated":true}`

func TestMergePreservesExistingEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")
	writeJSON(t, path, `{"#5.9": `+existingEntry+`}`)

	store := fusioncache.Open(context.Background(), fusioncache.Options{Path: path})
	require.Equal(t, 1, store.Len())
	assert.Equal(t, fusioncache.SourcePrimary, store.Source())

	rec := sampleRecord(1, 4)
	require.NoError(t, store.MergeAndPersist(context.Background(), map[fusion.Key]fusion.Record{rec.Key(): rec}))

	raw := readRaw(t, path)
	require.Contains(t, raw, "#5.9")
	require.Contains(t, raw, "#1.4")
	assert.Equal(t, compact(t, []byte(existingEntry)), compact(t, raw["#5.9"]), "unrelated entry must be unchanged, unknown keys included")

	got, ok := store.Get("#1.4")
	require.True(t, ok)
	assert.Equal(t, 450, got.Stats.Total)
}

func TestMergeKeepsEntriesWrittenByOtherProcesses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")

	store := fusioncache.Open(context.Background(), fusioncache.Options{Path: path})
	require.Equal(t, 0, store.Len())
	assert.Equal(t, fusioncache.SourceNone, store.Source())

	writeJSON(t, path, `{"#5.9": `+existingEntry+`}`)

	rec := sampleRecord(2, 3)
	require.NoError(t, store.MergeAndPersist(context.Background(), map[fusion.Key]fusion.Record{rec.Key(): rec}))

	raw := readRaw(t, path)
	assert.Contains(t, raw, "#5.9")
	assert.Contains(t, raw, "#2.3")
}

func TestConcurrentMergesAllReachDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")
	store := fusioncache.Open(context.Background(), fusioncache.Options{Path: path})

	const writers = 16
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := sampleRecord(i+1, i+100)
			errs[i] = store.MergeAndPersist(context.Background(), map[fusion.Key]fusion.Record{rec.Key(): rec})
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, writers, store.Len())
	assert.Len(t, readRaw(t, path), writers)

	reloaded := fusioncache.Open(context.Background(), fusioncache.Options{Path: path})
	assert.Equal(t, writers, reloaded.Len())
}

func TestLoadFallsBackToSecondaryFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")
	fallback := filepath.Join(dir, "full_run.json")
	writeJSON(t, fallback, `{"#5.9": `+existingEntry+`}`)

	store := fusioncache.Open(context.Background(), fusioncache.Options{Path: path, FallbackPath: fallback})
	assert.Equal(t, fusioncache.SourceFallback, store.Source())
	got, ok := store.Get("#5.9")
	require.True(t, ok)
	assert.Equal(t, "Existing", got.Name)
	assert.Equal(t, fusion.Pair{Primary: 5, Secondary: 9}, got.Pair)

	rec := sampleRecord(1, 4)
	require.NoError(t, store.MergeAndPersist(context.Background(), map[fusion.Key]fusion.Record{rec.Key(): rec}))

	raw := readRaw(t, path)
	assert.Contains(t, raw, "#5.9", "primary file should be seeded from the fallback")
	assert.Contains(t, raw, "#1.4")
}

func TestCorruptPrimaryIsMovedAside(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")
	writeJSON(t, path, `{not json`)

	store := fusioncache.Open(context.Background(), fusioncache.Options{Path: path})
	assert.Equal(t, 0, store.Len())

	rec := sampleRecord(1, 4)
	require.NoError(t, store.MergeAndPersist(context.Background(), map[fusion.Key]fusion.Record{rec.Key(): rec}))

	matches, err := filepath.Glob(path + ".corrupt-*")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	corrupt, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(corrupt))

	raw := readRaw(t, path)
	assert.Len(t, raw, 1)
	assert.Contains(t, raw, "#1.4")
}

func TestReadOnlyStoreNeverWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")

	store := fusioncache.Open(context.Background(), fusioncache.Options{Path: path, ReadOnly: true})
	rec := sampleRecord(1, 4)
	require.NoError(t, store.MergeAndPersist(context.Background(), map[fusion.Key]fusion.Record{rec.Key(): rec}))

	assert.True(t, store.Has("#1.4"))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "read-only store must not create the cache file")
}

func TestLoadFoldsLegacyKeysAndSkipsBadEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")
	writeJSON(t, path, `{
		"#2.3": {"Name": "Legacy", "Types": "Grass, none", "Stats": {"hp": 10, "atk": 20, "def": 30, "spa": 40, "spd": 50, "spe": 60, "tot": 210}},
		"#4.4": {"name": "self fusion"},
		"garbage": {"name": "bad key"}
	}`)

	store := fusioncache.Open(context.Background(), fusioncache.Options{Path: path})
	require.Equal(t, 1, store.Len())

	got, ok := store.Get("#2.3")
	require.True(t, ok)
	assert.Equal(t, "Legacy", got.Name)
	assert.Equal(t, []string{"Grass"}, got.Types)
	require.NotNil(t, got.Stats)
	assert.Equal(t, 210, got.Stats.Total)
	assert.Equal(t, 50, got.Stats.SpDef)
}

func TestKeysAreSortedByPair(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")
	store := fusioncache.Open(context.Background(), fusioncache.Options{Path: path})

	entries := map[fusion.Key]fusion.Record{}
	for _, p := range [][2]int{{10, 2}, {2, 10}, {1, 3}} {
		rec := sampleRecord(p[0], p[1])
		entries[rec.Key()] = rec
	}
	require.NoError(t, store.MergeAndPersist(context.Background(), entries))
	assert.Equal(t, []fusion.Key{"#1.3", "#2.10", "#10.2"}, store.Keys())
}

func TestAuditReportsIncompleteEntries(t *testing.T) {
	dir := t.TempDir()
	sprites := filepath.Join(dir, "sprites")
	require.NoError(t, os.MkdirAll(sprites, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sprites, "1.4.png"), []byte("png"), 0o644))

	store := fusioncache.Open(context.Background(), fusioncache.Options{Path: filepath.Join(dir, "cache.json")})
	complete := sampleRecord(1, 4)
	noStats := sampleRecord(4, 1)
	noStats.Stats = nil
	require.NoError(t, store.MergeAndPersist(context.Background(), map[fusion.Key]fusion.Record{
		complete.Key(): complete,
		noStats.Key():  noStats,
	}))

	report := store.Audit(sprites)
	assert.Equal(t, 2, report.Entries)
	assert.Equal(t, []fusion.Key{"#4.1"}, report.MissingStats)
	assert.Equal(t, []fusion.Key{"#4.1"}, report.MissingSprites)
	assert.False(t, report.Complete())
}

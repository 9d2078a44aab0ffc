package fusioncache

import (
	"path/filepath"

	"fusiondex/internal/fileutil"
	"fusiondex/internal/fusion"
)

// AuditReport summarizes cache completeness.
type AuditReport struct {
	Entries        int
	Source         Source
	MissingStats   []fusion.Key
	MissingSprites []fusion.Key
}

// Complete reports whether every entry has stats and a local sprite.
func (r AuditReport) Complete() bool {
	return len(r.MissingStats) == 0 && len(r.MissingSprites) == 0
}

// Audit checks every cached record for a complete stats block and a sprite
// file under spritesDir. An empty spritesDir skips the sprite check.
func (s *Store) Audit(spritesDir string) AuditReport {
	report := AuditReport{Source: s.Source()}
	for _, key := range s.Keys() {
		rec, ok := s.Get(key)
		if !ok {
			continue
		}
		report.Entries++
		if !rec.HasStats() {
			report.MissingStats = append(report.MissingStats, key)
		}
		if spritesDir != "" && !HasLocalSprite(spritesDir, rec) {
			report.MissingSprites = append(report.MissingSprites, key)
		}
	}
	return report
}

// HasLocalSprite reports whether rec's sprite exists under spritesDir, either
// at its recorded LocalSprite name or at the conventional "{a}.{b}.png".
func HasLocalSprite(spritesDir string, rec fusion.Record) bool {
	if rec.LocalSprite != "" {
		path := rec.LocalSprite
		if !filepath.IsAbs(path) {
			path = filepath.Join(spritesDir, path)
		}
		if fileutil.Exists(path) {
			return true
		}
	}
	return fileutil.Exists(filepath.Join(spritesDir, rec.Key().FileStem()+".png"))
}

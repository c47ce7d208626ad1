package config

import (
	"go.uber.org/zap"

	"github.com/muurk/multicontroller/internal/logging"
)

// MigrateEntry brings an entry created by another integration version up to
// current. Every registered entity of the entry is removed so the next setup
// recreates them. Returns true if the entry was changed.
func MigrateEntry(entry *Entry, current string) bool {
	if entry.IntegrationVersion == current {
		return false
	}

	removed := entry.RemoveEntities()
	logging.Info("Migrated entry",
		zap.String("from_version", entry.IntegrationVersion),
		zap.String("to_version", current),
		zap.Int("removed_entities", removed),
	)
	entry.IntegrationVersion = current
	return true
}

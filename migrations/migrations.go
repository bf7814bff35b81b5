package migrations

import (
	"fmt"

	"github.com/ledgerwatch/log/v3"

	"github.com/quaylabs/ledgerdb/core/state"
)

// migrations apply sequentially in order of this array, skipping the already
// applied ones. Each migration runs through an update visitor and commits as
// a single batch together with its applied-marker, so a crashed migration
// leaves no partial state.
//
// Idempotency is expected: a migration may be re-run against a store where a
// previous attempt never committed.
var migrations = []Migration{}

// Migration is a named, one-shot transformation of the stored state.
type Migration struct {
	Name string
	Up   func(visitor *state.UpdateVisitor) error
}

func NewMigrator() *Migrator {
	return &Migrator{Migrations: migrations}
}

type Migrator struct {
	Migrations []Migration
}

// Apply runs every pending migration against the database.
func (m *Migrator) Apply(db *state.StateDB) error {
	for _, migration := range m.Migrations {
		applied, err := db.HasAppliedMigration(migration.Name)
		if err != nil {
			return err
		}
		if applied {
			continue
		}
		log.Info("Apply migration", "name", migration.Name)

		visitor := state.NewUpdateVisitor(db)
		if err := migration.Up(visitor); err != nil {
			return fmt.Errorf("migration %s: %w", migration.Name, err)
		}
		batch := visitor.Batch()
		db.MarkMigrationApplied(batch, migration.Name)
		if err := db.ExecBatch(batch); err != nil {
			return fmt.Errorf("migration %s: %w", migration.Name, err)
		}

		log.Info("Applied migration", "name", migration.Name)
	}
	return nil
}

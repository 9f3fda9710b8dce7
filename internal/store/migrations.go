package store

import (
	"database/sql"
	"fmt"
)

// Migration is a single named, idempotent schema step.
type Migration struct {
	Name string
	Func func(*sql.DB) error
}

// migrationsList is the ordered list of all migrations run during
// initialization. There is no prior release with an older shape to migrate
// forward from, so a single bootstrap migration embeds the converged
// canonical schema.
var migrationsList = []Migration{
	{"bootstrap", migrateBootstrap},
}

func migrateBootstrap(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// RunMigrations applies every pending migration: foreign keys are disabled
// for the duration (schema DDL can otherwise trip deferred FK checks on a
// fresh database), each migration runs in turn, and `user_version` is only
// bumped once every migration succeeds.
func RunMigrations(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA foreign_keys = OFF"); err != nil {
		return fmt.Errorf("store: disabling foreign keys: %w", err)
	}
	defer db.Exec("PRAGMA foreign_keys = ON")

	for _, migration := range migrationsList {
		if err := migration.Func(db); err != nil {
			return fmt.Errorf("store: migration %q: %w", migration.Name, err)
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", expectedUserVersion)); err != nil {
		return fmt.Errorf("store: setting user_version: %w", err)
	}

	return nil
}

// ListMigrations returns the registered migration names in run order, for
// introspection. `driggsby db schema` does not include them in its output.
func ListMigrations() []string {
	names := make([]string, len(migrationsList))
	for i, m := range migrationsList {
		names[i] = m.Name
	}
	return names
}

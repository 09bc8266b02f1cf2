package db

import (
	"embed"
	"io/fs"
	"os"
)

// DevMode switches the migration source from the binary's embedded copy
// to the files on disk, so schema edits during development take effect
// without a rebuild.
var DevMode = false

//go:embed migrations
var migrationsFS embed.FS

// getMigrationsFS returns the migration files rooted at the directory
// holding the *.sql files.
func getMigrationsFS() (fs.FS, error) {
	if DevMode {
		return os.DirFS("internal/db/migrations"), nil
	}
	return fs.Sub(migrationsFS, "migrations")
}

// Package migrations embeds the SQL schema for the state history database.
//
// Importing it for side effects registers the files with the database
// package so Migrate works without SQL files on disk.
package migrations

import (
	"embed"

	"github.com/eb3nezer/mqtt-fan/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}

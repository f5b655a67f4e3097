// Package migrations compiles the SQL migration files into the binary,
// so a deployed ctlremapd needs no schema files on disk. Importing the
// package for side effects is enough; cmd/ctlremapd does exactly that.
package migrations

import (
	"embed"

	"github.com/nerrad567/ctlremap/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	// The embedded FS is rooted at this directory, so files sit at ".".
	database.MigrationsDir = "."
}

// Package migrations embeds the goose schema migrations for both
// supported drivers.
package migrations

import "embed"

//go:embed postgres/*.sql sqlite/*.sql
var MigrationFiles embed.FS

// Package migrations embeds the goose migrations of the local SQLite
// database and of the optional Postgres dream log.
package migrations

import "embed"

//go:embed sqlite/*.sql
var SQLite embed.FS

//go:embed postgres/*.sql
var Postgres embed.FS

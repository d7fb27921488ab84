// Package migrations ships the SQL schema with the binaries.
package migrations

import "embed"

//go:embed sql/*.sql seeds/*.sql
var Files embed.FS

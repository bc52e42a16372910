// Package migrations embeds the SQL schema migrations for the sqlite
// record store. Files are applied in lexical order; versions are
// derived from the leading numeric prefix of each filename.
package migrations

import "embed"

// FS holds the embedded migration files.
//
//go:embed *.sql
var FS embed.FS

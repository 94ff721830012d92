// Package migrations embeds the schema migrations shared by the postgres and
// sqlite stores.
package migrations

import "embed"

// FS holds the *.up.sql / *.down.sql files.
//
//go:embed *.sql
var FS embed.FS

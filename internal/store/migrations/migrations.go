// Package migrations embeds the SQL schema of the local cache database.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

// Package migrations embeds the gateway's SQL schema files.
package migrations

import "embed"

// FS holds the *.sql files applied in lexical order at startup.
//
//go:embed *.sql
var FS embed.FS

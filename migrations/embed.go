// Package migrations embeds the SQL schema migrations so binaries can migrate without a checkout.
package migrations

import "embed"

// FS holds every NNNNNN_name.{up,down}.sql file of this directory
//
//go:embed *.sql
var FS embed.FS

// Package migrations embeds the selection store schema.
package migrations

import "embed"

// FS holds the *.sql migration files in apply order.
//
//go:embed *.sql
var FS embed.FS

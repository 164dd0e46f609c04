// Package sqldocs exposes the DDL templates directly from the docs tree.
package sqldocs

import _ "embed"

// SQLite contains the SQLite DDL template.
//
//go:embed sqlite.sql
var SQLite string

// Postgres contains the Postgres DDL template.
//
//go:embed postgres.sql
var Postgres string

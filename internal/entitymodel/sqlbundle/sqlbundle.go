// Package sqlbundle renders the DDL templates for the configured partitions.
package sqlbundle

import (
	"bufio"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	sqldocs "rawmatqc/docs/schema/sql"
	"rawmatqc/pkg/domain"
)

// Dialect names a supported SQL backend.
type Dialect string

// Supported dialects.
const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DefaultPostgresSchema is used when no schema is configured.
const DefaultPostgresSchema = "raw_material"

var (
	sqliteTemplate   = template.Must(template.New("sqlite").Parse(sqldocs.SQLite))
	postgresTemplate = template.Must(template.New("postgres").Parse(sqldocs.Postgres))
	identPattern     = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
)

type partitionData struct {
	Name           string
	Lower          string
	Upper          string
	UpperExclusive string
}

type templateData struct {
	Schema     string
	Partitions []partitionData
}

// SQLite renders the SQLite DDL for the given ranges.
func SQLite(ranges []domain.PartitionRange) (string, error) {
	return Render(DialectSQLite, "", ranges)
}

// Postgres renders the Postgres DDL into schema for the given ranges.
func Postgres(schema string, ranges []domain.PartitionRange) (string, error) {
	return Render(DialectPostgres, schema, ranges)
}

// Render produces the DDL script for dialect. Partition names and the schema
// are interpolated as identifiers, so both must be plain lower-case names.
func Render(dialect Dialect, schema string, ranges []domain.PartitionRange) (string, error) {
	data := templateData{Schema: schema}
	for _, r := range ranges {
		if !identPattern.MatchString(r.Name) {
			return "", fmt.Errorf("render ddl: invalid partition name %q", r.Name)
		}
		data.Partitions = append(data.Partitions, partitionData{
			Name:           r.Name,
			Lower:          r.Lower.String(),
			Upper:          r.Upper.String(),
			UpperExclusive: r.Upper.AddDays(1).String(),
		})
	}
	var tmpl *template.Template
	switch dialect {
	case DialectSQLite:
		tmpl = sqliteTemplate
	case DialectPostgres:
		if data.Schema == "" {
			data.Schema = DefaultPostgresSchema
		}
		if !identPattern.MatchString(data.Schema) {
			return "", fmt.Errorf("render ddl: invalid schema %q", data.Schema)
		}
		tmpl = postgresTemplate
	default:
		return "", fmt.Errorf("render ddl: unsupported dialect %q", dialect)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s ddl: %w", dialect, err)
	}
	return b.String(), nil
}

// SplitStatements splits a semicolon-terminated DDL script into executable statements.
// It drops blank lines and single-line comments that start with "--".
func SplitStatements(ddl string) []string {
	scanner := bufio.NewScanner(strings.NewReader(ddl))
	var stmts []string
	var current strings.Builder

	flush := func() {
		stmt := strings.TrimSpace(current.String())
		if stmt != "" {
			stmts = append(stmts, stmt)
		}
		current.Reset()
	}

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteByte('\n')
		if strings.HasSuffix(trimmed, ";") {
			flush()
		}
	}

	if tail := strings.TrimSpace(current.String()); tail != "" {
		stmts = append(stmts, tail)
	}

	return stmts
}

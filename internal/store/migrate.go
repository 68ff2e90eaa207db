package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/domex/internal/querysql"
	"github.com/roach88/domex/internal/schema"
)

// columnTypes maps field types to column types, per dialect.
var columnTypes = map[string]map[schema.FieldType]string{
	"sqlite": {
		schema.Boolean:   "BOOLEAN",
		schema.Integer:   "INTEGER",
		schema.Many2one:  "INTEGER",
		schema.Float:     "REAL",
		schema.Monetary:  "REAL",
		schema.Char:      "TEXT",
		schema.Text:      "TEXT",
		schema.HTML:      "TEXT",
		schema.Selection: "TEXT",
		// dates stay text: the driver would parse DATE columns into
		// time.Time
		schema.Date:     "TEXT",
		schema.Datetime: "TEXT",
		schema.Binary:   "BLOB",
	},
	"postgres": {
		schema.Boolean:   "boolean",
		schema.Integer:   "integer",
		schema.Many2one:  "bigint",
		schema.Float:     "double precision",
		schema.Monetary:  "double precision",
		schema.Char:      "varchar",
		schema.Text:      "text",
		schema.HTML:      "text",
		schema.Selection: "varchar",
		schema.Date:      "date",
		schema.Datetime:  "timestamp",
		schema.Binary:    "bytea",
	},
}

func (s *Store) columnType(f *schema.Field) (string, error) {
	types := columnTypes[s.dialect.Name()]
	if f.Translate {
		if s.dialect.Name() == "postgres" {
			return "jsonb", nil
		}
		return "TEXT", nil
	}
	t, ok := types[f.Type]
	if !ok {
		return "", fmt.Errorf("field %s: no %s column type for %s", f, s.dialect.Name(), f.Type)
	}
	return t, nil
}

// Migrate creates the tables of reg's models and binds the store to reg.
// Existing tables are kept. It is safe to call more than once with the
// same registry.
func (s *Store) Migrate(ctx context.Context, reg *schema.Registry) error {
	stmts, err := s.schemaStatements(reg)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %q: %w", stmt, err)
		}
	}
	s.setRegistry(reg)
	s.logger.Debug("migrated", "backend", s.dialect.Name(), "models", len(reg.Models()), "statements", len(stmts))
	return nil
}

// schemaStatements returns the DDL of reg, in dependency-free order:
// tables have no foreign keys.
func (s *Store) schemaStatements(reg *schema.Registry) ([]string, error) {
	pg := s.dialect.Name() == "postgres"
	idType := "INTEGER PRIMARY KEY"
	if pg {
		idType = "bigint PRIMARY KEY"
	}

	var stmts []string
	if pg && s.unaccent {
		stmts = append(stmts, "CREATE EXTENSION IF NOT EXISTS unaccent")
	}

	bridges := make(map[string]bool)
	for _, m := range reg.Models() {
		columns := []string{fmt.Sprintf("%s %s", ident("id"), idType)}
		var indexes []string
		for _, f := range m.Fields() {
			if f.Name == "id" {
				continue
			}
			if f.Type == schema.Many2many && f.Store && !bridges[f.RelationTable] {
				bridges[f.RelationTable] = true
				stmts = append(stmts, s.bridgeTable(f))
			}
			if !f.HasColumn() {
				continue
			}
			t, err := s.columnType(f)
			if err != nil {
				return nil, err
			}
			col := fmt.Sprintf("%s %s", ident(f.Name), t)
			if f.Required {
				col += " NOT NULL"
			}
			columns = append(columns, col)
			if f.Index {
				indexes = append(indexes, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
					ident(querysql.MakeAlias(m.Table, f.Name+"_index")), ident(m.Table), ident(f.Name)))
			}
		}
		stmts = append(stmts, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", ident(m.Table), strings.Join(columns, ", ")))
		stmts = append(stmts, indexes...)
	}

	attachmentID := "INTEGER PRIMARY KEY"
	datas := "BLOB"
	if pg {
		attachmentID = "bigserial PRIMARY KEY"
		datas = "bytea"
	}
	stmts = append(stmts,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s ("id" %s, "res_model" varchar NOT NULL, "res_field" varchar NOT NULL, "res_id" bigint NOT NULL, "datas" %s)`,
			ident(querysql.AttachmentTable), attachmentID, datas),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS "ir_attachment_res_idx" ON %s ("res_model", "res_field", "res_id")`,
			ident(querysql.AttachmentTable)),
	)
	return stmts, nil
}

func (s *Store) bridgeTable(f *schema.Field) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s bigint NOT NULL, %s bigint NOT NULL, PRIMARY KEY (%s, %s))",
		ident(f.RelationTable), ident(f.Column1), ident(f.Column2), ident(f.Column1), ident(f.Column2))
}

// ident quotes a possibly qualified identifier for DDL.
func ident(parts ...string) string {
	return querysql.Ident(parts...).Text()
}

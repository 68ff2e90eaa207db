package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/domex/internal/querysql"
	"github.com/roach88/domex/internal/records"
	"github.com/roach88/domex/internal/schema"
)

// Load inserts every record of ds in one transaction. Rows already present
// with the same id are left untouched, which makes Load idempotent.
func (s *Store) Load(ctx context.Context, ds *records.Dataset) error {
	if s.registry == nil {
		return ErrNotMigrated
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	defer tx.Rollback()

	rows := 0
	for _, m := range ds.Registry.Models() {
		coll, err := ds.Collection(m.Name)
		if err != nil {
			return fmt.Errorf("load: %w", err)
		}
		for _, id := range coll.IDs() {
			rec, _ := coll.Get(id)
			if err := s.insertRecord(ctx, tx, m, rec); err != nil {
				return fmt.Errorf("load %s(%d): %w", m.Name, id, err)
			}
			rows++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("load: %w", err)
	}
	s.logger.Debug("loaded dataset", "backend", s.dialect.Name(), "records", rows)
	return nil
}

func (s *Store) insertRecord(ctx context.Context, tx *sql.Tx, m *schema.Model, rec *records.Record) error {
	columns := []querysql.SQL{querysql.Ident("id")}
	values := []any{rec.ID}
	for _, f := range m.Fields() {
		if f.Name == "id" {
			continue
		}
		v := rec.Value(f.Name)
		switch {
		case f.Type == schema.Many2many && f.Store:
			if err := s.insertBridge(ctx, tx, f, rec.ID, v); err != nil {
				return err
			}
		case f.Type == schema.Binary && f.Attachment && f.Store:
			if err := s.insertAttachment(ctx, tx, m, f, rec.ID, v); err != nil {
				return err
			}
		case f.HasColumn():
			cv, err := s.columnValue(f, v)
			if err != nil {
				return err
			}
			if cv != nil {
				columns = append(columns, querysql.Ident(f.Name))
				values = append(values, cv)
			}
		}
	}
	return s.exec(ctx, tx, querysql.Sprintf("INSERT INTO %s (%s) VALUES %s ON CONFLICT DO NOTHING",
		querysql.Ident(m.Table), querysql.Join(", ", columns...), querysql.List(values)))
}

func (s *Store) insertBridge(ctx context.Context, tx *sql.Tx, f *schema.Field, id int64, v any) error {
	ids, _ := v.([]int64)
	for _, coid := range ids {
		stmt := querysql.Sprintf("INSERT INTO %s (%s, %s) VALUES %s ON CONFLICT DO NOTHING",
			querysql.Ident(f.RelationTable), querysql.Ident(f.Column1), querysql.Ident(f.Column2), querysql.List([]any{id, coid}))
		if err := s.exec(ctx, tx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) insertAttachment(ctx context.Context, tx *sql.Tx, m *schema.Model, f *schema.Field, id int64, v any) error {
	content, ok := v.(string)
	if !ok || content == "" {
		return nil
	}
	return s.exec(ctx, tx, querysql.Sprintf(`INSERT INTO %s ("res_model", "res_field", "res_id", "datas") VALUES %s ON CONFLICT DO NOTHING`,
		querysql.Ident(querysql.AttachmentTable), querysql.List([]any{m.Name, f.Name, id, []byte(content)})))
}

func (s *Store) exec(ctx context.Context, tx *sql.Tx, stmt querysql.SQL) error {
	text, params := querysql.Render(s.dialect, stmt)
	if _, err := tx.ExecContext(ctx, text, params...); err != nil {
		return fmt.Errorf("%s: %w", text, err)
	}
	return nil
}

// columnValue converts a record value to its column form, nil for NULL.
// False is NULL for every type.
func (s *Store) columnValue(f *schema.Field, v any) (any, error) {
	if v == false || v == nil {
		return nil, nil
	}
	if f.Translate {
		m, ok := v.(map[string]string)
		if !ok {
			return nil, fmt.Errorf("field %s: expected translations, got %T", f, v)
		}
		data, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f, err)
		}
		return string(data), nil
	}
	if f.Type == schema.Binary {
		if content, ok := v.(string); ok {
			return []byte(content), nil
		}
	}
	return v, nil
}

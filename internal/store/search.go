package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-sql/civil"

	"github.com/roach88/domex/internal/domain"
	"github.com/roach88/domex/internal/querysql"
	"github.com/roach88/domex/internal/schema"
)

// Search returns the ids of model's records matching d, sorted by order
// (see querysql.ParseOrder). The domain is optimized with the store as
// environment, so nested hierarchy and name searches hit the database too.
func (s *Store) Search(ctx context.Context, model string, d domain.Domain, order string) ([]int64, error) {
	m, err := s.model(model)
	if err != nil {
		return nil, err
	}
	logger := s.logger.With("search_id", s.ids.Generate(), "model", model)
	start := time.Now()

	optimized, err := s.optimizer.Optimize(ctx, d, m)
	if err != nil {
		return nil, err
	}
	q, err := s.builder.SearchQuery(optimized, m)
	if err != nil {
		return nil, err
	}
	if q.IsEmpty() {
		logger.Debug("search skipped", "reason", "empty query")
		return nil, nil
	}
	if q.OrderBy, err = s.builder.OrderBy(m, q.Alias, order); err != nil {
		return nil, err
	}

	ids, err := s.QueryIDs(ctx, q.Bind(s))
	if err != nil {
		logger.Error("search failed", "error", err)
		return nil, err
	}
	logger.Debug("search done",
		"domain", domain.Format(optimized),
		"ids", len(ids),
		"duration", time.Since(start))
	return ids, nil
}

// QueryIDs implements querysql.Runner: it runs q and returns the selected
// ids.
func (s *Store) QueryIDs(ctx context.Context, q *querysql.Query) ([]int64, error) {
	text, params := querysql.Render(s.dialect, q.Select())
	rows, err := s.db.QueryContext(ctx, text, params...)
	if err != nil {
		return nil, fmt.Errorf("query ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ids: %w", err)
	}
	return ids, nil
}

// Read returns the value of a column field or a many2many for each id, in
// domain form: false when unset. Ids without a row are left out.
func (s *Store) Read(ctx context.Context, model string, ids []int64, field string) (map[int64]any, error) {
	m, err := s.model(model)
	if err != nil {
		return nil, err
	}
	f, ok := m.Field(field)
	if !ok {
		return nil, fmt.Errorf("invalid field %s.%s", model, field)
	}
	out := make(map[int64]any, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]any, len(ids))
	for i, id := range ids {
		keys[i] = id
	}

	var stmt querysql.SQL
	switch {
	case f.Type == schema.Many2many && f.Store:
		stmt = querysql.Sprintf("SELECT %s, %s FROM %s WHERE %s IN %s ORDER BY %s, %s",
			querysql.Ident(f.Column1), querysql.Ident(f.Column2), querysql.Ident(f.RelationTable),
			querysql.Ident(f.Column1), querysql.List(keys), querysql.Ident(f.Column1), querysql.Ident(f.Column2))
	case f.Type == schema.One2many:
		comodel, err := f.Comodel()
		if err != nil {
			return nil, err
		}
		stmt = querysql.Sprintf("SELECT %s, %s FROM %s WHERE %s IN %s ORDER BY %s, %s",
			querysql.Ident(f.InverseName), querysql.Ident("id"), querysql.Ident(comodel.Table),
			querysql.Ident(f.InverseName), querysql.List(keys), querysql.Ident(f.InverseName), querysql.Ident("id"))
	case f.HasColumn():
		stmt = querysql.Sprintf("SELECT %s, %s FROM %s WHERE %s IN %s",
			querysql.Ident("id"), querysql.Ident(f.Name), querysql.Ident(m.Table), querysql.Ident("id"), querysql.List(keys))
	default:
		return nil, fmt.Errorf("cannot read %s: no column", f)
	}

	text, params := querysql.Render(s.dialect, stmt)
	rows, err := s.db.QueryContext(ctx, text, params...)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var raw any
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("read %s: %w", f, err)
		}
		if f.Type.IsX2Many() {
			ref, _ := raw.(int64)
			refs, _ := out[id].([]int64)
			out[id] = append(refs, ref)
			continue
		}
		v, err := fromColumn(f, raw)
		if err != nil {
			return nil, fmt.Errorf("read %s(%d): %w", f, id, err)
		}
		out[id] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", f, err)
	}
	if f.Type.IsX2Many() {
		// one2many values are derived and empty ones read as no ids
		var empty any = false
		if f.Type == schema.One2many {
			empty = []int64(nil)
		}
		for _, id := range ids {
			if _, ok := out[id]; !ok {
				out[id] = empty
			}
		}
	}
	return out, nil
}

// fromColumn converts a scanned column value back to domain form.
func fromColumn(f *schema.Field, raw any) (any, error) {
	if b, ok := raw.([]byte); ok && f.Type != schema.Binary {
		raw = string(b)
	}
	if raw == nil {
		return false, nil
	}
	if f.Translate {
		var m map[string]string
		var err error
		switch x := raw.(type) {
		case string:
			err = json.Unmarshal([]byte(x), &m)
		case map[string]any:
			m = make(map[string]string, len(x))
			for lang, v := range x {
				m[lang] = fmt.Sprint(v)
			}
		default:
			err = fmt.Errorf("unexpected %T", raw)
		}
		if err != nil {
			return nil, fmt.Errorf("translations: %w", err)
		}
		return m, nil
	}

	switch f.Type {
	case schema.Boolean:
		switch x := raw.(type) {
		case bool:
			return x, nil
		case int64:
			return x != 0, nil
		}
	case schema.Float, schema.Monetary:
		switch x := raw.(type) {
		case float64:
			return x, nil
		case int64:
			return float64(x), nil
		}
	case schema.Integer, schema.Many2one:
		switch x := raw.(type) {
		case int64:
			return x, nil
		case int32:
			return int64(x), nil
		}
	case schema.Date:
		switch x := raw.(type) {
		case time.Time:
			return civil.DateOf(x), nil
		case string:
			return civil.ParseDate(x)
		}
	case schema.Datetime:
		switch x := raw.(type) {
		case time.Time:
			return civil.DateTimeOf(x.UTC()), nil
		case string:
			t, err := time.Parse(querysql.DateTimeLayout, x)
			if err != nil {
				return nil, err
			}
			return civil.DateTimeOf(t), nil
		}
	case schema.Binary:
		if b, ok := raw.([]byte); ok {
			return string(b), nil
		}
		return raw, nil
	default:
		return raw, nil
	}
	return nil, fmt.Errorf("unexpected %T for a %s field", raw, f.Type)
}

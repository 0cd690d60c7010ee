package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ironforge/athlete-api/internal/model"
)

// detailTable describes a one-row-per-user table of nullable columns:
// athlete_profiles and training_details.
type detailTable struct {
	name   string
	fields []model.Field
}

var (
	profilesTable = detailTable{name: "athlete_profiles", fields: model.ProfileFields}
	trainingTable = detailTable{name: "training_details", fields: model.TrainingFields}
)

func (t detailTable) has(column string) (model.Field, bool) {
	for _, f := range t.fields {
		if f.Name == column {
			return f, true
		}
	}
	return model.Field{}, false
}

func (t detailTable) createEmpty(ctx context.Context, q repos, userID string) error {
	if _, err := q.q.ExecContext(ctx,
		`INSERT INTO `+t.name+` (user_id) VALUES (?)`, userID,
	); err != nil {
		return fmt.Errorf("sqlstore: creating %s row for %s: %w", t.name, userID, err)
	}
	return nil
}

// get returns the row as column → value. Dates render as YYYY-MM-DD,
// numbers as float64 or int64, text as string, NULL as nil. A user without a
// row gets an empty map.
func (t detailTable) get(ctx context.Context, q repos, userID string) (map[string]any, error) {
	cols := make([]string, len(t.fields))
	for i, f := range t.fields {
		cols[i] = f.Name
	}
	raw := make([]any, len(cols))
	dest := make([]any, len(cols))
	for i := range raw {
		dest[i] = &raw[i]
	}

	err := q.q.QueryRowContext(ctx,
		`SELECT `+strings.Join(cols, ", ")+` FROM `+t.name+` WHERE user_id = ?`, userID,
	).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: reading %s for %s: %w", t.name, userID, err)
	}

	out := make(map[string]any, len(cols))
	for i, f := range t.fields {
		v, err := normalize(f.Kind, raw[i])
		if err != nil {
			return nil, fmt.Errorf("sqlstore: %s.%s: %w", t.name, f.Name, err)
		}
		out[f.Name] = v
	}
	return out, nil
}

// update creates the row if missing, then assigns values. Column names are
// checked against the table's field list before they reach the SQL text.
func (t detailTable) update(ctx context.Context, q repos, userID string, values []model.FieldValue) error {
	if len(values) == 0 {
		return nil
	}

	sets := make([]string, 0, len(values)+1)
	args := make([]any, 0, len(values)+2)
	for _, v := range values {
		f, ok := t.has(v.Column)
		if !ok {
			return fmt.Errorf("sqlstore: %s has no editable column %q", t.name, v.Column)
		}
		sets = append(sets, f.Name+" = ?")
		args = append(args, storeValue(f.Kind, v.Value))
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, q.now(), userID)

	var one int
	err := q.q.QueryRowContext(ctx, `SELECT 1 FROM `+t.name+` WHERE user_id = ?`, userID).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if err := t.createEmpty(ctx, q, userID); err != nil {
			return err
		}
	case err != nil:
		return fmt.Errorf("sqlstore: looking up %s row for %s: %w", t.name, userID, err)
	}

	if _, err := q.q.ExecContext(ctx,
		`UPDATE `+t.name+` SET `+strings.Join(sets, ", ")+` WHERE user_id = ?`, args...,
	); err != nil {
		return fmt.Errorf("sqlstore: updating %s for %s: %w", t.name, userID, err)
	}
	return nil
}

func storeValue(kind model.FieldKind, v any) any {
	if kind == model.KindDate {
		switch d := v.(type) {
		case time.Time:
			return d.Format(time.DateOnly)
		case *time.Time:
			return dateArg(d)
		}
	}
	return v
}

// normalize maps a driver value onto the JSON shape of kind. MySQL returns
// DECIMAL and TEXT as []byte; SQLite returns REAL and INTEGER natively.
func normalize(kind model.FieldKind, v any) (any, error) {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	if v == nil {
		return nil, nil
	}

	switch kind {
	case model.KindDate:
		switch d := v.(type) {
		case time.Time:
			return d.Format(time.DateOnly), nil
		case string:
			if len(d) >= len(time.DateOnly) {
				return d[:len(time.DateOnly)], nil
			}
			return d, nil
		}
	case model.KindNumber:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int64:
			return float64(n), nil
		case string:
			return strconv.ParseFloat(n, 64)
		}
	case model.KindInt:
		switch n := v.(type) {
		case int64:
			return n, nil
		case float64:
			return int64(n), nil
		case string:
			return strconv.ParseInt(n, 10, 64)
		}
	case model.KindText:
		if s, ok := v.(string); ok {
			return s, nil
		}
	}
	return nil, fmt.Errorf("unexpected %T value", v)
}

type profileRepo repos

func (r profileRepo) CreateEmpty(ctx context.Context, userID string) error {
	return profilesTable.createEmpty(ctx, repos(r), userID)
}

func (r profileRepo) Get(ctx context.Context, userID string) (model.Profile, error) {
	return profilesTable.get(ctx, repos(r), userID)
}

func (r profileRepo) Update(ctx context.Context, userID string, values []model.FieldValue) error {
	return profilesTable.update(ctx, repos(r), userID, values)
}

type trainingRepo repos

func (r trainingRepo) CreateEmpty(ctx context.Context, userID string) error {
	return trainingTable.createEmpty(ctx, repos(r), userID)
}

func (r trainingRepo) Get(ctx context.Context, userID string) (model.Training, error) {
	return trainingTable.get(ctx, repos(r), userID)
}

func (r trainingRepo) Update(ctx context.Context, userID string, values []model.FieldValue) error {
	return trainingTable.update(ctx, repos(r), userID, values)
}

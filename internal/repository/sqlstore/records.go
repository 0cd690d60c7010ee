package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/xid"

	"github.com/ironforge/athlete-api/internal/apperror"
	"github.com/ironforge/athlete-api/internal/model"
	"github.com/ironforge/athlete-api/internal/repository"
)

type achievementRepo repos

func (r achievementRepo) Create(ctx context.Context, a *model.Achievement) error {
	a.ID = xid.New().String()
	a.CreatedAt = r.now()

	_, err := r.q.ExecContext(ctx,
		`INSERT INTO achievements (id, user_id, title, description, event_name, position, award_date, level, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.Title, a.Description, a.EventName, a.Position, dateArg(a.AwardDate), a.Level, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: inserting achievement for %s: %w", a.UserID, err)
	}
	return nil
}

func (r achievementRepo) ListRecent(ctx context.Context, userID string, opts repository.ListOptions) ([]model.Achievement, error) {
	opts = clampList(opts)
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, user_id, title, description, event_name, position, award_date, level, created_at
		 FROM achievements WHERE user_id = ?
		 ORDER BY award_date DESC, id DESC
		 LIMIT ? OFFSET ?`,
		userID, opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing achievements for %s: %w", userID, err)
	}
	defer rows.Close()

	out := []model.Achievement{}
	for rows.Next() {
		var (
			a                          model.Achievement
			desc, event, position, lvl sql.NullString
			awardDate                  sql.NullTime
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.Title, &desc, &event, &position, &awardDate, &lvl, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlstore: scanning achievement: %w", err)
		}
		a.Description = stringValue(desc)
		a.EventName = stringValue(event)
		a.Position = stringValue(position)
		a.Level = stringValue(lvl)
		a.AwardDate = dateValue(awardDate)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterating achievements: %w", err)
	}
	return out, nil
}

func (r achievementRepo) Delete(ctx context.Context, userID, id string) error {
	return deleteOwned(ctx, repos(r), "achievements", "Achievement", userID, id)
}

type statRepo repos

func (r statRepo) Create(ctx context.Context, s *model.PerformanceStat) error {
	s.ID = xid.New().String()
	s.CreatedAt = r.now()

	_, err := r.q.ExecContext(ctx,
		`INSERT INTO performance_stats (id, user_id, stat_name, stat_value, unit, recorded_date, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.StatName, s.StatValue, s.Unit, dateArg(s.RecordedDate), s.Notes, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: inserting stat for %s: %w", s.UserID, err)
	}
	return nil
}

func (r statRepo) ListRecent(ctx context.Context, userID string, opts repository.ListOptions) ([]model.PerformanceStat, error) {
	return r.list(ctx, userID, "recorded_date DESC, id DESC", opts)
}

func (r statRepo) ListForSeries(ctx context.Context, userID string, opts repository.ListOptions) ([]model.PerformanceStat, error) {
	return r.list(ctx, userID, "stat_name ASC, recorded_date ASC, id ASC", opts)
}

func (r statRepo) Delete(ctx context.Context, userID, id string) error {
	return deleteOwned(ctx, repos(r), "performance_stats", "Stat", userID, id)
}

// list runs the stats query with a fixed ORDER BY; order is never caller input.
func (r statRepo) list(ctx context.Context, userID, order string, opts repository.ListOptions) ([]model.PerformanceStat, error) {
	opts = clampList(opts)
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, user_id, stat_name, stat_value, unit, recorded_date, notes, created_at
		 FROM performance_stats WHERE user_id = ?
		 ORDER BY `+order+`
		 LIMIT ? OFFSET ?`,
		userID, opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing stats for %s: %w", userID, err)
	}
	defer rows.Close()

	out := []model.PerformanceStat{}
	for rows.Next() {
		var (
			s           model.PerformanceStat
			unit, notes sql.NullString
			recorded    sql.NullTime
		)
		if err := rows.Scan(&s.ID, &s.UserID, &s.StatName, &s.StatValue, &unit, &recorded, &notes, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlstore: scanning stat: %w", err)
		}
		s.Unit = stringValue(unit)
		s.Notes = stringValue(notes)
		s.RecordedDate = dateValue(recorded)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterating stats: %w", err)
	}
	return out, nil
}

// deleteOwned removes one row of table scoped to its owner. Someone else's
// row is reported exactly like a missing one.
func deleteOwned(ctx context.Context, r repos, table, label, userID, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("sqlstore: deleting from %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: deleting from %s: %w", table, err)
	}
	if n == 0 {
		return apperror.NotFoundMessage(label + " not found.")
	}
	return nil
}

package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/ironforge/athlete-api/internal/apperror"
	"github.com/ironforge/athlete-api/internal/model"
	"github.com/ironforge/athlete-api/internal/repository"
	"github.com/ironforge/athlete-api/internal/stats"
)

// Paging bounds shared by GET /profile and GET /stats/series.
const (
	DefaultListLimit = 50
	MaxListLimit     = 100
	MaxListOffset    = 10000
)

// MsgNoFields is returned by an update that names no editable field.
const MsgNoFields = "No fields to update."

var achievementLevels = []string{"local", "state", "national", "international"}

// AthleteService implements the /api/athlete routes for the signed-in user.
type AthleteService struct {
	store  repository.Store
	logger *slog.Logger
}

func NewAthleteService(store repository.Store, logger *slog.Logger) *AthleteService {
	return &AthleteService{store: store, logger: logger}
}

// Page validates limit/offset query values. Empty strings take the defaults.
func Page(limit, offset string) (repository.ListOptions, error) {
	var errs fieldErrors
	opts := repository.ListOptions{Limit: DefaultListLimit}

	if limit != "" {
		v, msg := integer(1, MaxListLimit)(limit)
		if msg != "" {
			errs.add("limit", "limit must be 1-100.")
		} else {
			opts.Limit = int(v.(int64))
		}
	}
	if offset != "" {
		v, msg := integer(0, MaxListOffset)(offset)
		if msg != "" {
			errs.add("offset", "offset must be 0-10000.")
		} else {
			opts.Offset = int(v.(int64))
		}
	}
	if err := errs.err(); err != nil {
		return repository.ListOptions{}, err
	}
	return opts, nil
}

// Snapshot is everything GET /profile shows. Achievements and stats are
// paged with the same options.
func (s *AthleteService) Snapshot(ctx context.Context, userID string, opts repository.ListOptions) (*model.AthleteSnapshot, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/athlete: loading user %s: %w", userID, err)
	}
	profile, err := s.store.Profiles().Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/athlete: loading profile: %w", err)
	}
	achievements, err := s.store.Achievements().ListRecent(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("service/athlete: listing achievements: %w", err)
	}
	recent, err := s.store.Stats().ListRecent(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("service/athlete: listing stats: %w", err)
	}
	training, err := s.store.Training().Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/athlete: loading training: %w", err)
	}

	return &model.AthleteSnapshot{
		User:         user,
		Profile:      profile,
		Achievements: achievements,
		Stats:        recent,
		Training:     training,
	}, nil
}

// UpdateProfile applies the whitelisted fields of body. full_name goes to
// the users row, everything else to athlete_profiles; both writes commit
// together. Unknown keys are ignored. An empty string stores NULL.
func (s *AthleteService) UpdateProfile(ctx context.Context, userID string, body map[string]any) error {
	var errs fieldErrors

	var fullName *string
	if raw, ok := body["full_name"]; ok {
		str, isString := raw.(string)
		if !isString {
			errs.add("full_name", "Full name must be a string.")
		} else {
			name := validFullName(&errs, "full_name", str)
			fullName = &name
		}
	}
	values := collect(&errs, body, model.ProfileFields, profileRules)

	if err := errs.err(); err != nil {
		return err
	}
	if fullName == nil && len(values) == 0 {
		return apperror.BadRequest(MsgNoFields)
	}

	err := s.store.InTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		if fullName != nil {
			if err := tx.Users().UpdateFullName(ctx, userID, *fullName); err != nil {
				return err
			}
		}
		return tx.Profiles().Update(ctx, userID, values)
	})
	if err != nil {
		return fmt.Errorf("service/athlete: updating profile for %s: %w", userID, err)
	}
	return nil
}

// UpdateTraining applies the whitelisted fields of body to training_details.
func (s *AthleteService) UpdateTraining(ctx context.Context, userID string, body map[string]any) error {
	var errs fieldErrors
	values := collect(&errs, body, model.TrainingFields, trainingRules)
	if err := errs.err(); err != nil {
		return err
	}
	if len(values) == 0 {
		return apperror.BadRequest(MsgNoFields)
	}

	if err := s.store.Training().Update(ctx, userID, values); err != nil {
		return fmt.Errorf("service/athlete: updating training for %s: %w", userID, err)
	}
	return nil
}

// collect runs rules over the keys of body that name an editable field, in
// the field list's order so errors and SQL are deterministic.
func collect(errs *fieldErrors, body map[string]any, fields []model.Field, rules map[string]rule) []model.FieldValue {
	var values []model.FieldValue
	for _, f := range fields {
		raw, ok := body[f.Name]
		if !ok {
			continue
		}
		v, msg := rules[f.Name](raw)
		if msg != "" {
			errs.add(f.Name, humanize(f.Name)+" "+msg+".")
			continue
		}
		values = append(values, model.FieldValue{Column: f.Name, Value: v})
	}
	return values
}

// humanize turns "height_cm" into "Height cm".
func humanize(field string) string {
	s := strings.ReplaceAll(field, "_", " ")
	return strings.ToUpper(s[:1]) + s[1:]
}

// AchievementInput is the body of POST /achievements.
type AchievementInput struct {
	Title       any `json:"title"`
	Description any `json:"description"`
	EventName   any `json:"event_name"`
	Position    any `json:"position"`
	AwardDate   any `json:"award_date"`
	Level       any `json:"level"`
}

func (s *AthleteService) AddAchievement(ctx context.Context, userID string, in AchievementInput) (*model.Achievement, error) {
	var errs fieldErrors
	a := &model.Achievement{UserID: userID}

	if title := optString(&errs, "title", in.Title, text(255)); title == nil {
		if !hasField(errs, "title") {
			errs.add("title", "Title is required.")
		}
	} else {
		a.Title = *title
	}
	a.Description = optString(&errs, "description", in.Description, text(4000))
	a.EventName = optString(&errs, "event_name", in.EventName, text(255))
	a.Position = optString(&errs, "position", in.Position, text(50))
	a.AwardDate = optDate(&errs, "award_date", in.AwardDate)
	a.Level = optString(&errs, "level", in.Level, oneOf(achievementLevels...))

	if err := errs.err(); err != nil {
		return nil, err
	}
	if err := s.store.Achievements().Create(ctx, a); err != nil {
		return nil, fmt.Errorf("service/athlete: adding achievement: %w", err)
	}
	return a, nil
}

func (s *AthleteService) DeleteAchievement(ctx context.Context, userID, id string) error {
	if err := validID(id); err != nil {
		return err
	}
	if err := s.store.Achievements().Delete(ctx, userID, id); err != nil {
		return fmt.Errorf("service/athlete: deleting achievement %s: %w", id, err)
	}
	return nil
}

// StatInput is the body of POST /stats.
type StatInput struct {
	StatName     any `json:"stat_name"`
	StatValue    any `json:"stat_value"`
	Unit         any `json:"unit"`
	RecordedDate any `json:"recorded_date"`
	Notes        any `json:"notes"`
}

func (s *AthleteService) AddStat(ctx context.Context, userID string, in StatInput) (*model.PerformanceStat, error) {
	var errs fieldErrors
	st := &model.PerformanceStat{UserID: userID}

	if name := optString(&errs, "stat_name", in.StatName, text(100)); name != nil {
		st.StatName = *name
	} else if !hasField(errs, "stat_name") {
		errs.add("stat_name", "Stat name is required.")
	}
	// stat_value is free text: "72.5", "12:30" and "PR attempt" are all valid.
	if value := optString(&errs, "stat_value", statValue(in.StatValue), text(100)); value != nil {
		st.StatValue = *value
	} else if !hasField(errs, "stat_value") {
		errs.add("stat_value", "Stat value is required.")
	}
	st.Unit = optString(&errs, "unit", in.Unit, text(30))
	st.RecordedDate = optDate(&errs, "recorded_date", in.RecordedDate)
	st.Notes = optString(&errs, "notes", in.Notes, text(4000))

	if err := errs.err(); err != nil {
		return nil, err
	}
	if err := s.store.Stats().Create(ctx, st); err != nil {
		return nil, fmt.Errorf("service/athlete: adding stat: %w", err)
	}
	return st, nil
}

// statValue lets clients send a bare JSON number for stat_value.
func statValue(raw any) any {
	if f, ok := raw.(float64); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return raw
}

func (s *AthleteService) DeleteStat(ctx context.Context, userID, id string) error {
	if err := validID(id); err != nil {
		return err
	}
	if err := s.store.Stats().Delete(ctx, userID, id); err != nil {
		return fmt.Errorf("service/athlete: deleting stat %s: %w", id, err)
	}
	return nil
}

// StatsSeries groups the user's stats per metric for charting.
func (s *AthleteService) StatsSeries(ctx context.Context, userID string, opts repository.ListOptions) (stats.Series, error) {
	rows, err := s.store.Stats().ListForSeries(ctx, userID, opts)
	if err != nil {
		return stats.Series{}, fmt.Errorf("service/athlete: listing stats for series: %w", err)
	}
	return stats.Build(rows), nil
}

// validID rejects ids that cannot be a stored row id before they reach SQL.
func validID(id string) error {
	if _, err := xid.FromString(id); err != nil {
		return apperror.ValidationFailed("id", "Invalid id.")
	}
	return nil
}

func optString(errs *fieldErrors, field string, raw any, r rule) *string {
	v, msg := r(raw)
	if msg != "" {
		errs.add(field, humanize(field)+" "+msg+".")
		return nil
	}
	if v == nil {
		return nil
	}
	s := v.(string)
	return &s
}

func optDate(errs *fieldErrors, field string, raw any) *time.Time {
	v, msg := date(raw)
	if msg != "" {
		errs.add(field, humanize(field)+" "+msg+".")
		return nil
	}
	if v == nil {
		return nil
	}
	t := v.(time.Time)
	return &t
}

func hasField(errs fieldErrors, field string) bool {
	for _, e := range errs {
		if e.Field == field {
			return true
		}
	}
	return false
}

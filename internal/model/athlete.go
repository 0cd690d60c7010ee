package model

import "time"

// Profile is the athlete_profiles row as returned by GET /profile. Columns
// are nullable, so the row is carried as a column → value map; a missing row
// is an empty map.
type Profile map[string]any

// Training is the training_details row, shaped like Profile.
type Training map[string]any

// Achievement is a competition result or award owned by one user.
type Achievement struct {
	ID          string     `json:"id"`
	UserID      string     `json:"-"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	EventName   *string    `json:"event_name"`
	Position    *string    `json:"position"`
	AwardDate   *time.Time `json:"award_date"`
	Level       *string    `json:"level"`
	CreatedAt   time.Time  `json:"created_at"`
}

// PerformanceStat is one recorded measurement. StatValue is kept as the raw
// text the athlete entered; it may or may not be numeric.
type PerformanceStat struct {
	ID           string     `json:"id"`
	UserID       string     `json:"-"`
	StatName     string     `json:"stat_name"`
	StatValue    string     `json:"stat_value"`
	Unit         *string    `json:"unit"`
	RecordedDate *time.Time `json:"recorded_date"`
	Notes        *string    `json:"notes"`
	CreatedAt    time.Time  `json:"created_at"`
}

// AthleteSnapshot is everything GET /profile returns in one response.
type AthleteSnapshot struct {
	User         *User             `json:"user"`
	Profile      Profile           `json:"profile"`
	Achievements []Achievement     `json:"achievements"`
	Stats        []PerformanceStat `json:"stats"`
	Training     Training          `json:"training"`
}

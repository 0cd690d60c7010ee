// Package stats turns recorded performance stats into per-metric series for
// charting: every point in order, the latest point and the personal best.
package stats

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/ironforge/athlete-api/internal/model"
)

// Point is one stat row as it appears in a series.
type Point struct {
	ID           string     `json:"id"`
	RecordedDate *time.Time `json:"recorded_date"`
	StatValue    string     `json:"stat_value"`
	NumericValue *float64   `json:"numeric_value"`
	IsNumeric    bool       `json:"is_numeric"`
	Unit         *string    `json:"unit"`
	Notes        *string    `json:"notes"`
}

// Bucket is the series of one metric.
type Bucket struct {
	Metric       string   `json:"metric"`
	Unit         *string  `json:"unit"`
	Latest       *Point   `json:"latest"`
	PersonalBest *Point   `json:"personal_best"`
	Points       []*Point `json:"points"`
}

// Series is the response body of GET /stats/series.
type Series struct {
	Metrics []string  `json:"metrics"`
	Series  []*Bucket `json:"series"`
}

// buckets is an insertion-ordered map from metric name to bucket: keys holds
// first-seen order, index gives O(1) lookup.
type buckets struct {
	keys  []string
	index map[string]*Bucket
}

func newBuckets() *buckets {
	return &buckets{index: make(map[string]*Bucket)}
}

// getOrCreate returns the bucket for metric, creating it at the end of the
// order on first sight.
func (b *buckets) getOrCreate(metric string) (*Bucket, bool) {
	if bucket, ok := b.index[metric]; ok {
		return bucket, false
	}
	bucket := &Bucket{Metric: metric, Points: []*Point{}}
	b.keys = append(b.keys, metric)
	b.index[metric] = bucket
	return bucket, true
}

// Build groups rows into per-metric series.
//
// rows must already be ordered by (stat name, recorded date, id) ascending;
// Build keeps that order and never re-sorts. Within a metric:
//   - the unit is the first non-empty unit seen
//   - latest is replaced whenever a row's date is >= the current latest's
//     date, so ties go to the later row; a nil date counts as the Unix epoch
//   - personal best is the first numeric point with the strictly greatest
//     value; non-numeric values never compete
//
// Build does not modify rows.
func Build(rows []model.PerformanceStat) Series {
	byMetric := newBuckets()

	for i := range rows {
		row := &rows[i]
		bucket, created := byMetric.getOrCreate(row.StatName)

		unit := nonEmpty(row.Unit)
		if created || (bucket.Unit == nil && unit != nil) {
			bucket.Unit = unit
		}

		value, numeric := ParseNumeric(row.StatValue)
		point := &Point{
			ID:           row.ID,
			RecordedDate: row.RecordedDate,
			StatValue:    row.StatValue,
			IsNumeric:    numeric,
			Unit:         unit,
			Notes:        row.Notes,
		}
		if numeric {
			point.NumericValue = &value
		}
		if point.Unit == nil {
			point.Unit = bucket.Unit
		}
		bucket.Points = append(bucket.Points, point)

		if bucket.Latest == nil || !dateOrEpoch(point.RecordedDate).Before(dateOrEpoch(bucket.Latest.RecordedDate)) {
			bucket.Latest = point
		}
		if numeric && (bucket.PersonalBest == nil || value > *bucket.PersonalBest.NumericValue) {
			bucket.PersonalBest = point
		}
	}

	out := Series{
		Metrics: make([]string, 0, len(byMetric.keys)),
		Series:  make([]*Bucket, 0, len(byMetric.keys)),
	}
	for _, k := range byMetric.keys {
		out.Metrics = append(out.Metrics, k)
		out.Series = append(out.Series, byMetric.index[k])
	}
	return out
}

var epoch = time.Unix(0, 0).UTC()

func dateOrEpoch(t *time.Time) time.Time {
	if t == nil {
		return epoch
	}
	return *t
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

// numericPrefix matches the longest leading decimal literal, the way a
// lenient float parser reads "72.5 kg" as 72.5.
var numericPrefix = regexp.MustCompile(`^[+-]?(?:Infinity|(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?)`)

// ParseNumeric reads a leading number from s. Leading whitespace is skipped
// and trailing text is ignored ("42 reps" is 42). ok is false when there is
// no leading number or the result is not finite.
func ParseNumeric(s string) (value float64, ok bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	lit := numericPrefix.FindString(s)
	if lit == "" || strings.HasSuffix(lit, "Infinity") {
		return 0, false
	}
	// Underflow comes back as ErrRange with a finite 0; overflow as ±Inf.
	v, err := strconv.ParseFloat(lit, 64)
	if (err != nil && !errors.Is(err, strconv.ErrRange)) || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

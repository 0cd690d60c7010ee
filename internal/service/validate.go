package service

import (
	"fmt"
	"net/mail"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/ironforge/athlete-api/internal/apperror"
)

// rule validates one JSON field value. It returns the value to store (nil
// for NULL) or a message describing why raw was rejected.
type rule func(raw any) (value any, msg string)

// fieldErrors collects validation failures in request order.
type fieldErrors []apperror.FieldError

func (e *fieldErrors) add(field, msg string) {
	*e = append(*e, apperror.FieldError{Field: field, Message: msg})
}

func (e fieldErrors) err() error {
	return apperror.Invalid(e)
}

// asString accepts strings and treats null as empty.
func asString(raw any) (string, bool) {
	switch v := raw.(type) {
	case nil:
		return "", true
	case string:
		return strings.TrimSpace(v), true
	}
	return "", false
}

func text(max int) rule {
	return func(raw any) (any, string) {
		s, ok := asString(raw)
		if !ok {
			return nil, "must be a string"
		}
		if s == "" {
			return nil, ""
		}
		if utf8.RuneCountInString(s) > max {
			return nil, fmt.Sprintf("must be at most %d characters", max)
		}
		return s, ""
	}
}

func oneOf(allowed ...string) rule {
	return func(raw any) (any, string) {
		s, ok := asString(raw)
		if !ok {
			return nil, "must be a string"
		}
		if s == "" {
			return nil, ""
		}
		for _, a := range allowed {
			if strings.EqualFold(s, a) {
				return a, ""
			}
		}
		return nil, "must be one of " + strings.Join(allowed, ", ")
	}
}

// number accepts JSON numbers and numeric strings within [min, max].
func number(min, max float64) rule {
	return func(raw any) (any, string) {
		var f float64
		switch v := raw.(type) {
		case nil:
			return nil, ""
		case float64:
			f = v
		case string:
			s := strings.TrimSpace(v)
			if s == "" {
				return nil, ""
			}
			parsed, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, "must be a number"
			}
			f = parsed
		default:
			return nil, "must be a number"
		}
		if f < min || f > max {
			return nil, fmt.Sprintf("must be between %g and %g", min, max)
		}
		return f, ""
	}
}

func integer(min, max int64) rule {
	num := number(float64(min), float64(max))
	return func(raw any) (any, string) {
		v, msg := num(raw)
		if msg != "" || v == nil {
			return v, msg
		}
		f := v.(float64)
		if f != float64(int64(f)) {
			return nil, "must be a whole number"
		}
		return int64(f), ""
	}
}

// date accepts YYYY-MM-DD or a full RFC 3339 timestamp, keeping only the
// calendar date.
func date(raw any) (any, string) {
	s, ok := asString(raw)
	if !ok {
		return nil, "must be a date (YYYY-MM-DD)"
	}
	if s == "" {
		return nil, ""
	}
	t, err := parseDate(s)
	if err != nil {
		return nil, "must be a date (YYYY-MM-DD)"
	}
	return t, ""
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

func httpURL(max int) rule {
	txt := text(max)
	return func(raw any) (any, string) {
		v, msg := txt(raw)
		if msg != "" || v == nil {
			return v, msg
		}
		u, err := url.Parse(v.(string))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, "must be an http or https URL"
		}
		return v, ""
	}
}

// profileRules and trainingRules whitelist the editable columns of
// model.ProfileFields and model.TrainingFields.
var profileRules = map[string]rule{
	"date_of_birth":           date,
	"gender":                  oneOf("male", "female", "non_binary", "prefer_not_to_say"),
	"nationality":             text(80),
	"city":                    text(100),
	"state":                   text(100),
	"country":                 text(100),
	"bio":                     text(4000),
	"profile_photo":           httpURL(500),
	"height_cm":               number(100, 250),
	"weight_kg":               number(30, 300),
	"blood_group":             oneOf("A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"),
	"dominant_hand":           oneOf("left", "right", "ambidextrous"),
	"sport_category":          text(100),
	"sport_discipline":        text(150),
	"playing_level":           oneOf("beginner", "amateur", "semi_pro", "professional", "elite"),
	"team_club":               text(150),
	"coach_name":              text(120),
	"years_experience":        integer(0, 100),
	"membership_plan":         oneOf("iron_starter", "iron_forge", "iron_elite"),
	"phone":                   text(20),
	"emergency_contact_name":  text(120),
	"emergency_contact_phone": text(20),
	"social_instagram":        text(100),
	"social_twitter":          text(100),
	"social_linkedin":         text(100),
	"website":                 httpURL(255),
}

var trainingRules = map[string]rule{
	"training_days":    text(200),
	"session_duration": text(50),
	"preferred_time":   oneOf("morning", "afternoon", "evening", "night"),
	"current_program":  text(255),
	"training_goals":   text(4000),
	"diet_type":        text(100),
	"supplements":      text(4000),
	"injuries_history": text(4000),
	"recovery_methods": text(4000),
}

const (
	maxFullName = 120
	maxEmail    = 255
	minPassword = 8
	maxPassword = 72
)

func validFullName(errs *fieldErrors, field, name string) string {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		errs.add(field, "Full name is required.")
	case utf8.RuneCountInString(name) > maxFullName:
		errs.add(field, fmt.Sprintf("Full name must be at most %d characters.", maxFullName))
	}
	return name
}

// normalizeEmail trims and lower-cases email, recording an error when it is
// not a bare address.
func normalizeEmail(errs *fieldErrors, email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if email == "" || err != nil || addr.Address != email || len(email) > maxEmail {
		errs.add("email", "A valid email is required.")
	}
	return email
}

// validPassword requires 8 to 72 bytes with at least one uppercase letter and
// one digit. bcrypt ignores anything past 72 bytes.
func validPassword(errs *fieldErrors, field, pw string) {
	if len(pw) < minPassword || len(pw) > maxPassword {
		errs.add(field, fmt.Sprintf("Password must be %d to %d characters.", minPassword, maxPassword))
		return
	}
	var upper, digit bool
	for _, r := range pw {
		upper = upper || unicode.IsUpper(r)
		digit = digit || unicode.IsDigit(r)
	}
	if !upper || !digit {
		errs.add(field, "Password must contain an uppercase letter and a number.")
	}
}

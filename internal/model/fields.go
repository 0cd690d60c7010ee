package model

// FieldKind says how a nullable profile or training column is stored and
// how its value is rendered in JSON.
type FieldKind int

const (
	KindText FieldKind = iota
	KindNumber
	KindInt
	KindDate
)

// Field is one editable column of athlete_profiles or training_details.
type Field struct {
	Name string
	Kind FieldKind
}

// ProfileFields are the editable athlete_profiles columns, in display order.
// full_name is not here: it lives on the users row.
var ProfileFields = []Field{
	{"date_of_birth", KindDate},
	{"gender", KindText},
	{"nationality", KindText},
	{"city", KindText},
	{"state", KindText},
	{"country", KindText},
	{"bio", KindText},
	{"profile_photo", KindText},
	{"height_cm", KindNumber},
	{"weight_kg", KindNumber},
	{"blood_group", KindText},
	{"dominant_hand", KindText},
	{"sport_category", KindText},
	{"sport_discipline", KindText},
	{"playing_level", KindText},
	{"team_club", KindText},
	{"coach_name", KindText},
	{"years_experience", KindInt},
	{"membership_plan", KindText},
	{"phone", KindText},
	{"emergency_contact_name", KindText},
	{"emergency_contact_phone", KindText},
	{"social_instagram", KindText},
	{"social_twitter", KindText},
	{"social_linkedin", KindText},
	{"website", KindText},
}

// TrainingFields are the editable training_details columns. They are all
// free text apart from preferred_time, which is an enum.
var TrainingFields = []Field{
	{"training_days", KindText},
	{"session_duration", KindText},
	{"preferred_time", KindText},
	{"current_program", KindText},
	{"training_goals", KindText},
	{"diet_type", KindText},
	{"supplements", KindText},
	{"injuries_history", KindText},
	{"recovery_methods", KindText},
}

// FieldValue is one column assignment of a partial update. A nil Value
// stores NULL.
type FieldValue struct {
	Column string
	Value  any
}

package model

import "time"

// Prospect is one normalized contact discovered on the search-results
// surface. ProfileURL is the stable identity used for deduplication and is
// immutable once a record exists.
type Prospect struct {
	ProfileURL string `json:"profile_url"`

	FullName  string `json:"full_name"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`

	JobTitle           string `json:"job_title"`
	Company            string `json:"company"`
	CompanyURL         string `json:"company_url,omitempty"`
	CompanyDomain      string `json:"company_domain,omitempty"`
	CompanySize        string `json:"company_size,omitempty"`
	CompanyDescription string `json:"company_description,omitempty"`
	Industry           string `json:"industry,omitempty"`
	Summary            string `json:"summary,omitempty"`

	ContactCity    string `json:"contact_city,omitempty"`
	ContactRegion  string `json:"contact_region,omitempty"`
	ContactCountry string `json:"contact_country,omitempty"`
	CompanyCity    string `json:"company_city,omitempty"`
	CompanyRegion  string `json:"company_region,omitempty"`
	CompanyCountry string `json:"company_country,omitempty"`

	YearsInPosition  int    `json:"years_in_position"`
	MonthsInPosition int    `json:"months_in_position"`
	YearsAtCompany   int    `json:"years_at_company"`
	MonthsAtCompany  int    `json:"months_at_company"`
	StartedYear      string `json:"started_year,omitempty"`
	StartedMonth     string `json:"started_month,omitempty"`

	IsPremium     bool `json:"is_premium"`
	OpenToContact bool `json:"open_to_contact"`

	// Activity signals. Zero values mean the data was not present on the
	// result row, which the scorer treats differently from a real zero.
	HasPosted         bool `json:"has_posted"`
	ProfileViews      int  `json:"profile_views,omitempty"`
	MutualConnections int  `json:"mutual_connections,omitempty"`

	Skills     []string     `json:"skills,omitempty"`
	Experience []Experience `json:"experience,omitempty"`

	// Score is attached only after scoring; raw extraction leaves it nil.
	Score *ScoreBreakdown `json:"score,omitempty"`

	FirstSeenAt time.Time `json:"first_seen_at,omitempty"`
	LastSeenAt  time.Time `json:"last_seen_at,omitempty"`
}

// Experience is one prior or current role attached to a prospect.
type Experience struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Duration    string `json:"duration,omitempty"`
	Description string `json:"description,omitempty"`
}

// ScoreBreakdown holds the seven [0,1] sub-scores and the weighted [0,100]
// total produced by the signal scorer.
type ScoreBreakdown struct {
	KeywordPresence float64 `json:"keyword_presence"`
	TitleRelevance  float64 `json:"title_relevance"`
	CompanySize     float64 `json:"company_size"`
	ActivityLevel   float64 `json:"activity_level"`
	IndustryMatch   float64 `json:"industry_match"`
	SkillsMatch     float64 `json:"skills_match"`
	ExperienceMatch float64 `json:"experience_match"`
	Total           float64 `json:"total"`
}

// HasActivityData reports whether any activity signal was present on the
// source row. The scorer falls back to a neutral score when none was.
func (p *Prospect) HasActivityData() bool {
	return p.HasPosted || p.ProfileViews > 0 || p.MutualConnections > 0
}

package model

import "time"

// TerminationReason describes how a crawl run ended.
type TerminationReason string

const (
	TerminationCompleted       TerminationReason = "completed"
	TerminationFailed          TerminationReason = "failed"
	TerminationMaxPagesReached TerminationReason = "max_pages_reached"
	TerminationCancelled       TerminationReason = "cancelled"
)

// CrawlState is the singleton progress record for one crawl run. The
// controller owns it for the duration of the run and persists it together
// with each page's prospects, so an interrupted run can report prior
// progress on the next start.
type CrawlState struct {
	RunID               string            `json:"run_id"`
	CurrentPage         int               `json:"current_page"`
	TotalExtracted      int               `json:"total_extracted"`
	ConsecutiveFailures int               `json:"consecutive_failures"`
	TerminationReason   TerminationReason `json:"termination_reason,omitempty"`
	LastUpdated         time.Time         `json:"last_updated"`
}

// CrawlResult is what a finished run reports to the caller. Totals cover
// everything persisted before termination, including partial runs.
type CrawlResult struct {
	TotalExtracted int               `json:"total_extracted"`
	PagesVisited   int               `json:"pages_visited"`
	Reason         TerminationReason `json:"termination_reason"`
}

// RawRow is one unprocessed result row as the page renderer saw it. Every
// field is free text; the extractor turns it into a Prospect. Missing
// elements come through as empty strings.
type RawRow struct {
	Name            string `json:"name"`
	ProfileHref     string `json:"profile_href"`
	Title           string `json:"title"`
	Company         string `json:"company"`
	CompanyHref     string `json:"company_href"`
	CompanySize     string `json:"company_size"`
	CompanyLocation string `json:"company_location"`
	CompanyDesc     string `json:"company_desc"`
	Industry        string `json:"industry"`
	Location        string `json:"location"`
	Summary         string `json:"summary"`
	PositionTenure  string `json:"position_tenure"`
	CompanyTenure   string `json:"company_tenure"`
	StartDate       string `json:"start_date"`
	PremiumBadge    string `json:"premium_badge"`
	InMailStatus    string `json:"inmail_status"`
}

// Package extract normalizes raw search-result rows into Prospect records.
//
// Extract is a total function: a failure in any single field rule leaves
// that field at its zero value and never aborts the row. Totality is
// structural — each field is produced by one entry in a declarative rule
// table, and rule panics are confined to that rule.
package extract

import (
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/model"
)

// fieldRule populates one logical field group on the prospect from the raw
// row. Rules must not depend on each other's output.
type fieldRule struct {
	name  string
	apply func(raw *model.RawRow, p *model.Prospect)
}

var rules = []fieldRule{
	{"identity", func(raw *model.RawRow, p *model.Prospect) {
		p.ProfileURL = raw.ProfileHref
	}},
	{"name", func(raw *model.RawRow, p *model.Prospect) {
		p.FullName = raw.Name
		p.FirstName, p.LastName = SplitName(raw.Name)
	}},
	{"role", func(raw *model.RawRow, p *model.Prospect) {
		p.JobTitle = raw.Title
		p.Company = raw.Company
		p.CompanySize = raw.CompanySize
		p.Industry = raw.Industry
		p.Summary = raw.Summary
		p.CompanyDescription = raw.CompanyDesc
	}},
	{"company_link", func(raw *model.RawRow, p *model.Prospect) {
		p.CompanyURL = raw.CompanyHref
		p.CompanyDomain = ExtractDomain(raw.CompanyHref)
	}},
	{"contact_location", func(raw *model.RawRow, p *model.Prospect) {
		p.ContactCity, p.ContactRegion, p.ContactCountry = SplitLocation(raw.Location)
	}},
	{"company_location", func(raw *model.RawRow, p *model.Prospect) {
		p.CompanyCity, p.CompanyRegion, p.CompanyCountry = SplitLocation(raw.CompanyLocation)
	}},
	{"position_tenure", func(raw *model.RawRow, p *model.Prospect) {
		p.YearsInPosition, p.MonthsInPosition = ParseDuration(raw.PositionTenure)
	}},
	{"company_tenure", func(raw *model.RawRow, p *model.Prospect) {
		p.YearsAtCompany, p.MonthsAtCompany = ParseDuration(raw.CompanyTenure)
	}},
	{"start_date", func(raw *model.RawRow, p *model.Prospect) {
		p.StartedYear, p.StartedMonth = ParseStartDate(raw.StartDate)
	}},
	{"flags", func(raw *model.RawRow, p *model.Prospect) {
		p.IsPremium = raw.PremiumBadge != ""
		p.OpenToContact = raw.InMailStatus != ""
	}},
}

// Extract converts one raw result row into a normalized Prospect. It never
// fails; field-level problems are logged with the field name and the field
// keeps its default.
func Extract(raw model.RawRow) model.Prospect {
	p := model.Prospect{
		FirstSeenAt: time.Now().UTC(),
		LastSeenAt:  time.Now().UTC(),
	}
	for _, r := range rules {
		applyRule(r, &raw, &p)
	}
	return p
}

func applyRule(r fieldRule, raw *model.RawRow, p *model.Prospect) {
	defer func() {
		if rec := recover(); rec != nil {
			zap.L().Debug("extract: field rule failed, using default",
				zap.String("field", r.name),
				zap.String("profile", raw.ProfileHref),
				zap.Any("panic", rec),
			)
		}
	}()
	r.apply(raw, p)
}

package extract

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	yearsRe     = regexp.MustCompile(`(\d+)\s*year`)
	monthsRe    = regexp.MustCompile(`(\d+)\s*month`)
	startYearRe = regexp.MustCompile(`\d{4}`)
	monthNameRe = regexp.MustCompile(`(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)`)
)

// SplitName splits a full name at whitespace: the first token is the first
// name, the remaining tokens joined by a space are the last name.
func SplitName(full string) (first, last string) {
	parts := strings.Fields(strings.TrimSpace(full))
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

// SplitLocation splits a comma-separated location string positionally:
// index 0 is the city, 1 the region, 2 the country. Missing positions come
// back empty; there is no error case.
func SplitLocation(s string) (city, region, country string) {
	parts := strings.Split(s, ",")
	get := func(i int) string {
		if i < len(parts) {
			return strings.TrimSpace(parts[i])
		}
		return ""
	}
	return get(0), get(1), get(2)
}

// ParseDuration extracts years and months from free text like
// "3 years 4 months in role". Each unit is matched independently; a missing
// unit yields 0.
func ParseDuration(s string) (years, months int) {
	if m := yearsRe.FindStringSubmatch(s); m != nil {
		years, _ = strconv.Atoi(m[1])
	}
	if m := monthsRe.FindStringSubmatch(s); m != nil {
		months, _ = strconv.Atoi(m[1])
	}
	return years, months
}

// ParseStartDate pulls a four-digit year and a month abbreviation out of a
// start-date string. Either part may be absent.
func ParseStartDate(s string) (year, month string) {
	return startYearRe.FindString(s), monthNameRe.FindString(s)
}

// ExtractDomain returns the hostname of a link, or "" when the link is
// absent or unparseable.
func ExtractDomain(link string) string {
	if link == "" {
		return ""
	}
	u, err := url.Parse(link)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return u.Hostname()
}

package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitName(t *testing.T) {
	cases := []struct {
		in          string
		first, last string
	}{
		{"Jane Doe", "Jane", "Doe"},
		{"Jane Anne van der Berg", "Jane", "Anne van der Berg"},
		{"Madonna", "Madonna", ""},
		{"", "", ""},
		{"  Jane   Doe  ", "Jane", "Doe"},
	}
	for _, tc := range cases {
		first, last := SplitName(tc.in)
		assert.Equal(t, tc.first, first, "first of %q", tc.in)
		assert.Equal(t, tc.last, last, "last of %q", tc.in)
	}
}

func TestSplitLocation(t *testing.T) {
	cases := []struct {
		in                    string
		city, region, country string
	}{
		{"San Francisco, CA, USA", "San Francisco", "CA", "USA"},
		{"Remote", "Remote", "", ""},
		{"Berlin, Germany", "Berlin", "Germany", ""},
		{"", "", "", ""},
		{"Austin ,  TX , USA", "Austin", "TX", "USA"},
		{"A, B, C, D", "A", "B", "C"},
	}
	for _, tc := range cases {
		city, region, country := SplitLocation(tc.in)
		assert.Equal(t, tc.city, city, "city of %q", tc.in)
		assert.Equal(t, tc.region, region, "region of %q", tc.in)
		assert.Equal(t, tc.country, country, "country of %q", tc.in)
	}
}

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in            string
		years, months int
	}{
		{"3 years 4 months", 3, 4},
		{"1 year", 1, 0},
		{"11 months", 0, 11},
		{"", 0, 0},
		{"less than a year", 0, 0},
		{"2 yrs", 0, 0}, // only "year"/"month" tokens count
		{"10years 2months", 10, 2},
	}
	for _, tc := range cases {
		years, months := ParseDuration(tc.in)
		assert.Equal(t, tc.years, years, "years of %q", tc.in)
		assert.Equal(t, tc.months, months, "months of %q", tc.in)
	}
}

func TestParseStartDate(t *testing.T) {
	cases := []struct {
		in          string
		year, month string
	}{
		{"January 2020", "2020", "Jan"},
		{"2019", "2019", ""},
		{"Mar 2021", "2021", "Mar"},
		{"", "", ""},
		{"sometime ago", "", ""},
	}
	for _, tc := range cases {
		year, month := ParseStartDate(tc.in)
		assert.Equal(t, tc.year, year, "year of %q", tc.in)
		assert.Equal(t, tc.month, month, "month of %q", tc.in)
	}
}

func TestExtractDomain(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"https://www.acme.com/about", "www.acme.com"},
		{"http://acme.io", "acme.io"},
		{"", ""},
		{"not a url at all", ""},
		{"://broken", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ExtractDomain(tc.in), "domain of %q", tc.in)
	}
}

// Package scorer ranks prospects with a seven-axis weighted signal score.
// Scoring is a pure transform over a Prospect; persistence is the Ranker's
// concern.
package scorer

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"

	"github.com/sells-group/prospect-cli/internal/model"
)

// Weights over the seven sub-scores. They must be non-negative and sum
// to 1.0 so the total stays in [0,100].
type Weights struct {
	KeywordPresence float64
	TitleRelevance  float64
	CompanySize     float64
	ActivityLevel   float64
	IndustryMatch   float64
	SkillsMatch     float64
	ExperienceMatch float64
}

// DefaultWeights returns the standard weighting.
func DefaultWeights() Weights {
	return Weights{
		KeywordPresence: 0.25,
		TitleRelevance:  0.20,
		CompanySize:     0.15,
		ActivityLevel:   0.15,
		IndustryMatch:   0.10,
		SkillsMatch:     0.10,
		ExperienceMatch: 0.05,
	}
}

const weightSumTolerance = 1e-6

// ValidateWeights checks that all weights are non-negative and sum to 1.0.
func ValidateWeights(w Weights) error {
	var errs []string

	for _, f := range []struct {
		name string
		v    float64
	}{
		{"keyword_presence", w.KeywordPresence},
		{"title_relevance", w.TitleRelevance},
		{"company_size", w.CompanySize},
		{"activity_level", w.ActivityLevel},
		{"industry_match", w.IndustryMatch},
		{"skills_match", w.SkillsMatch},
		{"experience_match", w.ExperienceMatch},
	} {
		if f.v < 0 {
			errs = append(errs, fmt.Sprintf("%s weight is negative (%v)", f.name, f.v))
		}
	}

	sum := w.KeywordPresence + w.TitleRelevance + w.CompanySize +
		w.ActivityLevel + w.IndustryMatch + w.SkillsMatch + w.ExperienceMatch
	if math.Abs(sum-1.0) > weightSumTolerance {
		errs = append(errs, fmt.Sprintf("weights must sum to 1.0, got %v", sum))
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: invalid weights: %s", strings.Join(errs, "; "))
	}
	return nil
}

// foldStr normalizes text for case-insensitive matching, including
// non-ASCII names and titles. cases.Caser is stateful, so each call gets
// its own; scoring runs concurrently in the Ranker.
func foldStr(s string) string {
	return cases.Fold().String(s)
}

// Score computes the seven sub-scores and weighted total for one prospect
// under the default weights. Pure and deterministic.
func Score(p model.Prospect, keywords []string) model.ScoreBreakdown {
	return ScoreWith(p, keywords, DefaultWeights())
}

// ScoreWith is Score with caller-supplied weights.
//
// Each sub-score is in [0,1]. Axes that measure keyword overlap score 0.5
// when the prospect carries no data for that axis, except when the keyword
// set itself is empty: then every keyword-dependent axis scores 0, which
// keeps the total bounded without dividing by zero.
func ScoreWith(p model.Prospect, keywords []string, w Weights) model.ScoreBreakdown {
	folded := foldAll(keywords)

	b := model.ScoreBreakdown{
		KeywordPresence: keywordFraction(folded, profileText(p), 0),
		TitleRelevance:  keywordFraction(folded, p.JobTitle, 0),
		CompanySize:     companySizeScore(p.CompanySize),
		ActivityLevel:   activityScore(p),
		IndustryMatch:   keywordFraction(folded, p.Industry, 0.5),
		SkillsMatch:     keywordFraction(folded, strings.Join(p.Skills, " "), 0.5),
		ExperienceMatch: keywordFraction(folded, experienceText(p.Experience), 0.5),
	}

	total := b.KeywordPresence*w.KeywordPresence +
		b.TitleRelevance*w.TitleRelevance +
		b.CompanySize*w.CompanySize +
		b.ActivityLevel*w.ActivityLevel +
		b.IndustryMatch*w.IndustryMatch +
		b.SkillsMatch*w.SkillsMatch +
		b.ExperienceMatch*w.ExperienceMatch

	b.Total = math.Round(clamp01(total)*100*100) / 100
	return b
}

func foldAll(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		out = append(out, foldStr(k))
	}
	return out
}

// keywordFraction scores the fraction of keywords appearing in text.
// absentDefault applies when the text is empty; an empty keyword set always
// scores 0.
func keywordFraction(foldedKeywords []string, text string, absentDefault float64) float64 {
	if len(foldedKeywords) == 0 {
		return 0
	}
	if strings.TrimSpace(text) == "" {
		return absentDefault
	}

	haystack := foldStr(text)
	found := 0
	for _, k := range foldedKeywords {
		if strings.Contains(haystack, k) {
			found++
		}
	}
	return float64(found) / float64(len(foldedKeywords))
}

// profileText aggregates every free-text field on the prospect for the
// keyword-presence axis.
func profileText(p model.Prospect) string {
	parts := []string{
		p.FullName, p.JobTitle, p.Company, p.CompanyDescription,
		p.Industry, p.Summary,
		p.ContactCity, p.ContactRegion, p.ContactCountry,
	}
	parts = append(parts, p.Skills...)
	parts = append(parts, experienceText(p.Experience))
	return strings.Join(parts, " ")
}

func experienceText(entries []model.Experience) string {
	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString(e.Title)
		sb.WriteByte(' ')
		sb.WriteString(e.Company)
		sb.WriteByte(' ')
		sb.WriteString(e.Description)
		sb.WriteByte(' ')
	}
	return sb.String()
}

var sizeNumberRe = regexp.MustCompile(`\d[\d,]*`)

// companySizeScore maps a headcount string to [0,1]: the number (or the
// midpoint of a range like "51-200 employees") divided by 10,000, capped at
// 1.0. Unparseable or absent sizes score a neutral 0.5.
func companySizeScore(size string) float64 {
	matches := sizeNumberRe.FindAllString(size, 2)
	if len(matches) == 0 {
		return 0.5
	}

	lo, err := strconv.ParseFloat(strings.ReplaceAll(matches[0], ",", ""), 64)
	if err != nil {
		return 0.5
	}
	headcount := lo
	if len(matches) > 1 {
		if hi, err := strconv.ParseFloat(strings.ReplaceAll(matches[1], ",", ""), 64); err == nil {
			headcount = (lo + hi) / 2
		}
	}

	return math.Min(headcount/10000, 1.0)
}

// activityScore blends posting activity, profile views and mutual
// connections. With no activity data at all the axis is neutral.
func activityScore(p model.Prospect) float64 {
	if !p.HasActivityData() {
		return 0.5
	}

	score := 0.0
	if p.HasPosted {
		score += 0.4
	}
	score += math.Min(float64(p.ProfileViews)/1000, 0.3)
	score += math.Min(float64(p.MutualConnections)/100, 0.3)
	return math.Min(score, 1.0)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(v, 1))
}

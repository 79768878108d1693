package scorer

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Criteria is a scoring criteria file: the keyword set, the minimum score
// cutoff, and optional weight overrides. Absent weights keep their
// defaults, so a file may override just one axis.
type Criteria struct {
	Keywords []string `yaml:"keywords"`
	MinScore float64  `yaml:"min_score"`

	Weights struct {
		KeywordPresence *float64 `yaml:"keyword_presence"`
		TitleRelevance  *float64 `yaml:"title_relevance"`
		CompanySize     *float64 `yaml:"company_size"`
		ActivityLevel   *float64 `yaml:"activity_level"`
		IndustryMatch   *float64 `yaml:"industry_match"`
		SkillsMatch     *float64 `yaml:"skills_match"`
		ExperienceMatch *float64 `yaml:"experience_match"`
	} `yaml:"weights"`
}

// LoadCriteria reads and validates a YAML criteria file.
func LoadCriteria(path string) (*Criteria, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "scorer: read criteria file %s", path)
	}

	var c Criteria
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, eris.Wrapf(err, "scorer: parse criteria file %s", path)
	}

	if err := ValidateWeights(c.EffectiveWeights()); err != nil {
		return nil, err
	}
	return &c, nil
}

// EffectiveWeights merges the file's overrides onto the defaults.
func (c *Criteria) EffectiveWeights() Weights {
	w := DefaultWeights()
	if v := c.Weights.KeywordPresence; v != nil {
		w.KeywordPresence = *v
	}
	if v := c.Weights.TitleRelevance; v != nil {
		w.TitleRelevance = *v
	}
	if v := c.Weights.CompanySize; v != nil {
		w.CompanySize = *v
	}
	if v := c.Weights.ActivityLevel; v != nil {
		w.ActivityLevel = *v
	}
	if v := c.Weights.IndustryMatch; v != nil {
		w.IndustryMatch = *v
	}
	if v := c.Weights.SkillsMatch; v != nil {
		w.SkillsMatch = *v
	}
	if v := c.Weights.ExperienceMatch; v != nil {
		w.ExperienceMatch = *v
	}
	return w
}

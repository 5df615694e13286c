package patterns

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// ruleFile is the YAML shape of a custom pattern rules file.
type ruleFile struct {
	Patterns []ruleEntry `yaml:"patterns"`
}

type ruleEntry struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
	Score   int    `yaml:"score"`
}

// LoadRules reads a YAML rules file and returns the custom patterns it
// declares. Each entry needs a name and a valid regular expression; the
// secret-extraction rule applies, so a pattern's secret must be in its last
// capturing group or it must have no groups at all. A missing score defaults
// to 5.
func LoadRules(path string) ([]Pattern, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file %s: %w", path, err)
	}

	var rf ruleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing rules file %s: %w", path, err)
	}

	out := make([]Pattern, 0, len(rf.Patterns))
	for i, e := range rf.Patterns {
		if e.Name == "" {
			return nil, fmt.Errorf("rules file %s: pattern %d has no name", path, i)
		}
		re, err := regexp.Compile(e.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rules file %s: pattern %q: %w", path, e.Name, err)
		}
		score := e.Score
		if score == 0 {
			score = 5
		}
		out = append(out, Pattern{Name: e.Name, Re: re, Score: score})
	}
	return out, nil
}

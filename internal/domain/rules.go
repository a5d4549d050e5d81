package domain

import (
	_ "embed"
	"fmt"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var rulesYAML []byte

// Field names known to the pattern library.
const (
	FieldAircraftType = "aircraft_type"
	FieldUASColor     = "uas_color"
	FieldAltitude     = "altitude"
	FieldEvasive      = "evasive"
	FieldAirport      = "airport"
)

// Tier is a rule priority level. Higher tiers are evaluated first and a
// match at a higher tier suppresses all lower tiers.
type Tier string

const (
	TierCritical Tier = "critical"
	TierHigh     Tier = "high"
	TierMedium   Tier = "medium"
	TierLow      Tier = "low"
	TierFallback Tier = "fallback"
)

var tierRank = map[Tier]int{
	TierCritical: 5,
	TierHigh:     4,
	TierMedium:   3,
	TierLow:      2,
	TierFallback: 1,
}

// Rule is one matcher/transform pair in a field's cascade.
type Rule struct {
	Tier      Tier
	Pattern   *regexp.Regexp
	Requires  *regexp.Regexp // optional guard; nil means unconditional
	Group     int            // capture group carrying the value; 0 is the whole match
	Transform string         // named value transform, "" for identity
}

type ruleSpec struct {
	Tier      string `yaml:"tier"`
	Pattern   string `yaml:"pattern"`
	Requires  string `yaml:"requires"`
	Group     int    `yaml:"group"`
	Transform string `yaml:"transform"`
}

// PatternLibrary holds the static, ordered extraction rules per field.
type PatternLibrary struct {
	fields map[string][]Rule
}

// LoadPatternLibrary parses and compiles the embedded rule document.
func LoadPatternLibrary() (*PatternLibrary, error) {
	return parsePatternLibrary(rulesYAML)
}

func parsePatternLibrary(doc []byte) (*PatternLibrary, error) {
	var specs map[string][]ruleSpec
	if err := yaml.Unmarshal(doc, &specs); err != nil {
		return nil, fmt.Errorf("parse rule library: %w", err)
	}

	lib := &PatternLibrary{fields: make(map[string][]Rule, len(specs))}
	for field, fieldSpecs := range specs {
		rules := make([]Rule, 0, len(fieldSpecs))
		for i, spec := range fieldSpecs {
			tier := Tier(spec.Tier)
			if _, ok := tierRank[tier]; !ok {
				return nil, fmt.Errorf("rule library: %s[%d]: unknown tier %q", field, i, spec.Tier)
			}
			re, err := regexp.Compile(spec.Pattern)
			if err != nil {
				return nil, fmt.Errorf("rule library: %s[%d]: %w", field, i, err)
			}
			var requires *regexp.Regexp
			if spec.Requires != "" {
				if requires, err = regexp.Compile(spec.Requires); err != nil {
					return nil, fmt.Errorf("rule library: %s[%d] requires: %w", field, i, err)
				}
			}
			// Group defaults to the first capture group; patterns without one
			// (constant transforms like the evasive rules) use the whole match.
			group := spec.Group
			if group == 0 && re.NumSubexp() > 0 {
				group = 1
			}
			if group > re.NumSubexp() {
				return nil, fmt.Errorf("rule library: %s[%d]: group %d exceeds %d capture groups", field, i, group, re.NumSubexp())
			}
			rules = append(rules, Rule{
				Tier:      tier,
				Pattern:   re,
				Requires:  requires,
				Group:     group,
				Transform: spec.Transform,
			})
		}
		// Stable sort enforces tier order while preserving file order inside a tier.
		sort.SliceStable(rules, func(a, b int) bool {
			return tierRank[rules[a].Tier] > tierRank[rules[b].Tier]
		})
		lib.fields[field] = rules
	}

	return lib, nil
}

// Rules returns the rules for a field in evaluation order.
func (l *PatternLibrary) Rules(field string) []Rule {
	return l.fields[field]
}

// Tiers returns the distinct tiers present for a field, highest first.
func (l *PatternLibrary) Tiers(field string) []Tier {
	var tiers []Tier
	for _, r := range l.fields[field] {
		if len(tiers) == 0 || tiers[len(tiers)-1] != r.Tier {
			tiers = append(tiers, r.Tier)
		}
	}
	return tiers
}

package triage

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/muni-health/muni/backend/internal/model/chat"
)

const (
	// DefaultAlertNotice is the first message of an alert pair.
	DefaultAlertNotice = "This conversation has been flagged for safety. A care team member will review it shortly."
	// DefaultAlertDetail is the second message of an alert pair.
	DefaultAlertDetail = "Your levels appear to be dangerously low. Your doctor has been contacted."

	excerptLimit = 80
)

// Rules is the keyword rule set used to triage assistant sentences.
//
// Precedence, first match wins:
//  1. halting alert: a DangerTerms match and a MetricTerms match in the same sentence
//  2. display alert: any AlertTerms match
//  3. action: any ActionTerms match
//  4. info
//
// Matching is case-insensitive substring containment.
type Rules struct {
	DangerTerms []string `yaml:"danger_terms"`
	MetricTerms []string `yaml:"metric_terms"`
	AlertTerms  []string `yaml:"alert_terms"`
	ActionTerms []string `yaml:"action_terms"`

	// AlertNotice and AlertDetail may reference {metric}, {danger} and {excerpt}.
	AlertNotice string `yaml:"alert_notice"`
	AlertDetail string `yaml:"alert_detail"`
}

// Finding describes why a sentence tripped the halting alert rule.
type Finding struct {
	Metric   string
	Danger   string
	Sentence string
}

// DefaultRules returns the built-in vocabularies.
func DefaultRules() Rules {
	return Rules{
		DangerTerms: []string{"dangerously low", "dangerous", "critical"},
		MetricTerms: []string{"blood sugar", "pressure", "heart rate"},
		AlertTerms:  []string{"dangerously low", "dangerous", "alert", "emergency", "critical"},
		ActionTerms: []string{"drink", "eat", "take", "exercise", "move", "rest", "meditate"},
		AlertNotice: DefaultAlertNotice,
		AlertDetail: DefaultAlertDetail,
	}
}

// LoadRules reads a YAML rule file. Fields missing from the file keep their
// defaults. An empty path yields DefaultRules.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if strings.TrimSpace(path) == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("read triage rules: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes YAML rule data on top of DefaultRules.
func ParseRules(data []byte) (Rules, error) {
	var override Rules
	if err := yaml.Unmarshal(data, &override); err != nil {
		return DefaultRules(), fmt.Errorf("parse triage rules: %w", err)
	}
	return DefaultRules().merge(override), nil
}

func (r Rules) merge(o Rules) Rules {
	if len(o.DangerTerms) > 0 {
		r.DangerTerms = o.DangerTerms
	}
	if len(o.MetricTerms) > 0 {
		r.MetricTerms = o.MetricTerms
	}
	if len(o.AlertTerms) > 0 {
		r.AlertTerms = o.AlertTerms
	}
	if len(o.ActionTerms) > 0 {
		r.ActionTerms = o.ActionTerms
	}
	if strings.TrimSpace(o.AlertNotice) != "" {
		r.AlertNotice = o.AlertNotice
	}
	if strings.TrimSpace(o.AlertDetail) != "" {
		r.AlertDetail = o.AlertDetail
	}
	return r
}

// DetectAlert applies the halting alert rule to one sentence.
func (r Rules) DetectAlert(sentence string) (Finding, bool) {
	normalized := strings.ToLower(sentence)

	danger, ok := firstMatch(normalized, r.DangerTerms)
	if !ok {
		return Finding{}, false
	}
	metric, ok := firstMatch(normalized, r.MetricTerms)
	if !ok {
		return Finding{}, false
	}

	return Finding{Metric: metric, Danger: danger, Sentence: sentence}, true
}

// CheckForAlert reports whether the sentence names both a danger level and a
// health metric.
func (r Rules) CheckForAlert(sentence string) bool {
	_, ok := r.DetectAlert(sentence)
	return ok
}

// Classify picks the display type of a sentence that did not halt the turn.
func (r Rules) Classify(sentence string) chat.MessageType {
	normalized := strings.ToLower(sentence)

	if _, ok := firstMatch(normalized, r.AlertTerms); ok {
		return chat.TypeAlert
	}
	if _, ok := firstMatch(normalized, r.ActionTerms); ok {
		return chat.TypeAction
	}
	return chat.TypeInfo
}

// AlertTexts renders the notice and detail messages for a finding.
func (r Rules) AlertTexts(f Finding) (notice, detail string) {
	replacer := strings.NewReplacer(
		"{metric}", f.Metric,
		"{danger}", f.Danger,
		"{excerpt}", excerpt(f.Sentence),
	)

	notice = r.AlertNotice
	if notice == "" {
		notice = DefaultAlertNotice
	}
	detail = r.AlertDetail
	if detail == "" {
		detail = DefaultAlertDetail
	}
	return replacer.Replace(notice), replacer.Replace(detail)
}

var defaultRules = DefaultRules()

// CheckForAlert applies the default halting alert rule.
func CheckForAlert(sentence string) bool {
	return defaultRules.CheckForAlert(sentence)
}

// Classify applies the default display rules.
func Classify(sentence string) chat.MessageType {
	return defaultRules.Classify(sentence)
}

func firstMatch(normalized string, terms []string) (string, bool) {
	for _, term := range terms {
		if term == "" {
			continue
		}
		if strings.Contains(normalized, strings.ToLower(term)) {
			return term, true
		}
	}
	return "", false
}

func excerpt(sentence string) string {
	trimmed := strings.TrimSpace(sentence)
	if utf8.RuneCountInString(trimmed) <= excerptLimit {
		return trimmed
	}
	runes := []rune(trimmed)
	return strings.TrimSpace(string(runes[:excerptLimit])) + "..."
}

// Package fraud evaluates configurable alert rules over project snapshots.
// The alerts are advisory heuristics for the admin dashboard, not a fraud
// detection system.
package fraud

import (
	"fmt"
	"os"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
	"gopkg.in/yaml.v3"
)

type Rule struct {
	Type     string `yaml:"type"`
	Severity string `yaml:"severity"`
	Message  string `yaml:"message"`
	When     string `yaml:"when"`
}

type Alert struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	ProjectTitle string `json:"project_title"`
	Message      string `json:"message"`
	Severity     string `json:"severity"`
}

// Snapshot is the rule environment for one project.
type Snapshot struct {
	ProjectID     string
	Title         string
	Status        string
	ROIPercent    float64
	FundingTarget int64
	FundingRaised int64
	RiskScore     int64
}

// DefaultRules reproduces the platform's stock alert thresholds.
func DefaultRules() []Rule {
	return []Rule{
		{
			Type:     "HIGH_ROI_ALERT",
			Severity: "HIGH",
			Message:  "Unusually high ROI detected (possible risk)",
			When:     "roi_percent >= 14",
		},
		{
			Type:     "FUNDING_SPIKE",
			Severity: "MEDIUM",
			Message:  "Project nearing full funding rapidly",
			When:     "funding_target > 0 and funding_ratio > 0.95",
		},
	}
}

// LoadRules reads rules from a YAML file.
func LoadRules(path string) ([]Rule, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rules []Rule
	if err := yaml.Unmarshal(b, &rules); err != nil {
		return nil, fmt.Errorf("parse fraud rules: %w", err)
	}
	return rules, nil
}

type compiledRule struct {
	rule    Rule
	program *exprvm.Program
}

type Engine struct {
	rules []compiledRule
}

// New compiles the rule expressions once; a rule that does not compile fails
// engine construction rather than being silently skipped.
func New(rules []Rule) (*Engine, error) {
	e := &Engine{}
	for _, r := range rules {
		program, err := exprlang.Compile(r.When, exprlang.AsBool(), exprlang.AllowUndefinedVariables())
		if err != nil {
			return nil, fmt.Errorf("compile rule %s: %w", r.Type, err)
		}
		e.rules = append(e.rules, compiledRule{rule: r, program: program})
	}
	return e, nil
}

func environment(s Snapshot) map[string]any {
	ratio := 0.0
	if s.FundingTarget > 0 {
		ratio = float64(s.FundingRaised) / float64(s.FundingTarget)
	}
	return map[string]any{
		"roi_percent":    s.ROIPercent,
		"funding_target": s.FundingTarget,
		"funding_raised": s.FundingRaised,
		"funding_ratio":  ratio,
		"risk_score":     s.RiskScore,
		"status":         s.Status,
	}
}

// Evaluate runs every rule over every snapshot. A rule that errors at runtime
// on one project is skipped for that project.
func (e *Engine) Evaluate(snapshots []Snapshot) []Alert {
	alerts := []Alert{}
	for _, s := range snapshots {
		env := environment(s)
		for _, cr := range e.rules {
			out, err := exprlang.Run(cr.program, env)
			if err != nil {
				continue
			}
			matched, ok := out.(bool)
			if !ok || !matched {
				continue
			}
			alerts = append(alerts, Alert{
				Type:         cr.rule.Type,
				ProjectID:    s.ProjectID,
				ProjectTitle: s.Title,
				Message:      cr.rule.Message,
				Severity:     cr.rule.Severity,
			})
		}
	}
	return alerts
}

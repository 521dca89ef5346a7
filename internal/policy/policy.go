package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/flowspectre/internal/aggregator"
	"github.com/ppiankov/flowspectre/internal/models"
	"gopkg.in/yaml.v3"
)

// Policy defines CI gating rules for analysis results.
type Policy struct {
	Version string `yaml:"version"`
	Rules   Rules  `yaml:"rules"`
}

// Rules contains all configurable policy rules. Nil limits are not checked.
type Rules struct {
	MaxVulnerabilities *int     `yaml:"max_vulnerabilities,omitempty"`
	MaxCritical        *int     `yaml:"max_critical,omitempty"`
	MaxHigh            *int     `yaml:"max_high,omitempty"`
	MaxMissingRequired *int     `yaml:"max_missing_required,omitempty"`
	MinPostureScore    *float64 `yaml:"min_posture_score,omitempty"`
	MinEndpoints       *int     `yaml:"min_endpoints,omitempty"`
	ForbidSeverities   []string `yaml:"forbid_severities,omitempty"`
}

// Violation is a single policy failure.
type Violation struct {
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Result holds the outcome of a policy check.
type Result struct {
	Pass       bool        `json:"pass"`
	Violations []Violation `json:"violations"`
}

// FileNames are the policy file names searched for, in order.
var FileNames = []string{".flowspectre-policy.yaml", ".flowspectre-policy.yml"}

// LoadFromFile reads a policy file. A missing file yields a nil policy.
func LoadFromFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read policy: %w", err)
	}

	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("invalid policy %s: %w", path, err)
	}

	return &p, nil
}

func (p *Policy) validate() error {
	for _, s := range p.Rules.ForbidSeverities {
		if models.SeverityRank(strings.ToLower(s)) == 0 {
			return fmt.Errorf("forbid_severities: unknown severity %q", s)
		}
	}
	if p.Rules.MinPostureScore != nil && (*p.Rules.MinPostureScore < 0 || *p.Rules.MinPostureScore > 100) {
		return fmt.Errorf("min_posture_score must be between 0 and 100")
	}
	return nil
}

// FindPolicyFile searches for a policy file in dir and its parents up to the
// filesystem root.
func FindPolicyFile(dir string) string {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return ""
		}
		dir = wd
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}

	for {
		for _, name := range FileNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// Evaluate checks an analysis result against the policy rules.
func (p *Policy) Evaluate(result *models.AnalysisResult) *Result {
	if p == nil {
		return &Result{Pass: true}
	}

	var violations []Violation
	s := result.Summary

	// max_vulnerabilities
	if p.Rules.MaxVulnerabilities != nil && s.Vulnerabilities > *p.Rules.MaxVulnerabilities {
		violations = append(violations, Violation{
			Rule:    "max_vulnerabilities",
			Message: fmt.Sprintf("vulnerabilities %d exceeds limit %d", s.Vulnerabilities, *p.Rules.MaxVulnerabilities),
		})
	}

	// max_critical
	if p.Rules.MaxCritical != nil {
		count := s.BySeverity[models.SeverityCritical]
		if count > *p.Rules.MaxCritical {
			violations = append(violations, Violation{
				Rule:    "max_critical",
				Message: fmt.Sprintf("critical vulnerabilities %d exceeds limit %d", count, *p.Rules.MaxCritical),
			})
		}
	}

	// max_high
	if p.Rules.MaxHigh != nil {
		count := s.BySeverity[models.SeverityHigh]
		if count > *p.Rules.MaxHigh {
			violations = append(violations, Violation{
				Rule:    "max_high",
				Message: fmt.Sprintf("high vulnerabilities %d exceeds limit %d", count, *p.Rules.MaxHigh),
			})
		}
	}

	// max_missing_required
	if p.Rules.MaxMissingRequired != nil {
		count := countMissingRequired(result)
		if count > *p.Rules.MaxMissingRequired {
			violations = append(violations, Violation{
				Rule:    "max_missing_required",
				Message: fmt.Sprintf("missing required controls %d exceeds limit %d", count, *p.Rules.MaxMissingRequired),
			})
		}
	}

	// min_posture_score
	if p.Rules.MinPostureScore != nil && s.PostureScore < *p.Rules.MinPostureScore {
		violations = append(violations, Violation{
			Rule:    "min_posture_score",
			Message: fmt.Sprintf("posture score %.1f%% below minimum %.1f%%", s.PostureScore, *p.Rules.MinPostureScore),
		})
	}

	// min_endpoints
	if p.Rules.MinEndpoints != nil && s.Endpoints < *p.Rules.MinEndpoints {
		violations = append(violations, Violation{
			Rule:    "min_endpoints",
			Message: fmt.Sprintf("discovered %d endpoints, expected at least %d", s.Endpoints, *p.Rules.MinEndpoints),
		})
	}

	// forbid_severities
	if len(p.Rules.ForbidSeverities) > 0 {
		var forbidden []string
		for _, sev := range p.Rules.ForbidSeverities {
			forbidden = append(forbidden, strings.ToLower(sev))
		}
		sort.Slice(forbidden, func(i, j int) bool {
			return models.SeverityRank(forbidden[i]) > models.SeverityRank(forbidden[j])
		})
		for _, sev := range forbidden {
			if count := s.BySeverity[sev]; count > 0 {
				violations = append(violations, Violation{
					Rule:    "forbid_severities",
					Message: fmt.Sprintf("forbidden severity %q has %d vulnerabilities", sev, count),
				})
			}
		}
	}

	return &Result{
		Pass:       len(violations) == 0,
		Violations: violations,
	}
}

func countMissingRequired(result *models.AnalysisResult) int {
	n := 0
	for _, f := range aggregator.NewNormalizer().Normalize(result) {
		if f.Kind == models.FindingMissing && f.Required {
			n++
		}
	}
	return n
}

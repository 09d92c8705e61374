// Package discrepancy inspects merged game state and produces system corrections:
// directives describing inconsistencies, fed back into the next LLM turn.
package discrepancy

import (
	"go.uber.org/zap"
)

// Transition is the state before and after one turn's merge and cleanup.
// Before may be nil when no prior state is known.
type Transition struct {
	CampaignID string
	Before     map[string]any
	After      map[string]any
}

// Rule inspects a Transition and returns zero or more correction strings.
// Rules must not modify the states they inspect.
type Rule interface {
	Name() string
	Check(t Transition) []string
}

// RuleFunc adapts a plain function to the Rule interface.
type RuleFunc struct {
	RuleName string
	Fn       func(t Transition) []string
}

// Name returns the rule name.
func (r RuleFunc) Name() string { return r.RuleName }

// Check calls r.Fn.
func (r RuleFunc) Check(t Transition) []string { return r.Fn(t) }

// Detector runs an ordered list of independent rules.
// A Detector is safe for concurrent use when its rules are.
type Detector struct {
	rules  []Rule
	logger *zap.Logger
}

// NewDetector creates a Detector running rules in order.
//
// Precondition: logger must be non-nil.
func NewDetector(logger *zap.Logger, rules ...Rule) *Detector {
	return &Detector{rules: rules, logger: logger}
}

// DefaultRules returns the built-in rule set.
func DefaultRules() []Rule {
	return []Rule{
		RewardsStateRule{},
		TemporalRule{},
		EntityReferenceRule{},
	}
}

// Detect inspects s alone, with no prior state.
//
// Postcondition: s is not modified; returns nil when no rule fires.
func (d *Detector) Detect(s map[string]any) []string {
	return d.DetectTransition(Transition{After: s})
}

// DetectTransition runs every rule against t and concatenates their corrections
// in rule order.
//
// Postcondition: t.Before and t.After are not modified; returns nil when no rule fires.
func (d *Detector) DetectTransition(t Transition) []string {
	var out []string
	for _, r := range d.rules {
		found := r.Check(t)
		if len(found) == 0 {
			continue
		}
		d.logger.Info("discrepancy detected",
			zap.String("campaign_id", t.CampaignID),
			zap.String("rule", r.Name()),
			zap.Strings("corrections", found),
		)
		out = append(out, found...)
	}
	return out
}

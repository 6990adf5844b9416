// Package access decides whether a resource link is accessible by applying a
// platform's rule set to the page the link resolves to.
package access

import (
	"errors"
	"fmt"

	"github.com/jmylchreest/accesscheck/pkg/rules"
)

// ErrCaptureMissing is returned when a landing page lacks the segment a probe
// URL is built from.
var ErrCaptureMissing = errors.New("probe capture not found on landing page")

// ParseError reports a page that does not have the structure a rule set
// expects, as opposed to a page that merely matches no rule.
type ParseError struct {
	Platform rules.Platform
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Platform, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Verdict is the result of evaluating one page.
type Verdict struct {
	Label string
	// Rule describes the predicate that fired, or "default".
	Rule string
	// ProbeURL is set when the label depends on a second page.
	ProbeURL string
}

// NeedsProbe reports whether a second fetch is required before a label exists.
func (v Verdict) NeedsProbe() bool { return v.ProbeURL != "" }

// Evaluator applies rule sets from a registry. It performs no I/O.
type Evaluator struct {
	registry *rules.Registry
}

// NewEvaluator creates an evaluator over reg. A nil registry selects the
// built-in rules.
func NewEvaluator(reg *rules.Registry) *Evaluator {
	if reg == nil {
		reg = rules.Default()
	}
	return &Evaluator{registry: reg}
}

// Registry returns the registry the evaluator reads from.
func (e *Evaluator) Registry() *rules.Registry { return e.registry }

// Evaluate returns the label of the first rule of p's rule set matching html,
// or the rule set's default. For platforms with a probe, an unmatched landing
// page yields a verdict carrying the probe URL instead of a label.
func (e *Evaluator) Evaluate(html string, p rules.Platform) (Verdict, error) {
	rs, err := e.registry.RulesFor(p)
	if err != nil {
		return Verdict{}, err
	}

	d := rs.Evaluate(rules.NewPage(html))
	if !d.Probe {
		return verdict(d, rs.Rules), nil
	}

	target, ok := rs.Probe.TargetURL(html)
	if !ok {
		return Verdict{}, &ParseError{Platform: p, Err: ErrCaptureMissing}
	}
	return Verdict{Rule: "probe", ProbeURL: target}, nil
}

// EvaluateProbe applies p's probe rules to the page fetched from a probe URL.
func (e *Evaluator) EvaluateProbe(html string, p rules.Platform) (Verdict, error) {
	rs, err := e.registry.RulesFor(p)
	if err != nil {
		return Verdict{}, err
	}
	if rs.Probe == nil {
		return Verdict{}, fmt.Errorf("platform %s has no probe", p)
	}
	return verdict(rs.Probe.Evaluate(rules.NewPage(html)), rs.Probe.Rules), nil
}

func verdict(d rules.Decision, set []rules.Rule) Verdict {
	if !d.Matched() {
		return Verdict{Label: d.Label, Rule: "default"}
	}
	return Verdict{Label: d.Label, Rule: set[d.Rule].Match.String()}
}

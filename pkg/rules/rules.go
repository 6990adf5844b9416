// Package rules holds the per-platform access detection rules.
//
// A RuleSet is an ordered list of (predicate, label) pairs with a fallback
// label. Rules are evaluated in declaration order and the first match wins.
// Rule sets are described as data (see rules.yaml) and compiled into a
// Registry keyed by platform identifier.
package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Platform identifies a vendor or content platform.
type Platform string

// Built-in platforms.
const (
	Apabi                 Platform = "apb"
	AlexanderStreet       Platform = "asp"
	DukeHighWire          Platform = "duphw"
	Ebrary                Platform = "ebr"
	EBSCOhost             Platform = "ebs"
	Endeca                Platform = "end"
	NCCORelatedVolumes    Platform = "nccorv"
	ScienceDirect         Platform = "scid"
	SAGEKnowledge         Platform = "skno"
	SpringerLink          Platform = "spr"
	SAGEResearchMethods   Platform = "srmo"
	SerialsSolutions      Platform = "ss"
	UniversityPressOnline Platform = "upso"
	WileyOnlineLibrary    Platform = "wol"
)

// ErrUnknownPlatform is matched by *UnknownPlatformError.
var ErrUnknownPlatform = errors.New("unknown platform")

// UnknownPlatformError is returned when no rule set is registered for a platform.
type UnknownPlatformError struct {
	Platform Platform
	Known    []Platform
}

func (e *UnknownPlatformError) Error() string {
	known := make([]string, len(e.Known))
	for i, p := range e.Known {
		known[i] = string(p)
	}
	return fmt.Sprintf("unknown platform %q (known: %s)", e.Platform, strings.Join(known, ", "))
}

// Is reports whether target is ErrUnknownPlatform.
func (e *UnknownPlatformError) Is(target error) bool {
	return target == ErrUnknownPlatform
}

// Rule pairs a predicate with the label it produces.
type Rule struct {
	Match Matcher
	Label string
}

// Decision is the outcome of evaluating a rule set against a page.
type Decision struct {
	Label string
	// Rule is the index of the matching rule, or -1 when the default applied.
	Rule int
	// Probe is set when no rule matched and the rule set defers to its probe.
	Probe bool
}

// Matched reports whether a rule fired (as opposed to the default or a probe).
func (d Decision) Matched() bool { return d.Rule >= 0 }

// RuleSet is the ordered rule list for one platform.
type RuleSet struct {
	Platform Platform
	Name     string
	Rules    []Rule
	Default  string
	Probe    *Probe
}

// Evaluate returns the label of the first rule matching page.
// When nothing matches it returns the default label, or a probe decision if
// the rule set carries a probe.
func (rs *RuleSet) Evaluate(page *Page) Decision {
	if idx, ok := firstMatch(rs.Rules, page); ok {
		return Decision{Label: rs.Rules[idx].Label, Rule: idx}
	}
	if rs.Probe != nil {
		return Decision{Rule: -1, Probe: true}
	}
	return Decision{Label: rs.Default, Rule: -1}
}

// Labels returns every label the rule set can produce, in evaluation order.
func (rs *RuleSet) Labels() []string {
	var labels []string
	for _, r := range rs.Rules {
		labels = append(labels, r.Label)
	}
	if rs.Probe != nil {
		for _, r := range rs.Probe.Rules {
			labels = append(labels, r.Label)
		}
		return append(labels, rs.Probe.Default)
	}
	return append(labels, rs.Default)
}

// Probe describes a second fetch derived from the landing page.
// Capture must hold at least one group; URL is expanded with regexp
// template syntax (${1}) against the capture match.
type Probe struct {
	Capture *regexp.Regexp
	URL     string
	Rules   []Rule
	Default string
}

// TargetURL derives the probe URL from the landing page.
// It returns false when the capture does not match.
func (p *Probe) TargetURL(landing string) (string, bool) {
	m := p.Capture.FindStringSubmatchIndex(landing)
	if m == nil {
		return "", false
	}
	return string(p.Capture.ExpandString(nil, p.URL, landing, m)), true
}

// Evaluate runs the nested rules against the probed page.
func (p *Probe) Evaluate(page *Page) Decision {
	if idx, ok := firstMatch(p.Rules, page); ok {
		return Decision{Label: p.Rules[idx].Label, Rule: idx}
	}
	return Decision{Label: p.Default, Rule: -1}
}

func firstMatch(rules []Rule, page *Page) (int, bool) {
	for i, r := range rules {
		if r.Match.Match(page) {
			return i, true
		}
	}
	return -1, false
}

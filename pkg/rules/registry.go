package rules

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var builtinRules []byte

// Registry maps platform identifiers to compiled rule sets.
// It is immutable once built.
type Registry struct {
	sets  map[Platform]*RuleSet
	order []Platform
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the registry compiled from the built-in rules.
func Default() *Registry {
	defaultOnce.Do(func() {
		reg, err := Load(builtinRules)
		if err != nil {
			panic(fmt.Sprintf("rules: built-in rules are invalid: %v", err))
		}
		defaultRegistry = reg
	})
	return defaultRegistry
}

// LoadFile compiles a registry from a YAML rule file.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- rule file path is supplied by the operator
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file: %w", err)
	}
	reg, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}

// Load compiles a registry from YAML rule definitions.
func Load(data []byte) (*Registry, error) {
	var file fileDef
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("rule file is empty")
		}
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}

	if err := validator.New().Struct(file); err != nil {
		return nil, fmt.Errorf("invalid rules: %w", err)
	}

	reg := &Registry{sets: make(map[Platform]*RuleSet, len(file.Platforms))}
	for _, def := range file.Platforms {
		p := Platform(def.ID)
		if _, dup := reg.sets[p]; dup {
			return nil, fmt.Errorf("duplicate platform %q", def.ID)
		}
		rs, err := def.compile()
		if err != nil {
			return nil, fmt.Errorf("platform %q: %w", def.ID, err)
		}
		reg.sets[p] = rs
		reg.order = append(reg.order, p)
	}
	return reg, nil
}

// RulesFor returns the rule set for p.
func (r *Registry) RulesFor(p Platform) (*RuleSet, error) {
	rs, ok := r.sets[p]
	if !ok {
		return nil, &UnknownPlatformError{Platform: p, Known: r.IDs()}
	}
	return rs, nil
}

// Platforms returns all rule sets in declaration order.
func (r *Registry) Platforms() []*RuleSet {
	out := make([]*RuleSet, 0, len(r.order))
	for _, p := range r.order {
		out = append(out, r.sets[p])
	}
	return out
}

// IDs returns the registered platform identifiers in declaration order.
func (r *Registry) IDs() []Platform {
	return append([]Platform(nil), r.order...)
}

type fileDef struct {
	Platforms []ruleSetDef `yaml:"platforms" validate:"required,min=1,dive"`
}

type ruleSetDef struct {
	ID      string    `yaml:"id" validate:"required,lowercase,alphanum"`
	Name    string    `yaml:"name" validate:"required"`
	Default string    `yaml:"default" validate:"required_without=Probe,excluded_with=Probe"`
	Rules   []ruleDef `yaml:"rules" validate:"dive"`
	Probe   *probeDef `yaml:"probe"`
}

type ruleDef struct {
	Label    string `yaml:"label" validate:"required"`
	Contains string `yaml:"contains" validate:"required_without_all=Regexp Selector,excluded_with=Regexp Selector"`
	Regexp   string `yaml:"regexp" validate:"required_without_all=Contains Selector,excluded_with=Contains Selector"`
	Selector string `yaml:"selector" validate:"required_without_all=Contains Regexp,excluded_with=Contains Regexp"`
	Absent   bool   `yaml:"absent"`
}

type probeDef struct {
	Capture string    `yaml:"capture" validate:"required"`
	URL     string    `yaml:"url" validate:"required"`
	Default string    `yaml:"default" validate:"required"`
	Rules   []ruleDef `yaml:"rules" validate:"required,min=1,dive"`
}

func (d ruleSetDef) compile() (*RuleSet, error) {
	rs := &RuleSet{
		Platform: Platform(d.ID),
		Name:     d.Name,
		Default:  d.Default,
	}

	var err error
	if rs.Rules, err = compileRules(d.Rules); err != nil {
		return nil, err
	}

	if d.Probe != nil {
		if rs.Probe, err = d.Probe.compile(); err != nil {
			return nil, fmt.Errorf("probe: %w", err)
		}
	}
	return rs, nil
}

func (d probeDef) compile() (*Probe, error) {
	re, err := regexp.Compile(d.Capture)
	if err != nil {
		return nil, fmt.Errorf("invalid capture: %w", err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("capture %q has no group", d.Capture)
	}

	rules, err := compileRules(d.Rules)
	if err != nil {
		return nil, err
	}
	return &Probe{Capture: re, URL: d.URL, Rules: rules, Default: d.Default}, nil
}

func compileRules(defs []ruleDef) ([]Rule, error) {
	rules := make([]Rule, 0, len(defs))
	for i, d := range defs {
		m, err := d.matcher()
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i+1, d.Label, err)
		}
		rules = append(rules, Rule{Match: m, Label: d.Label})
	}
	return rules, nil
}

func (d ruleDef) matcher() (Matcher, error) {
	var m Matcher
	switch {
	case d.Contains != "":
		m = Contains(d.Contains)
	case d.Regexp != "":
		re, err := regexp.Compile(d.Regexp)
		if err != nil {
			return nil, fmt.Errorf("invalid regexp: %w", err)
		}
		m = Regexp(re)
	default:
		sel, err := Selector(d.Selector)
		if err != nil {
			return nil, err
		}
		m = sel
	}
	if d.Absent {
		m = Not(m)
	}
	return m, nil
}

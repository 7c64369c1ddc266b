package pipeline

import (
	"fmt"
	"sort"
	"strings"

	pkgerrors "github.com/careroute/interlink/errors"
)

// Operator combines a filter rule's boolean result with the running result
// of the rules before it.
type Operator string

const (
	// OperatorNone replaces the running result with this rule's own result.
	OperatorNone Operator = "NONE"
	// OperatorAnd rejects as soon as the running result is false.
	OperatorAnd Operator = "AND"
	// OperatorOr accepts as soon as the running result is true.
	OperatorOr Operator = "OR"
)

// normalize maps the empty operator to NONE and uppercases config input.
func (o Operator) normalize() Operator {
	if o == "" {
		return OperatorNone
	}
	return Operator(strings.ToUpper(string(o)))
}

func (o Operator) valid() bool {
	switch o.normalize() {
	case OperatorNone, OperatorAnd, OperatorOr:
		return true
	}
	return false
}

// Rule is one enabled-flaggable unit of user-authored accept/reject logic.
// The script's completion value is coerced to a boolean; Operator describes
// how that boolean combines with the rules before it.
type Rule struct {
	SequenceNumber int      `json:"sequenceNumber" yaml:"sequenceNumber"`
	Name           string   `json:"name" yaml:"name"`
	Type           string   `json:"type,omitempty" yaml:"type,omitempty"`
	Script         string   `json:"script" yaml:"script"`
	Enabled        bool     `json:"enabled" yaml:"enabled"`
	Operator       Operator `json:"operator,omitempty" yaml:"operator,omitempty"`
}

// label names a rule in logs and error content.
func (r Rule) label() string {
	if r.Name != "" {
		return r.Name
	}
	return fmt.Sprintf("rule %d", r.SequenceNumber)
}

// Step is one enabled-flaggable unit of user-authored content-mutation
// logic. A step's script may rewrite the working content by returning a
// string and may read or write the four maps through its bindings.
type Step struct {
	SequenceNumber int    `json:"sequenceNumber" yaml:"sequenceNumber"`
	Name           string `json:"name" yaml:"name"`
	Type           string `json:"type,omitempty" yaml:"type,omitempty"`
	Script         string `json:"script" yaml:"script"`
	Enabled        bool   `json:"enabled" yaml:"enabled"`
}

func (s Step) label() string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("step %d", s.SequenceNumber)
}

// Filter is the ordered rule chain evaluated before a message is
// transformed. An empty or fully disabled chain accepts unconditionally.
type Filter struct {
	Rules []Rule `json:"rules" yaml:"rules"`
}

// Validate reports configuration problems that would make every message on
// the channel fail: enabled rules without a script or with an unknown
// operator.
func (f *Filter) Validate() error {
	if f == nil {
		return nil
	}
	for _, r := range f.Rules {
		if !r.Enabled {
			continue
		}
		if strings.TrimSpace(r.Script) == "" {
			return pkgerrors.WrapFatal(pkgerrors.ErrInvalidConfig, "Filter", "Validate",
				fmt.Sprintf("filter %s has no script", r.label()))
		}
		if !r.Operator.valid() {
			return pkgerrors.WrapFatal(pkgerrors.ErrInvalidConfig, "Filter", "Validate",
				fmt.Sprintf("filter %s has unknown operator %q", r.label(), r.Operator))
		}
	}
	return nil
}

// enabledRules returns the enabled rules in sequence-number order without
// disturbing the configured slice.
func (f *Filter) enabledRules() []Rule {
	if f == nil {
		return nil
	}
	rules := make([]Rule, 0, len(f.Rules))
	for _, r := range f.Rules {
		if r.Enabled {
			rules = append(rules, r)
		}
	}
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].SequenceNumber < rules[j].SequenceNumber
	})
	return rules
}

// Transformer is the ordered step chain applied to an accepted message,
// plus the data types bounding it: InboundDataType names the serializer
// that normalizes raw content before any script runs, OutboundDataType the
// serializer that encodes the result for dispatch.
type Transformer struct {
	Steps            []Step `json:"steps" yaml:"steps"`
	InboundDataType  string `json:"inboundDataType,omitempty" yaml:"inboundDataType,omitempty"`
	OutboundDataType string `json:"outboundDataType,omitempty" yaml:"outboundDataType,omitempty"`
}

// Validate reports enabled steps without a script.
func (t *Transformer) Validate() error {
	if t == nil {
		return nil
	}
	for _, s := range t.Steps {
		if !s.Enabled {
			continue
		}
		if strings.TrimSpace(s.Script) == "" {
			return pkgerrors.WrapFatal(pkgerrors.ErrInvalidConfig, "Transformer", "Validate",
				fmt.Sprintf("transformer %s has no script", s.label()))
		}
	}
	return nil
}

func (t *Transformer) enabledSteps() []Step {
	if t == nil {
		return nil
	}
	steps := make([]Step, 0, len(t.Steps))
	for _, s := range t.Steps {
		if s.Enabled {
			steps = append(steps, s)
		}
	}
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].SequenceNumber < steps[j].SequenceNumber
	})
	return steps
}

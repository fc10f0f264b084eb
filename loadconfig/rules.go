package loadconfig

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidConfig is returned when a rule or configuration cannot be compiled.
var ErrInvalidConfig = errors.New("invalid load config")

// RuleError identifies the rule that failed to compile.
//
// The underlying error can be accessed via errors.Unwrap.
type RuleError struct {
	Index   int
	Pattern string
	cause   error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("load config rule %d: pattern %q: %v", e.Index, e.Pattern, e.cause)
}

func (e *RuleError) Unwrap() error { return e.cause }

// Is lets errors.Is match ErrInvalidConfig.
func (e *RuleError) Is(target error) bool { return target == ErrInvalidConfig }

// Rule classifies the files matching FilePatterns.
//
// A non-empty Lifecycle restricts the rule to files whose resolved lifecycle
// tag equals it.
type Rule struct {
	Name         string   `yaml:"name,omitempty"`
	FilePatterns []string `yaml:"file_patterns"`
	Lifecycle    string   `yaml:"lifecycle,omitempty"`
	Remote       bool     `yaml:"remote"`
	Deploy       bool     `yaml:"deploy"`
}

// Built-in pattern macros naming segment sub-directories.
var macros = map[string]string{
	"_ATTRIBUTE_": `^segment_[0-9]+(_level_[0-9]+)?/attribute/`,
	"_INDEX_":     `^segment_[0-9]+(_level_[0-9]+)?/index/`,
	"_SUMMARY_":   `^segment_[0-9]+(_level_[0-9]+)?/summary/`,
	"_SOURCE_":    `^segment_[0-9]+(_level_[0-9]+)?/source/`,
	"_PATCH_":     `^patch_index_[0-9]+/`,
}

type compiledRule struct {
	patterns  []*regexp.Regexp
	lifecycle string
	remote    bool
	deploy    bool
}

func (r *compiledRule) matches(path, tag string) bool {
	if r.lifecycle != "" && r.lifecycle != tag {
		return false
	}
	for _, re := range r.patterns {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// RuleSet is an ordered, compiled list of rules. It is immutable and safe for
// concurrent use.
type RuleSet struct {
	rules []compiledRule
}

// Compile compiles rules in declaration order.
func Compile(rules []Rule) (*RuleSet, error) {
	rs := &RuleSet{rules: make([]compiledRule, 0, len(rules))}
	for i, r := range rules {
		if len(r.FilePatterns) == 0 {
			return nil, &RuleError{Index: i, cause: errors.New("no file patterns")}
		}
		cr := compiledRule{lifecycle: r.Lifecycle, remote: r.Remote, deploy: r.Deploy}
		for _, p := range r.FilePatterns {
			expr := p
			if m, ok := macros[p]; ok {
				expr = m
			}
			re, err := regexp.Compile(expr)
			if err != nil {
				return nil, &RuleError{Index: i, Pattern: p, cause: err}
			}
			cr.patterns = append(cr.patterns, re)
		}
		rs.rules = append(rs.rules, cr)
	}
	return rs, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(rules []Rule) *RuleSet {
	rs, err := Compile(rules)
	if err != nil {
		panic(err)
	}
	return rs
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int { return len(rs.rules) }

// Classify returns the remote and deploy flags of the first rule matching path
// under lifecycleTag. A path matching no rule is neither remote nor deployed.
func (rs *RuleSet) Classify(path, lifecycleTag string) (remote, deploy bool) {
	path = NormalizePath(path)
	for i := range rs.rules {
		if rs.rules[i].matches(path, lifecycleTag) {
			return rs.rules[i].remote, rs.rules[i].deploy
		}
	}
	return false, false
}

// NormalizePath strips leading "./" and "/" so patterns see partition-relative paths.
func NormalizePath(path string) string {
	for {
		switch {
		case strings.HasPrefix(path, "./"):
			path = path[2:]
		case strings.HasPrefix(path, "/"):
			path = path[1:]
		default:
			return path
		}
	}
}

package lifecycle

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrInvalidConfig is returned for malformed strategy configurations.
var ErrInvalidConfig = errors.New("invalid lifecycle config")

// StrategyKind selects how segments are tagged.
type StrategyKind string

const (
	// StrategyStatic tags segments by an exact string statistic.
	StrategyStatic StrategyKind = "static"
	// StrategyDynamic tags segments by an integer range relative to a time anchor.
	StrategyDynamic StrategyKind = "dynamic"
)

// OffsetCurrentTime anchors dynamic ranges at the current time.
const OffsetCurrentTime = "CURRENT_TIME"

// Config is the lifecycle strategy configuration.
type Config struct {
	Strategy StrategyKind `yaml:"strategy" json:"strategy"`
	Patterns []Pattern    `yaml:"patterns" json:"patterns"`
}

// IsEmpty reports whether no strategy is configured.
func (c Config) IsEmpty() bool {
	return c.Strategy == "" && len(c.Patterns) == 0
}

// Pattern is one ordered tagging rule.
//
// For the static strategy Range lists the accepted statistic values. For the
// dynamic strategy Range holds exactly two integers [lo, hi].
type Pattern struct {
	Field      string   `yaml:"statistic_field" json:"statistic_field"`
	Lifecycle  string   `yaml:"lifecycle" json:"lifecycle"`
	Range      []string `yaml:"range" json:"range"`
	OffsetBase string   `yaml:"offset_base,omitempty" json:"offset_base,omitempty"`
	IsOffset   bool     `yaml:"is_offset,omitempty" json:"is_offset,omitempty"`
}

// Range is a closed integer interval, encoded as [min, max].
type Range struct {
	Min int64
	Max int64
}

// Intersects reports whether r and o overlap.
func (r Range) Intersects(o Range) bool {
	return r.Min <= o.Max && o.Min <= r.Max
}

// MarshalJSON encodes r as [min, max].
func (r Range) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int64{r.Min, r.Max})
}

// UnmarshalJSON decodes r from [min, max].
func (r *Range) UnmarshalJSON(data []byte) error {
	var pair [2]int64
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	r.Min, r.Max = pair[0], pair[1]
	return nil
}

// Segment carries the statistics of one segment of a version.
type Segment struct {
	// Directory is the partition-relative segment directory.
	Directory    string
	IntegerStats map[string]Range
	StringStats  map[string]string
}

type staticPattern struct {
	field     string
	lifecycle string
	values    map[string]struct{}
}

type dynamicPattern struct {
	field     string
	lifecycle string
	bounds    Range
	relative  bool
}

// Classifier assigns lifecycle tags to segments. It is safe for concurrent use.
type Classifier struct {
	kind    StrategyKind
	static  []staticPattern
	dynamic []dynamicPattern
	now     func() time.Time
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithClock overrides the time source used for CURRENT_TIME anchors.
func WithClock(now func() time.Time) ClassifierOption {
	return func(c *Classifier) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClassifier compiles cfg. An empty config yields a classifier that tags
// every segment with "".
func NewClassifier(cfg Config, optFns ...ClassifierOption) (*Classifier, error) {
	c := &Classifier{kind: cfg.Strategy, now: time.Now}
	for _, fn := range optFns {
		fn(c)
	}

	if cfg.IsEmpty() {
		c.kind = StrategyStatic
		return c, nil
	}

	switch cfg.Strategy {
	case StrategyStatic:
		for i, p := range cfg.Patterns {
			if p.Field == "" {
				return nil, fmt.Errorf("%w: pattern %d: missing statistic field", ErrInvalidConfig, i)
			}
			values := make(map[string]struct{}, len(p.Range))
			for _, v := range p.Range {
				values[v] = struct{}{}
			}
			c.static = append(c.static, staticPattern{field: p.Field, lifecycle: p.Lifecycle, values: values})
		}
	case StrategyDynamic:
		for i, p := range cfg.Patterns {
			dp, err := compileDynamic(p)
			if err != nil {
				return nil, fmt.Errorf("%w: pattern %d: %v", ErrInvalidConfig, i, err)
			}
			c.dynamic = append(c.dynamic, dp)
		}
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, cfg.Strategy)
	}
	return c, nil
}

func compileDynamic(p Pattern) (dynamicPattern, error) {
	if p.Field == "" {
		return dynamicPattern{}, errors.New("missing statistic field")
	}
	if len(p.Range) != 2 {
		return dynamicPattern{}, fmt.Errorf("range must hold two integers, got %d values", len(p.Range))
	}
	lo, err := strconv.ParseInt(p.Range[0], 10, 64)
	if err != nil {
		return dynamicPattern{}, fmt.Errorf("range lower bound: %w", err)
	}
	hi, err := strconv.ParseInt(p.Range[1], 10, 64)
	if err != nil {
		return dynamicPattern{}, fmt.Errorf("range upper bound: %w", err)
	}
	if lo > hi {
		return dynamicPattern{}, fmt.Errorf("range [%d, %d] is inverted", lo, hi)
	}
	if p.OffsetBase != "" && p.OffsetBase != OffsetCurrentTime {
		return dynamicPattern{}, fmt.Errorf("unknown offset base %q", p.OffsetBase)
	}
	return dynamicPattern{
		field:     p.Field,
		lifecycle: p.Lifecycle,
		bounds:    Range{Min: lo, Max: hi},
		// A CURRENT_TIME base without is_offset keeps the bounds absolute.
		relative: p.OffsetBase == OffsetCurrentTime && p.IsOffset,
	}, nil
}

// Kind returns the compiled strategy.
func (c *Classifier) Kind() StrategyKind { return c.kind }

// Classify returns a table tagging every segment directory, including
// segments that resolve to the empty tag.
func (c *Classifier) Classify(segments []Segment) *Table {
	table := NewTable()
	now := c.now().Unix()
	for _, seg := range segments {
		table.AddDirectory(seg.Directory, c.segmentLifecycle(seg, now))
	}
	return table
}

func (c *Classifier) segmentLifecycle(seg Segment, now int64) string {
	switch c.kind {
	case StrategyStatic:
		for _, p := range c.static {
			v, ok := seg.StringStats[p.field]
			if !ok {
				continue
			}
			if _, hit := p.values[v]; hit {
				return p.lifecycle
			}
		}
		return ""
	case StrategyDynamic:
		for _, p := range c.dynamic {
			r, ok := seg.IntegerStats[p.field]
			if !ok {
				continue
			}
			if r.Intersects(p.effectiveBounds(now)) {
				return p.lifecycle
			}
		}
		return ""
	default:
		panic(fmt.Sprintf("lifecycle: unhandled strategy %q", c.kind))
	}
}

func (p dynamicPattern) effectiveBounds(now int64) Range {
	if !p.relative {
		return p.bounds
	}
	return Range{Min: now - p.bounds.Max, Max: now - p.bounds.Min}
}

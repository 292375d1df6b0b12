package walkthrough

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// WidgetKind selects the input control a widget demo renders.
type WidgetKind string

const (
	WidgetNumber   WidgetKind = "number"
	WidgetSlider   WidgetKind = "slider"
	WidgetText     WidgetKind = "text"
	WidgetTextArea WidgetKind = "textarea"
	WidgetSelect   WidgetKind = "select"
	WidgetRadio    WidgetKind = "radio"
	WidgetCheckbox WidgetKind = "checkbox"
)

// WidgetKinds lists the supported widget kinds.
var WidgetKinds = []WidgetKind{
	WidgetNumber, WidgetSlider, WidgetText, WidgetTextArea,
	WidgetSelect, WidgetRadio, WidgetCheckbox,
}

// WidgetSpec describes an input control: its kind, label, bounds or options,
// and default value. Specs are authored as YAML inside ```widget fences.
type WidgetSpec struct {
	Kind      WidgetKind `yaml:"kind"`
	Label     string     `yaml:"label"`
	Min       *float64   `yaml:"min,omitempty"`
	Max       *float64   `yaml:"max,omitempty"`
	Step      float64    `yaml:"step,omitempty"`
	Options   []string   `yaml:"options,omitempty"`
	Default   any        `yaml:"default,omitempty"`
	Help      string     `yaml:"help,omitempty"`
	MaxLength int        `yaml:"max_length,omitempty"` // text kinds only, 0 = unlimited
}

// IsNumeric reports whether the widget holds a float64 value.
func (s WidgetSpec) IsNumeric() bool {
	return s.Kind == WidgetNumber || s.Kind == WidgetSlider
}

// IsChoice reports whether the widget value must be one of Options.
func (s WidgetSpec) IsChoice() bool {
	return s.Kind == WidgetSelect || s.Kind == WidgetRadio
}

// Validate checks that the widget definition is internally consistent.
func (s WidgetSpec) Validate() error {
	if !slices.Contains(WidgetKinds, s.Kind) {
		return fmt.Errorf("unknown widget kind %q", s.Kind)
	}

	switch {
	case s.IsNumeric():
		if s.Min != nil && s.Max != nil && *s.Min > *s.Max {
			return fmt.Errorf("min (%v) is greater than max (%v)", *s.Min, *s.Max)
		}
		if s.Kind == WidgetSlider && (s.Min == nil || s.Max == nil) {
			return fmt.Errorf("slider requires both min and max")
		}
		if s.Step < 0 {
			return fmt.Errorf("step cannot be negative")
		}
		if s.Default != nil {
			d, err := cast.ToFloat64E(s.Default)
			if err != nil {
				return fmt.Errorf("default %v is not a number", s.Default)
			}
			if s.Min != nil && d < *s.Min || s.Max != nil && d > *s.Max {
				return fmt.Errorf("default %v is outside [%s, %s]", d, s.boundString(s.Min), s.boundString(s.Max))
			}
		}

	case s.IsChoice():
		if len(s.Options) == 0 {
			return fmt.Errorf("%s requires at least one option", s.Kind)
		}
		if s.Default != nil && !slices.Contains(s.Options, cast.ToString(s.Default)) {
			return fmt.Errorf("default %q is not one of the options", cast.ToString(s.Default))
		}

	case s.Kind == WidgetCheckbox:
		if s.Default != nil {
			if _, err := toBool(s.Default); err != nil {
				return fmt.Errorf("default %v is not a boolean", s.Default)
			}
		}

	default:
		if s.MaxLength < 0 {
			return fmt.Errorf("max_length cannot be negative")
		}
	}

	return nil
}

// DefaultValue returns the normalized initial value shown before any
// interaction.
func (s WidgetSpec) DefaultValue() any {
	switch {
	case s.IsNumeric():
		if s.Default != nil {
			if d, err := cast.ToFloat64E(s.Default); err == nil {
				return s.clamp(d)
			}
		}
		if s.Min != nil {
			return *s.Min
		}
		return s.clamp(0)

	case s.IsChoice():
		if s.Default != nil {
			return cast.ToString(s.Default)
		}
		if len(s.Options) > 0 {
			return s.Options[0]
		}
		return ""

	case s.Kind == WidgetCheckbox:
		b, _ := toBool(s.Default)
		return b

	default:
		return s.truncate(cast.ToString(s.Default))
	}
}

// Normalize converts a raw interaction value (form string, JSON number, bool)
// into the widget's value type. Numbers are clamped to the bounds; choices
// outside the option list are rejected with ErrInvalidValue.
func (s WidgetSpec) Normalize(raw any) (any, error) {
	switch {
	case s.IsNumeric():
		if str, ok := raw.(string); ok {
			raw = strings.TrimSpace(str)
		}
		f, err := cast.ToFloat64E(raw)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: %v is not a number", ErrInvalidValue, raw)
		}
		return s.clamp(f), nil

	case s.IsChoice():
		v := cast.ToString(raw)
		if !slices.Contains(s.Options, v) {
			return nil, fmt.Errorf("%w: %q is not one of %v", ErrInvalidValue, v, s.Options)
		}
		return v, nil

	case s.Kind == WidgetCheckbox:
		b, err := toBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v is not a boolean", ErrInvalidValue, raw)
		}
		return b, nil

	default:
		v, err := cast.ToStringE(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return s.truncate(v), nil
	}
}

func (s WidgetSpec) clamp(f float64) float64 {
	if s.Min != nil && f < *s.Min {
		return *s.Min
	}
	if s.Max != nil && f > *s.Max {
		return *s.Max
	}
	return f
}

func (s WidgetSpec) truncate(v string) string {
	if s.MaxLength <= 0 {
		return v
	}
	r := []rune(v)
	if len(r) > s.MaxLength {
		return string(r[:s.MaxLength])
	}
	return v
}

func (s WidgetSpec) boundString(b *float64) string {
	if b == nil {
		return "∞"
	}
	return FormatValue(*b)
}

// toBool accepts HTML checkbox values ("on") on top of what cast understands.
func toBool(v any) (bool, error) {
	if v == nil {
		return false, nil
	}
	if s, ok := v.(string); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "on", "yes", "checked":
			return true, nil
		case "off", "no", "":
			return false, nil
		}
	}
	return cast.ToBoolE(v)
}

// FormatValue renders a widget value for display.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case string:
		return val
	default:
		return cast.ToString(val)
	}
}

package bind

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"unicode/utf8"
)

// ConstraintSet holds the bounds and patterns a coerced value must satisfy.
// Nil pointers mean "not constrained".
type ConstraintSet struct {
	MinLength  *int
	MaxLength  *int
	Pattern    string
	Ge         *float64
	Le         *float64
	Gt         *float64
	Lt         *float64
	MultipleOf *float64
	MinItems   *int
	MaxItems   *int

	re *regexp.Regexp
}

// Constraint codes reported in BindingError.Constraint.
const (
	ConstraintMinLength  = "min_length"
	ConstraintMaxLength  = "max_length"
	ConstraintPattern    = "pattern"
	ConstraintGe         = "ge"
	ConstraintLe         = "le"
	ConstraintGt         = "gt"
	ConstraintLt         = "lt"
	ConstraintMultipleOf = "multiple_of"
	ConstraintMinItems   = "min_items"
	ConstraintMaxItems   = "max_items"
	ConstraintCheck      = "check"
)

type violation struct {
	code    string
	message string
}

func (c *ConstraintSet) empty() bool {
	return c.MinLength == nil && c.MaxLength == nil && c.Pattern == "" &&
		c.Ge == nil && c.Le == nil && c.Gt == nil && c.Lt == nil && c.MultipleOf == nil &&
		c.MinItems == nil && c.MaxItems == nil
}

// compile checks the set against the declared type and for internal
// consistency, and compiles the pattern.
func (c *ConstraintSet) compile(t Type) error {
	if c.empty() {
		return nil
	}

	k := t.base().kind
	stringy := k == KindString || k == KindEmail
	numeric := k == KindInt || k == KindFloat
	collection := k == KindList || k == KindSet

	if (c.MinLength != nil || c.MaxLength != nil || c.Pattern != "") && !stringy {
		return fmt.Errorf("length and pattern constraints need a string type, got %s", t)
	}
	if (c.Ge != nil || c.Le != nil || c.Gt != nil || c.Lt != nil || c.MultipleOf != nil) && !numeric {
		return fmt.Errorf("numeric bounds need an int or float type, got %s", t)
	}
	if (c.MinItems != nil || c.MaxItems != nil) && !collection {
		return fmt.Errorf("item bounds need a list or set type, got %s", t)
	}

	if err := checkCounts("length", c.MinLength, c.MaxLength); err != nil {
		return err
	}
	if err := checkCounts("items", c.MinItems, c.MaxItems); err != nil {
		return err
	}

	if c.Ge != nil && c.Le != nil && *c.Ge > *c.Le {
		return fmt.Errorf("ge %v exceeds le %v", *c.Ge, *c.Le)
	}
	if c.Gt != nil && c.Lt != nil && *c.Gt >= *c.Lt {
		return fmt.Errorf("gt %v must be below lt %v", *c.Gt, *c.Lt)
	}
	if c.Ge != nil && c.Lt != nil && *c.Ge >= *c.Lt {
		return fmt.Errorf("ge %v must be below lt %v", *c.Ge, *c.Lt)
	}
	if c.Gt != nil && c.Le != nil && *c.Gt >= *c.Le {
		return fmt.Errorf("gt %v must be below le %v", *c.Gt, *c.Le)
	}
	if c.MultipleOf != nil && *c.MultipleOf <= 0 {
		return fmt.Errorf("multiple_of must be positive, got %v", *c.MultipleOf)
	}

	if c.Pattern != "" {
		re, err := regexp.Compile(`^(?:` + c.Pattern + `)$`)
		if err != nil {
			return fmt.Errorf("pattern %q: %w", c.Pattern, err)
		}
		c.re = re
	}

	return nil
}

func checkCounts(what string, lower, upper *int) error {
	if lower != nil && *lower < 0 {
		return fmt.Errorf("min %s must not be negative", what)
	}
	if upper != nil && *upper < 0 {
		return fmt.Errorf("max %s must not be negative", what)
	}
	if lower != nil && upper != nil && *lower > *upper {
		return fmt.Errorf("min %s %d exceeds max %s %d", what, *lower, what, *upper)
	}
	return nil
}

// check evaluates every constraint against v without short-circuiting.
func (c *ConstraintSet) check(v any) []violation {
	if v == nil || c.empty() {
		return nil
	}

	var out []violation

	switch val := v.(type) {
	case string:
		n := utf8.RuneCountInString(val)
		if c.MinLength != nil && n < *c.MinLength {
			out = append(out, violation{ConstraintMinLength, fmt.Sprintf("must be at least %d characters", *c.MinLength)})
		}
		if c.MaxLength != nil && n > *c.MaxLength {
			out = append(out, violation{ConstraintMaxLength, fmt.Sprintf("must be at most %d characters", *c.MaxLength)})
		}
		if c.re != nil && !c.re.MatchString(val) {
			out = append(out, violation{ConstraintPattern, fmt.Sprintf("must match pattern %s", c.Pattern)})
		}
	case int64:
		out = c.checkNumber(float64(val), out)
		if c.MultipleOf != nil && !isMultipleInt(val, *c.MultipleOf) {
			out = append(out, violation{ConstraintMultipleOf, "must be a multiple of " + formatBound(*c.MultipleOf)})
		}
	case float64:
		out = c.checkNumber(val, out)
		if c.MultipleOf != nil && !isMultipleFloat(val, *c.MultipleOf) {
			out = append(out, violation{ConstraintMultipleOf, "must be a multiple of " + formatBound(*c.MultipleOf)})
		}
	case []any:
		n := len(val)
		if c.MinItems != nil && n < *c.MinItems {
			out = append(out, violation{ConstraintMinItems, fmt.Sprintf("must have at least %d items", *c.MinItems)})
		}
		if c.MaxItems != nil && n > *c.MaxItems {
			out = append(out, violation{ConstraintMaxItems, fmt.Sprintf("must have at most %d items", *c.MaxItems)})
		}
	}

	return out
}

func (c *ConstraintSet) checkNumber(n float64, out []violation) []violation {
	if c.Ge != nil && n < *c.Ge {
		out = append(out, violation{ConstraintGe, "must be greater than or equal to " + formatBound(*c.Ge)})
	}
	if c.Gt != nil && n <= *c.Gt {
		out = append(out, violation{ConstraintGt, "must be greater than " + formatBound(*c.Gt)})
	}
	if c.Le != nil && n > *c.Le {
		out = append(out, violation{ConstraintLe, "must be less than or equal to " + formatBound(*c.Le)})
	}
	if c.Lt != nil && n >= *c.Lt {
		out = append(out, violation{ConstraintLt, "must be less than " + formatBound(*c.Lt)})
	}
	return out
}

func isMultipleInt(n int64, m float64) bool {
	if m == math.Trunc(m) && m <= math.MaxInt64 {
		return n%int64(m) == 0
	}
	return isMultipleFloat(float64(n), m)
}

func isMultipleFloat(n, m float64) bool {
	q := n / m
	return math.Abs(q-math.Round(q)) < 1e-9
}

func formatBound(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

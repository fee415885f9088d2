package ruleset

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidRule marks rule documents that fail to decode or validate.
var ErrInvalidRule = errors.New("invalid rule")

var ruleIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ruleValidate is the validator instance for rule documents.
var ruleValidate *validator.Validate

func init() {
	ruleValidate = validator.New()
	_ = ruleValidate.RegisterValidation("ruleid", func(fl validator.FieldLevel) bool {
		return ruleIDPattern.MatchString(fl.Field().String())
	})
}

// Validate checks field constraints on every rule and rejects duplicate IDs.
// All problems are reported together; each wraps ErrInvalidRule.
func Validate(rs *RuleSet) error {
	if rs == nil {
		return fmt.Errorf("%w: nil rule set", ErrInvalidRule)
	}
	var errs []error
	seen := make(map[string]int, len(rs.Rules))
	for i, r := range rs.Rules {
		label := ruleLabel(i, r)
		if err := ruleValidate.Struct(r); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) {
				for _, fe := range verrs {
					errs = append(errs, fmt.Errorf("%w: %s: %s", ErrInvalidRule, label, describe(fe)))
				}
			} else {
				errs = append(errs, fmt.Errorf("%w: %s: %v", ErrInvalidRule, label, err))
			}
		}
		if r.ID == "" {
			continue
		}
		if prev, dup := seen[r.ID]; dup {
			errs = append(errs, fmt.Errorf("%w: %s: duplicate id (first declared at index %d)", ErrInvalidRule, label, prev))
			continue
		}
		seen[r.ID] = i
	}
	return errors.Join(errs...)
}

// Warnings lists rules that load fine but can never fire.
func Warnings(rs *RuleSet) []string {
	var out []string
	for i, r := range rs.Rules {
		if r.Conditions.Len() == 0 {
			out = append(out, fmt.Sprintf("%s: no conditions, rule never matches", ruleLabel(i, r)))
		}
	}
	return out
}

func ruleLabel(i int, r Rule) string {
	if r.ID == "" {
		return fmt.Sprintf("rule[%d]", i)
	}
	return fmt.Sprintf("rule %q", r.ID)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s %q must be one of [%s]", fe.Field(), fe.Value(), fe.Param())
	case "ruleid":
		return fmt.Sprintf("%s %q must be alphanumeric with . _ - (max 128 chars)", fe.Field(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %q validation", fe.Field(), fe.Tag())
	}
}

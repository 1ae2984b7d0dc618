// Package policy checks candidate passwords against the strength and change rules.
package policy

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/nkiryanov/calcboard/internal/apperrors"
)

const MinLength = 8

// Rule names, stable identifiers of violations
const (
	RuleMinLength = "min_length"
	RuleUppercase = "uppercase"
	RuleLowercase = "lowercase"
	RuleDigit     = "digit"
	RuleSpecial   = "special"
	RuleMismatch  = "mismatch"
	RuleUnchanged = "unchanged"
)

type Violation struct {
	Rule    string
	Message string
}

// Strength rule: predicate that must hold for a password
type rule struct {
	Violation
	holds func(password string) bool
}

// Applied in order, every violated rule is reported
var strengthRules = []rule{
	{
		Violation: Violation{RuleMinLength, "Password must be at least 8 characters long"},
		holds:     func(p string) bool { return utf8.RuneCountInString(p) >= MinLength },
	},
	{
		Violation: Violation{RuleUppercase, "Password must contain at least one uppercase letter"},
		holds:     func(p string) bool { return strings.IndexFunc(p, unicode.IsUpper) >= 0 },
	},
	{
		Violation: Violation{RuleLowercase, "Password must contain at least one lowercase letter"},
		holds:     func(p string) bool { return strings.IndexFunc(p, unicode.IsLower) >= 0 },
	},
	{
		Violation: Violation{RuleDigit, "Password must contain at least one digit"},
		holds:     func(p string) bool { return strings.IndexFunc(p, unicode.IsDigit) >= 0 },
	},
	{
		Violation: Violation{RuleSpecial, "Password must contain at least one special character"},
		holds:     func(p string) bool { return strings.IndexFunc(p, isSpecial) >= 0 },
	},
}

var (
	mismatch  = Violation{RuleMismatch, "New password and confirmation do not match"}
	unchanged = Violation{RuleUnchanged, "New password must be different from current password"}
)

func isSpecial(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// Validation outcome, valid if no violations
type Result struct {
	Violations []Violation
}

func (r Result) Valid() bool {
	return len(r.Violations) == 0
}

func (r Result) Messages() []string {
	messages := make([]string, 0, len(r.Violations))
	for _, v := range r.Violations {
		messages = append(messages, v.Message)
	}
	return messages
}

func (r Result) Has(rule string) bool {
	for _, v := range r.Violations {
		if v.Rule == rule {
			return true
		}
	}
	return false
}

// Nil if valid, *ValidationError otherwise
func (r Result) Err() error {
	if r.Valid() {
		return nil
	}
	return &ValidationError{Result: r}
}

// Check password strength only
func CheckStrength(password string) Result {
	var result Result
	for _, r := range strengthRules {
		if !r.holds(password) {
			result.Violations = append(result.Violations, r.Violation)
		}
	}
	return result
}

// Validate new password: strength, confirmation, and difference from current one if it is given
// Empty current means there is no current password (registration)
func Validate(password string, confirm string, current string) Result {
	result := CheckStrength(password)

	if password != confirm {
		result.Violations = append(result.Violations, mismatch)
	}

	if current != "" && password == current {
		result.Violations = append(result.Violations, unchanged)
	}

	return result
}

type ValidationError struct {
	Result
}

func (e *ValidationError) Error() string {
	return "password policy violation: " + strings.Join(e.Messages(), "; ")
}

// Matches apperrors.ErrPolicyViolation for any violation,
// apperrors.ErrPasswordMismatch and apperrors.ErrPasswordUnchanged for the rules they name
func (e *ValidationError) Is(target error) bool {
	switch target {
	case apperrors.ErrPolicyViolation:
		return true
	case apperrors.ErrPasswordMismatch:
		return e.Has(RuleMismatch)
	case apperrors.ErrPasswordUnchanged:
		return e.Has(RuleUnchanged)
	default:
		return false
	}
}

// Extract violations from error chain, nil if err is not a policy violation
func Violations(err error) []Violation {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Violations
	}
	return nil
}

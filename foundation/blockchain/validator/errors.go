package validator

import (
	"errors"
	"fmt"
)

// Rule identifies the validation rule a block failed.
type Rule string

// Set of validation rules in the order they are applied.
const (
	RuleTimestamp   Rule = "timestamp"
	RuleSize        Rule = "size"
	RuleTxShape     Rule = "tx_shape"
	RuleReward      Rule = "reward"
	RuleProofOfWork Rule = "proof_of_work"
	RuleLinkage     Rule = "linkage"
	RuleDoubleSpend Rule = "double_spend"
	RuleGenesis     Rule = "genesis"
)

// ValidationError is returned when a block or chain fails a rule. Fatal
// marks rejections that must never be retried.
type ValidationError struct {
	Rule     Rule
	Index    uint64
	Expected string
	Got      string
	Msg      string
	Fatal    bool
}

// newError constructs a ValidationError.
func newError(rule Rule, index uint64, exp any, got any, format string, args ...any) *ValidationError {
	return &ValidationError{
		Rule:     rule,
		Index:    index,
		Expected: fmt.Sprint(exp),
		Got:      fmt.Sprint(got),
		Msg:      fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface.
func (ve *ValidationError) Error() string {
	return fmt.Sprintf("blk[%d] rule[%s]: %s: got %s, exp %s", ve.Index, ve.Rule, ve.Msg, ve.Got, ve.Expected)
}

// IsValidationError checks if an error of type ValidationError exists.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// RuleOf returns the rule a validation error failed, or an empty rule.
func RuleOf(err error) Rule {
	var ve *ValidationError
	if !errors.As(err, &ve) {
		return ""
	}

	return ve.Rule
}

// IsFatal reports whether the error is a non-retryable rejection.
func IsFatal(err error) bool {
	var ve *ValidationError
	if !errors.As(err, &ve) {
		return false
	}

	return ve.Fatal
}

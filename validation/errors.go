package validation

import (
	"errors"
	"fmt"
)

// Kind names the validation failure category. Pipeline stages match on the
// kind to decide what to log before skipping the offending unit of work.
type Kind string

const (
	// Gateway-level failures
	KindEmptySymbol     Kind = "EmptySymbol"
	KindNoData          Kind = "NoData"
	KindIncompleteQuote Kind = "IncompleteQuote"

	// Quote checks
	KindQuoteMissingField Kind = "QuoteMissingField"
	KindQuoteInvalidPrice Kind = "QuoteInvalidPrice"

	// Option contract checks
	KindOptionMissingField        Kind = "OptionMissingField"
	KindOptionInvalidStrike       Kind = "OptionInvalidStrike"
	KindOptionInvalidPrice        Kind = "OptionInvalidPrice"
	KindOptionInvalidOpenInterest Kind = "OptionInvalidOpenInterest"
	KindOptionInvalidSymbol       Kind = "OptionInvalidSymbol"

	// Metrics checks
	KindMetricsMissingField        Kind = "MetricsMissingField"
	KindMetricsInvalidType         Kind = "MetricsInvalidType"
	KindMetricsPitmOutOfRange      Kind = "MetricsPitmOutOfRange"
	KindMetricsInvalidCashRequired Kind = "MetricsInvalidCashRequired"
)

// Error is a recoverable data validation failure. The orchestration layer
// skips the offending symbol, expiration or contract and keeps going; these
// never abort a whole run.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Errorf builds a validation error with a formatted message.
func Errorf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// IsValidation reports whether err is (or wraps) a validation error.
func IsValidation(err error) bool {
	var ve *Error
	return errors.As(err, &ve)
}

// KindOf returns the validation kind of err, or "" if err is not a
// validation error.
func KindOf(err error) Kind {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Kind
	}
	return ""
}

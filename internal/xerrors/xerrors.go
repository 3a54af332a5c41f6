// Package xerrors implements the error taxonomy from spec.md §7: a fixed
// set of classified failure modes, each tagged error-or-warning, that every
// other package reports through rather than raw fmt.Errorf strings. This
// mirrors the teacher's internal/core/errorfmt.go classified-error idiom
// and mcp/errors.go's JSON-RPC-style error codes, adapted to the core's own
// taxonomy instead of the MCP wire protocol's.
package xerrors

import "fmt"

// Code is a machine-readable taxonomy entry from spec.md §7.
type Code string

const (
	CodeUnsupportedLanguage Code = "unsupported_language"
	CodeParseFailure        Code = "parse_failure"
	CodeLocatorMiss         Code = "locator_miss"
	CodeLocatorAmbiguous    Code = "locator_ambiguous"
	CodeParamValidation     Code = "param_validation"
	CodePatternNotFound     Code = "pattern_not_found"
	CodeSyntaxAfterEdit     Code = "syntax_after_edit"
	CodeReferentialRisk     Code = "referential_risk"
	CodeImportClosureRisk   Code = "import_closure_risk"
	CodeTrivialBody         Code = "trivial_body"
	CodeStringOrComment     Code = "string_or_comment_match"
	CodeOccurrenceNonCode   Code = "occurrence_in_non_code"
	CodeLineDrift           Code = "line_drift"
	CodeCrossFileImpact     Code = "cross_file_impact"
	CodeFilesystemFailure   Code = "filesystem_failure"
	CodeUnknownOperator     Code = "unknown_operator"
)

// Severity classifies whether a finding blocks execution.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// errorCodes tags every taxonomy entry from spec.md §7 as blocking (true)
// or warning-only (false); New and IsError treat a code missing from this
// table as an error.
var errorCodes = map[Code]bool{
	CodeUnsupportedLanguage: false, // reported, not blocking (graceful degradation)
	CodeParseFailure:        true,
	CodeLocatorMiss:         true,
	CodeLocatorAmbiguous:    true,
	CodeParamValidation:     true,
	CodePatternNotFound:     true,
	CodeSyntaxAfterEdit:     true,
	CodeFilesystemFailure:   true,
	CodeUnknownOperator:     true,
	CodeReferentialRisk:     false,
	CodeImportClosureRisk:   false,
	CodeTrivialBody:         false,
	CodeStringOrComment:     false,
	CodeOccurrenceNonCode:   false,
	CodeLineDrift:           false,
	CodeCrossFileImpact:     false,
}

// Error is a structured, classified failure. It never panics out of the
// core; every package that can fail returns one of these instead of a bare
// error when the failure maps to a taxonomy entry.
type Error struct {
	Code     Code
	Message  string
	Severity Severity
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a classified error, defaulting severity from the taxonomy
// table unless the code is unknown, in which case it defaults to error.
func New(code Code, format string, args ...any) *Error {
	sev := SeverityWarning
	if blocks, known := errorCodes[code]; (known && blocks) || !known {
		sev = SeverityError
	}
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Severity: sev}
}

// Wrap attaches a taxonomy code to an underlying error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	e := New(code, format, args...)
	e.Cause = cause
	return e
}

// IsError reports whether the taxonomy entry blocks execution (an "error"
// per spec.md §7, as opposed to "warning").
func IsError(code Code) bool {
	blocks, known := errorCodes[code]
	return !known || blocks
}

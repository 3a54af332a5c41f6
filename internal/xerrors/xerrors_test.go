package xerrors

import (
	"errors"
	"testing"
)

func TestNewSeverityFromTaxonomy(t *testing.T) {
	if got := New(CodeParseFailure, "boom").Severity; got != SeverityError {
		t.Errorf("CodeParseFailure severity = %v, want error", got)
	}
	if got := New(CodeUnsupportedLanguage, "boom").Severity; got != SeverityWarning {
		t.Errorf("CodeUnsupportedLanguage severity = %v, want warning", got)
	}
	if got := New(Code("made_up_code"), "boom").Severity; got != SeverityError {
		t.Errorf("unknown code severity = %v, want error (default)", got)
	}
}

func TestErrorMessageFormatting(t *testing.T) {
	e := New(CodeLocatorMiss, "no match for %s", "foo")
	if e.Error() != "locator_miss: no match for foo" {
		t.Errorf("Error() = %q", e.Error())
	}

	cause := errors.New("file not found")
	wrapped := Wrap(CodeFilesystemFailure, cause, "reading %s", "a.go")
	if wrapped.Error() != "filesystem_failure: reading a.go: file not found" {
		t.Errorf("Error() = %q", wrapped.Error())
	}
	if !errors.Is(wrapped, cause) {
		t.Error("Wrap should preserve the cause for errors.Is/errors.Unwrap")
	}
}

func TestIsError(t *testing.T) {
	if !IsError(CodeParseFailure) {
		t.Error("CodeParseFailure should be an error")
	}
	if IsError(CodeUnsupportedLanguage) {
		t.Error("CodeUnsupportedLanguage should be a warning, not an error")
	}
	if !IsError(Code("unregistered")) {
		t.Error("unregistered codes should default to error")
	}
}

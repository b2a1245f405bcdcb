package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/JonMunkholm/tbcheck/internal/ingest"
	"github.com/JonMunkholm/tbcheck/internal/report"
	"github.com/JonMunkholm/tbcheck/internal/rules"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},
		{"file too large", fmt.Errorf("%w: 10 bytes exceeds 5", ErrFileTooLarge), "FILE001"},
		{"unreadable file", &ingest.UnreadableFileError{Kind: ingest.KindXLSX, Err: errors.New("zip: not a valid zip file")}, "FILE002"},
		{"encoding error", &ingest.UnreadableFileError{Kind: ingest.KindCSV, Err: errors.New("encoding error: file is not valid UTF-8")}, "FILE003"},
		{"no file", ErrNoFile, "FILE004"},
		{"empty file wrapped", &ingest.UnreadableFileError{Kind: ingest.KindCSV, Err: ingest.ErrEmptyFile}, "FILE005"},
		{"unsupported type", fmt.Errorf("%w: \".pdf\"", ingest.ErrUnsupportedKind), "FILE006"},
		{"sheet not found", fmt.Errorf("%w: \"Q4\"", ingest.ErrSheetNotFound), "FILE007"},
		{"syntax error", &rules.RuleLoadError{Source: "r.go", Stage: rules.StageParse, Err: errors.New("1:5: expected ';'")}, "RULE001"},
		{"forbidden import", &rules.RuleLoadError{Source: "r.go", Stage: rules.StageImports, Err: errors.New("forbidden imports os")}, "RULE002"},
		{"missing entry point", &rules.MissingEntryPointError{Source: "r.go", Want: []string{"CheckRules"}}, "RULE003"},
		{"evaluation failure", &rules.RuleLoadError{Source: "r.go", Stage: rules.StageEvaluate, Err: errors.New("panic: boom")}, "RULE004"},
		{"bad signature", &rules.RuleLoadError{Source: "r.go", Stage: rules.StageEntry, Err: errors.New("incorrect signature")}, "RULE005"},
		{"unknown mode", fmt.Errorf("%w: everything", ErrUnknownMode), "RULE006"},
		{"nothing to export", report.ErrNoSheets, "EXP001"},
		{"export failed", &report.SerializationError{Sheet: "x", Err: errors.New("disk full")}, "EXP002"},
		{"busy", ErrTooManyRuns, "RUN001"},
		{"cancelled", fmt.Errorf("run: %w", context.Canceled), "RUN002"},
		{"deadline", context.DeadlineExceeded, "RUN003"},
		{"expired download", ErrArtifactNotFound, "RUN004"},
		{"rate limit text", errors.New("Rate limit exceeded"), "RUN005"},
		{"pattern on plain text", errors.New("http: request body too large"), "FILE001"},
		{"unknown error returns default", errors.New("some random internal error"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestMapError_DetailCarriesRuleError(t *testing.T) {
	err := &rules.RuleLoadError{Source: "r.go", Stage: rules.StageParse, Err: errors.New("r.go:3:1: expected declaration")}
	got := MapError(err)
	if got.Detail != "r.go:3:1: expected declaration" {
		t.Errorf("Detail = %q, want the parser message", got.Detail)
	}
}

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(ErrTooManyRuns)
	want := "System is busy processing other runs (Code: RUN001). Please wait a moment and try again"
	if got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}

	got = FormatUserError(&rules.MissingEntryPointError{Source: "r.go", Want: []string{"CheckRules"}})
	if !strings.Contains(got, "RULE003") || !strings.Contains(got, "CheckRules") {
		t.Errorf("FormatUserError() = %q, want code and detail", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error is not user facing", nil, false},
		{"known error is user facing", ErrNoFile, true},
		{"unknown error is not user facing", errors.New("random internal error xyz"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if got := NewUserError(nil); got != nil {
			t.Errorf("NewUserError(nil) = %v, want nil", got)
		}
	})

	t.Run("wraps technical error with user message", func(t *testing.T) {
		userErr := NewUserError(ErrTooManyRuns)

		if userErr.Error() != "System is busy processing other runs" {
			t.Errorf("Error() = %q, want user message", userErr.Error())
		}
		if !errors.Is(userErr, ErrTooManyRuns) {
			t.Error("Unwrap() should return original error")
		}
	})
}

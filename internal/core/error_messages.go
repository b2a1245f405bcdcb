package core

// # Error Codes Reference
//
// Errors shown to users carry a code they can quote to support. Typed errors
// from the pipeline are recognised first; anything else falls back to
// case-insensitive pattern matching on the error text.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: upload exceeds UPLOAD_MAX_FILE_SIZE
//	FILE002 - Unreadable file: bytes could not be parsed as xlsx, xls or csv
//	FILE003 - Encoding error: csv is not valid UTF-8
//	FILE004 - No file: no data file was selected
//	FILE005 - Empty file: the upload has no bytes
//	FILE006 - Unsupported type: extension is not .xlsx, .xls or .csv
//	FILE007 - Sheet not found: the selected sheet is not in the file
//
// # Rule Errors (RULE001-RULE099)
//
//	RULE001 - Syntax error: the rule file does not parse as Go
//	RULE002 - Forbidden import: the rule file imports a blocked package
//	RULE003 - Missing entry point: no CheckRules (or allow-listed name) found
//	RULE004 - Evaluation failed: top-level code failed or panicked
//	RULE005 - Invalid entry point: the entry point has the wrong signature
//	RULE006 - Unknown discovery mode
//
// # Export Errors (EXP001-EXP099)
//
//	EXP001 - Nothing to export: no rule returned a table
//	EXP002 - Export failed: the result workbook could not be written
//
// # Run Errors (RUN001-RUN099)
//
//	RUN001 - System busy: too many runs in progress
//	RUN002 - Cancelled: the request was cancelled
//	RUN003 - Timeout: the request took too long
//	RUN004 - Download expired: the run's workbook is gone
//	RUN005 - Rate limited: too many requests
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Check the logs for the technical error.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/tbcheck/internal/ingest"
	"github.com/JonMunkholm/tbcheck/internal/report"
	"github.com/JonMunkholm/tbcheck/internal/rules"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`          // What happened (user-friendly)
	Action  string `json:"action"`           // What to do about it
	Code    string `json:"code"`             // Error code for support reference
	Detail  string `json:"detail,omitempty"` // Technical text safe to show, e.g. a syntax error position
}

var (
	msgFileTooLarge = UserMessage{
		Message: "File exceeds the maximum upload size",
		Action:  "Split the file or remove unused sheets",
		Code:    "FILE001",
	}
	msgUnreadable = UserMessage{
		Message: "The data file could not be read",
		Action:  "Check that the file is a valid .xlsx, .xls or .csv file",
		Code:    "FILE002",
	}
	msgEncoding = UserMessage{
		Message: "File contains invalid characters",
		Action:  "Save the file as UTF-8 encoding",
		Code:    "FILE003",
	}
	msgNoFile = UserMessage{
		Message: "No data file was selected",
		Action:  "Please select a data file to check",
		Code:    "FILE004",
	}
	msgEmptyFile = UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Please upload a file with a header row and data rows",
		Code:    "FILE005",
	}
	msgUnsupported = UserMessage{
		Message: "Unsupported file type",
		Action:  "Upload a .xlsx, .xls or .csv file",
		Code:    "FILE006",
	}
	msgSheetNotFound = UserMessage{
		Message: "The selected sheet is not in the file",
		Action:  "Pick one of the sheets listed for this file",
		Code:    "FILE007",
	}

	msgRuleSyntax = UserMessage{
		Message: "The rule file has a syntax error",
		Action:  "Fix the reported line and upload the rule file again",
		Code:    "RULE001",
	}
	msgRuleImport = UserMessage{
		Message: "The rule file imports a package that is not allowed",
		Action:  "Remove the import; rules may only use the listed packages",
		Code:    "RULE002",
	}
	msgRuleMissing = UserMessage{
		Message: "The rule file has no entry point",
		Action:  "Define func CheckRules(t *table.Table) any, or pick another discovery mode",
		Code:    "RULE003",
	}
	msgRuleEval = UserMessage{
		Message: "The rule file failed while loading",
		Action:  "Check top-level variables and init code in the rule file",
		Code:    "RULE004",
	}
	msgRuleEntry = UserMessage{
		Message: "The rule entry point has the wrong signature",
		Action:  "Use func(t *table.Table) any or func(t *table.Table) (any, error)",
		Code:    "RULE005",
	}
	msgRuleMode = UserMessage{
		Message: "Unknown discovery mode",
		Action:  "Use fixed-name, discover-all or allow-list",
		Code:    "RULE006",
	}

	msgNoExport = UserMessage{
		Message: "No rule returned a table, so there is nothing to download",
		Action:  "Results are shown on screen only",
		Code:    "EXP001",
	}
	msgExportFailed = UserMessage{
		Message: "The result workbook could not be written",
		Action:  "Results are shown on screen; try the run again to download",
		Code:    "EXP002",
	}

	msgBusy = UserMessage{
		Message: "System is busy processing other runs",
		Action:  "Please wait a moment and try again",
		Code:    "RUN001",
	}
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "RUN002",
	}
	msgTimeout = UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or simpler rules",
		Code:    "RUN003",
	}
	msgExpired = UserMessage{
		Message: "The results for this run are no longer available",
		Action:  "Run the check again to download the workbook",
		Code:    "RUN004",
	}
	msgRateLimited = UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RUN005",
	}
)

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns catch errors that arrive without their type, e.g. from
// wrapped library errors. The first matching pattern wins.
var errorPatterns = []errorPattern{
	{pattern: "file too large", msg: msgFileTooLarge},
	{pattern: "request body too large", msg: msgFileTooLarge},
	{pattern: "encoding error", msg: msgEncoding},
	{pattern: "no file provided", msg: msgNoFile},
	{pattern: "empty file", msg: msgEmptyFile},
	{pattern: "unsupported file type", msg: msgUnsupported},
	{pattern: "too many concurrent runs", msg: msgBusy},
	{pattern: "context canceled", msg: msgCancelled},
	{pattern: "context deadline exceeded", msg: msgTimeout},
	{pattern: "timeout", msg: msgTimeout},
	{pattern: "rate limit", msg: msgRateLimited},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Known error types are matched first, then text patterns
// (case-insensitive). Returns ERR000 when nothing matches.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	if msg, ok := mapTyped(err); ok {
		return msg
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

func mapTyped(err error) (UserMessage, bool) {
	var (
		loadErr    *rules.RuleLoadError
		missingErr *rules.MissingEntryPointError
		fileErr    *ingest.UnreadableFileError
		exportErr  *report.SerializationError
	)

	switch {
	case errors.Is(err, ErrFileTooLarge):
		return msgFileTooLarge, true
	case errors.Is(err, ErrNoFile):
		return msgNoFile, true
	case errors.Is(err, ErrTooManyRuns):
		return msgBusy, true
	case errors.Is(err, ErrArtifactNotFound):
		return msgExpired, true
	case errors.Is(err, ErrUnknownMode):
		return withDetail(msgRuleMode, err), true

	case errors.As(err, &missingErr):
		return withDetail(msgRuleMissing, missingErr), true
	case errors.As(err, &loadErr):
		switch loadErr.Stage {
		case rules.StageImports:
			return withDetail(msgRuleImport, loadErr.Err), true
		case rules.StageEntry:
			return withDetail(msgRuleEntry, loadErr.Err), true
		case rules.StageEvaluate:
			return withDetail(msgRuleEval, loadErr.Err), true
		default:
			return withDetail(msgRuleSyntax, loadErr.Err), true
		}

	case errors.Is(err, ingest.ErrEmptyFile):
		return msgEmptyFile, true
	case errors.Is(err, ingest.ErrUnsupportedKind):
		return withDetail(msgUnsupported, err), true
	case errors.Is(err, ingest.ErrSheetNotFound):
		return withDetail(msgSheetNotFound, err), true
	case errors.As(err, &fileErr):
		if strings.Contains(strings.ToLower(fileErr.Err.Error()), "encoding error") {
			return msgEncoding, true
		}
		return withDetail(msgUnreadable, fileErr.Err), true

	case errors.Is(err, report.ErrNoSheets):
		return msgNoExport, true
	case errors.As(err, &exportErr):
		return withDetail(msgExportFailed, exportErr), true

	case errors.Is(err, context.Canceled):
		return msgCancelled, true
	case errors.Is(err, context.DeadlineExceeded):
		return msgTimeout, true
	}
	return UserMessage{}, false
}

func withDetail(msg UserMessage, err error) UserMessage {
	msg.Detail = err.Error()
	return msg
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	s := fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
	if msg.Detail != "" {
		s += ": " + msg.Detail
	}
	return s
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError wraps a technical error with a user-friendly message.
// The original error is preserved for logging.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}

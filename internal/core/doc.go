// Package core runs data checks end to end, independent of any UI or
// transport layer. The web server and the CLI both drive it.
//
// # Pipeline
//
// A run moves through four stages, each owned by its own package:
//
//  1. ingest: the uploaded bytes become a table.Table for one sheet
//  2. rules: the rule source becomes a RuleSet (or the built-in default)
//  3. check: every entry runs against the same table, failures isolated
//  4. report: results become display sections and a result workbook
//
// Failures in stages 1 and 2 abort the run. A failing rule never does; it
// shows up as an error section next to its siblings' results.
//
// # Concurrency
//
// [RunLimiter] caps simultaneous runs. Each run is synchronous and shares
// no state with other runs; its workbook is kept in an [ArtifactCache]
// under the run's random ID until it expires.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each category has a code for support reference:
//
//   - FILE001-FILE007: data file errors (size, format, encoding, sheet)
//   - RULE001-RULE006: rule file errors (syntax, imports, entry point)
//   - EXP001-EXP002: result workbook errors
//   - RUN001-RUN005: run errors (busy, cancelled, timeout, expired)
//
// # History
//
// Every run, successful or not, is summarised in a store.Store. The
// maintenance scheduler prunes summaries past the retention window.
package core

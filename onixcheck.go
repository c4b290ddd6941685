// Package onixcheck validates ONIX 3.x publishing metadata.
//
// A Pipeline runs a fixed set of read-only validation stages over a parsed
// Document: XSD structural validation, built-in business rules, user-supplied
// custom rules, completeness scoring, and retailer compatibility checks. The
// namespace resolver runs first and fixes the tag convention (reference,
// short, or legacy un-namespaced) for every later stage, so rule sets written
// with reference tag names apply unchanged to short-tag documents.
//
// Subpackages:
//
//	import "github.com/metaops/onixcheck/ruleset"  // rule, weight and profile definitions
//	import "github.com/metaops/onixcheck/batch"    // job store, runner and scheduler
//	import "github.com/metaops/onixcheck/otel"     // tracing and metrics event handlers
package onixcheck

// Package pipeline runs the steps that turn a query into an archived report.
//
// A Pipeline executes its steps in order on one RunReport: the crawl fills
// the report, the archive step stores it, and the metrics step exports the
// collectors. BatchProcessor runs several queries concurrently, each through
// a fresh Pipeline, so no crawl state is shared between queries.
package pipeline

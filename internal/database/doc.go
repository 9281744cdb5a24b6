// Package database archives finished crawl reports in SQLite.
//
// The archive is write-once history: every completed run is stored with its
// ranked word list so that past results can be listed and shown again. A
// crawl never reads the archive, so no crawl state is carried from one query
// to the next.
//
// The driver is modernc.org/sqlite, which is CGO-free. The database is a
// single file opened with one connection and WAL journaling.
package database

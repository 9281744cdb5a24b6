// Package config provides configuration structures and utilities for wordcrawl.
// It defines the crawl options, fetch settings, resource locations, and report
// preferences, and loads the optional YAML configuration file.
//
// A Config is built in three layers: NewConfig sets the defaults, File.Apply
// copies the values present in the YAML file, and the search command copies
// the flags the user changed. Later layers only override what they set, so
// an unset flag never resets a value from the file. File fields for which
// zero is a valid setting (crawl delay, robots checks, scoring weights) are
// pointers; nil means unset.
//
// Validate runs once on the final Config and returns the first problem
// found as one of the sentinel errors in errors.go.
package config

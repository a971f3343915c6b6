package config

import "time"

// Replay defaults.
const (
	DefaultSource     = "master"
	DefaultBatchSize  = 50
	DefaultDelay      = 10 * time.Minute
	DefaultMaxBuffer  = "2MiB"
	DefaultEnumerator = EnumeratorCLI
)

// Cache service defaults.
const (
	DefaultCacheBaseURL = "http://localhost:8080"
	DefaultCacheTimeout = 30 * time.Second
)

// Output defaults.
const (
	DefaultLogLevel     = "info"
	DefaultLogFormat    = LogFormatText
	DefaultReportFormat = ReportText
)

// Enumerator backends.
const (
	EnumeratorCLI     = "cli"
	EnumeratorLibgit2 = "libgit2"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Report formats.
const (
	ReportText = "text"
	ReportJSON = "json"
	ReportYAML = "yaml"
	ReportNone = "none"
)

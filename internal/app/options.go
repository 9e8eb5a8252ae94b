package app

import "time"

// IngestOptions configure a one-shot ingestion.
type IngestOptions struct {
	CreateSchema bool
	DryRun       bool
}

// ExportOptions hold parameters for exporting historical quotes.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// ReseedOptions configure the high-water rebuild.
type ReseedOptions struct {
	DryRun bool
}

package loadgen

import "time"

// Config holds configuration for a load run against a running triage API.
type Config struct {
	BaseURL     string        // Base URL of the service
	Dossiers    int           // Number of dossiers to generate
	Tables      int           // Tables per dossier
	BatchSize   int           // Dossiers per POST /dossiers request
	Workers     int           // Concurrent submitters
	Timeout     time.Duration // HTTP request timeout
	ReviewLimit int           // Entries fetched from GET /review
	Seed        int64         // Generator seed
}

// DefaultConfig returns the defaults used by the CLI.
func DefaultConfig() Config {
	return Config{
		BaseURL:     "http://localhost:9080",
		Dossiers:    200,
		Tables:      6,
		BatchSize:   10,
		Workers:     4,
		Timeout:     30 * time.Second,
		ReviewLimit: 50,
		Seed:        1,
	}
}

// Stats holds the outcome of a load run.
type Stats struct {
	DossiersGenerated int
	TablesGenerated   int
	BatchesSubmitted  int
	BatchesSuccessful int
	BatchesRejected   int
	BatchesFailed     int
	DossiersReturned  int
	TablesProcessed   int
	TablesSkipped     int
	ReviewEntries     int
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}

package agent

import "time"

type SendResult struct {
	OrderName   string    `json:"order_name"`
	ArchiveName string    `json:"archive_name"`
	FileCount   int       `json:"file_count"`
	DryRun      bool      `json:"dry_run"`
	SentAt      time.Time `json:"sent_at"`

	// Warning is set when the provider has the order but the ledger does
	// not.
	Warning string `json:"warning,omitempty"`
}

type PollResult struct {
	Scanned        int             `json:"scanned"`
	Received       int             `json:"received"`
	Skipped        int             `json:"skipped"`
	Failed         int             `json:"failed"`
	Deliveries     []DeliveryEntry `json:"deliveries"`
	Errors         []PollError     `json:"errors"`
	DryRun         bool            `json:"dry_run"`
	ProcessingTime time.Duration   `json:"processing_time"`
	Timestamp      time.Time       `json:"timestamp"`
}

type DeliveryEntry struct {
	ArchiveName string   `json:"archive_name"`
	DeliveryID  string   `json:"delivery_id"`
	Reference   string   `json:"reference"`
	OutputDir   string   `json:"output_dir"`
	Files       []string `json:"files"`
}

type PollError struct {
	ArchiveName string    `json:"archive_name"`
	Error       string    `json:"error"`
	Timestamp   time.Time `json:"timestamp"`
}

package v1

import "time"

// Chunk is a retrieved piece of an ingested document.
type Chunk struct {
	Source   string  `json:"source"`
	Content  string  `json:"content"`
	Offset   int     `json:"offset"`
	Distance float32 `json:"distance"`
}

// IngestReport summarises one ingestion run.
type IngestReport struct {
	Documents int           `json:"documents"`
	Chunks    int           `json:"chunks"`
	Skipped   int           `json:"skipped"`
	NoOp      bool          `json:"no_op"`
	Duration  time.Duration `json:"duration"`
}

// IndexStatus describes the persisted index.
type IndexStatus struct {
	Exists    bool      `json:"exists"`
	Count     int       `json:"count"`
	Dimension int       `json:"dimension"`
	Model     string    `json:"model"`
	BuiltAt   time.Time `json:"built_at"`
}

package internal

import "time"

// Retrieval is one successful provider run as recorded in the history table.
type Retrieval struct {
	ID           string            `json:"id"`
	Collection   string            `json:"collection"`
	StartNumber  int               `json:"start_number"`
	Number       int               `json:"number"`
	Original     string            `json:"original"`
	Grade        string            `json:"grade"`
	Translations map[string]string `json:"translations"`
	Missing      []string          `json:"missing,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
}

package eventing

import "time"

// StatementsChanged is published after statements were created or their totals changed.
type StatementsChanged struct {
	StatementIDs []string
	OccurredAt   time.Time
}

// TemplatesChanged is published after a header or footer template mutation.
type TemplatesChanged struct {
	Kind       string
	TemplateID string
	Action     string
	OccurredAt time.Time
}

// ClientsChanged is published after a client row was updated.
type ClientsChanged struct {
	ClientID   string
	Action     string
	OccurredAt time.Time
}

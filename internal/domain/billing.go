package domain

// RecordSource distinguishes records returned by the practice-management
// system from locally synthesized stand-ins.
type RecordSource string

const (
	// SourceReal marks a record that exists in the external system.
	SourceReal RecordSource = "real"
	// SourcePlaceholder marks a locally synthesized record, created when the
	// external integration was unavailable or failed.
	SourcePlaceholder RecordSource = "placeholder"
)

// Placeholder reports whether the record is a local stand-in.
func (s RecordSource) Placeholder() bool { return s == SourcePlaceholder }

// Client is a client record in the practice-management system.
type Client struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Email        string       `json:"email,omitempty"`
	Source       RecordSource `json:"source"`
	SourceReason string       `json:"sourceReason,omitempty"`
}

// Matter is a legal engagement that time is billed against.
type Matter struct {
	ID            string       `json:"id"`
	DisplayNumber string       `json:"displayNumber"`
	Description   string       `json:"description"`
	ClientID      string       `json:"clientId,omitempty"`
	Status        string       `json:"status,omitempty"`
	Source        RecordSource `json:"source"`
	SourceReason  string       `json:"sourceReason,omitempty"`
}

// TimeEntry is a posted (or locally synthesized) billing record.
type TimeEntry struct {
	ID              string       `json:"id"`
	MatterID        string       `json:"matterId"`
	ClientID        string       `json:"clientId,omitempty"`
	Description     string       `json:"description"`
	DurationSeconds int64        `json:"durationSeconds"`
	Date            string       `json:"date"` // YYYY-MM-DD
	Rate            float64      `json:"rate,omitempty"`
	Amount          float64      `json:"amount,omitempty"`
	Mock            bool         `json:"mock"`
	Source          RecordSource `json:"source"`
	SourceReason    string       `json:"sourceReason,omitempty"`
}

// MatterSuggestion is the summary generator's guess at which matter a
// session belongs to.
type MatterSuggestion struct {
	SuggestedMatter string  `json:"suggestedMatter"`
	MatterType      string  `json:"matterType,omitempty"`
	Confidence      float64 `json:"confidence,omitempty"`
	Reasoning       string  `json:"reasoning,omitempty"`
}

// BillingResult is the aggregated outcome of the billing workflow. It is
// always populated, even under total external failure, so the caller can
// still show how long the user worked.
type BillingResult struct {
	Success    bool              `json:"success"`
	Client     *Client           `json:"client,omitempty"`
	Matter     *Matter           `json:"matter,omitempty"`
	TimeEntry  *TimeEntry        `json:"timeEntry,omitempty"`
	Summary    *SessionSummary   `json:"summary,omitempty"`
	Suggestion *MatterSuggestion `json:"suggestion,omitempty"`
	Error      string            `json:"error,omitempty"`
}

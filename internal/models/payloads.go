package models

// These structs define the JSON payloads exchanged between the chat front end
// and the replica-session function.

// Session actions.
const (
	ActionStart     = "start"
	ActionDocuments = "documents"
	ActionMessage   = "message"
)

// SessionEventRequest is the input for the replica-session function.
type SessionEventRequest struct {
	SessionID string     `json:"sessionId"`
	Action    string     `json:"action"`
	Documents []Document `json:"documents,omitempty"`
	Text      string     `json:"text,omitempty"`
}

// SessionEventResponse is the output of the replica-session function.
type SessionEventResponse struct {
	SessionID           string   `json:"sessionId"`
	Phase               Phase    `json:"phase"`
	CurrentSectionIndex int      `json:"currentSectionIndex"`
	Messages            []string `json:"messages"`
	Errors              []string `json:"errors,omitempty"`
	Warnings            []string `json:"warnings,omitempty"`
}

// DeliveryResponse reports where a completed brief was written.
type DeliveryResponse struct {
	Status      string `json:"status"`
	MarkdownURI string `json:"markdownUri"`
	HTMLURI     string `json:"htmlUri"`
}

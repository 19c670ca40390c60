package models

// Generation error kinds reported by GenerationClient implementations.
const (
	ErrorKindTimeout        = "timeout"
	ErrorKindBackend        = "backend"
	ErrorKindEmptyResponse  = "empty_response"
	ErrorKindRefusal        = "refusal"
	ErrorKindInvalidRequest = "invalid_request"
)

// GenerationRequest is the composed payload for a single section.
type GenerationRequest struct {
	SectionID       string `json:"sectionId"`
	SystemPrompt    string `json:"systemPrompt"`
	Prompt          string `json:"prompt"`
	MaxOutputTokens int    `json:"maxOutputTokens"`
}

// GenerationResult is what a GenerationClient returns. Text is set only when
// Success is true, ErrorKind only when it is false.
type GenerationResult struct {
	Success   bool   `json:"success"`
	Text      string `json:"text,omitempty"`
	ErrorKind string `json:"errorKind,omitempty"`
}

// GenerationFailed builds an unsuccessful result.
func GenerationFailed(kind string) GenerationResult {
	return GenerationResult{Success: false, ErrorKind: kind}
}

package tools

// ToolResult is what a tool invocation hands back to the protocol layer.
type ToolResult struct {
	// ForLLM is the text returned to the calling client.
	ForLLM string `json:"for_llm"`
	// ForUser is an optional shorter rendering for humans (logs, CLI).
	ForUser string `json:"for_user,omitempty"`
	IsError bool   `json:"is_error"`
}

// NewToolResult wraps a successful payload.
func NewToolResult(text string) *ToolResult {
	return &ToolResult{ForLLM: text}
}

// ErrorResult reports a recoverable failure as a normal result.
func ErrorResult(message string) *ToolResult {
	return &ToolResult{ForLLM: message, ForUser: message, IsError: true}
}

// Text returns the client-facing text of the result.
func (r *ToolResult) Text() string {
	if r.ForLLM != "" {
		return r.ForLLM
	}
	return r.ForUser
}

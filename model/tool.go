package model

// ToolDescriptor describes one tool exposed by an active tool server. A
// slice of descriptors is taken as a snapshot at the start of a send and
// never refreshed while that send runs.
type ToolDescriptor struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	ServerID    string     `json:"serverId"`
	ServerName  string     `json:"serverName"`
	Parameters  ToolSchema `json:"parameters"`
}

// ToolSchema is the JSON-schema object describing tool parameters.
type ToolSchema struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Required   []string       `json:"required,omitempty"`
}

// FindTool resolves a model-provided function name against a snapshot.
// IDs are matched first, then display names.
func FindTool(tools []ToolDescriptor, name string) (ToolDescriptor, bool) {
	for _, t := range tools {
		if t.ID == name {
			return t, true
		}
	}
	for _, t := range tools {
		if t.Name == name {
			return t, true
		}
	}
	return ToolDescriptor{}, false
}

// ToolCallStatus is the state of one dispatched tool call.
type ToolCallStatus string

const (
	ToolCallRunning ToolCallStatus = "running"
	ToolCallSuccess ToolCallStatus = "success"
	ToolCallError   ToolCallStatus = "error"
)

// ToolCallResult records the outcome of one tool call. It is created as
// running and finalized exactly once through Succeed or Fail.
type ToolCallResult struct {
	ID         string         `json:"id"`
	ToolID     string         `json:"toolId,omitempty"`
	ToolName   string         `json:"toolName"`
	ServerName string         `json:"serverName,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Status     ToolCallStatus `json:"status"`
	Result     any            `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// Finalized reports whether the call has left the running state.
func (r *ToolCallResult) Finalized() bool {
	return r.Status == ToolCallSuccess || r.Status == ToolCallError
}

// Succeed finalizes r with a result. It is a no-op once finalized.
func (r *ToolCallResult) Succeed(result any) {
	if r.Finalized() {
		return
	}
	r.Status = ToolCallSuccess
	r.Result = result
}

// Fail finalizes r with an error message. It is a no-op once finalized.
func (r *ToolCallResult) Fail(msg string) {
	if r.Finalized() {
		return
	}
	r.Status = ToolCallError
	r.Error = msg
}

// ToolExecution is what a tool catalog reports for one call.
type ToolExecution struct {
	Success bool
	Result  any
	Message string
}

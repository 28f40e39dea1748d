package core

// Role identifies who produced a conversation turn.
// The string values match the persisted chat history format.
type Role string

const (
	// RoleHuman marks a turn written by the user.
	RoleHuman Role = "human"

	// RoleAssistant marks a turn written by the agent.
	RoleAssistant Role = "ai"
)

// Label returns the speaker label used when a turn is rendered into a prompt.
// Anything that is not a human turn is rendered as the assistant.
func (r Role) Label() string {
	if r == RoleHuman {
		return "User"
	}
	return "Assistant"
}

// Conversational reports whether turns with this role are worth indexing.
// System and tool turns in a history are skipped.
func (r Role) Conversational() bool {
	return r == RoleHuman || r == RoleAssistant
}

// Message is a single entry of a stored conversation history.
type Message struct {
	// Role is the speaker of the turn.
	Role Role `json:"role"`

	// Content is the raw text of the turn.
	Content string `json:"content"`

	// Timestamp is kept as an opaque string; it only takes part in
	// equality checks and is never parsed.
	Timestamp string `json:"timestamp,omitempty"`
}

// HistoryInfo describes one stored conversation history of a scope.
type HistoryInfo struct {
	ID string `json:"uid"`
}

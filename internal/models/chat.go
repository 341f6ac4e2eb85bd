package models

// Role identifies the speaker of a Turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleModel
}

// Turn is a single utterance in a conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Transcript is the ordered history of one chat session.
type Transcript []Turn

// Seed returns a transcript holding only the greeting, spoken by the model.
func Seed(greeting string) Transcript {
	return Transcript{{Role: RoleModel, Content: greeting}}
}

// Append returns a new transcript with t at the end. The receiver is left
// untouched so callers can roll back by keeping the old value.
func (tr Transcript) Append(t Turn) Transcript {
	out := make(Transcript, len(tr), len(tr)+1)
	copy(out, tr)
	return append(out, t)
}

// Clone returns a copy that shares no backing array with tr.
func (tr Transcript) Clone() Transcript {
	if tr == nil {
		return Transcript{}
	}
	out := make(Transcript, len(tr))
	copy(out, tr)
	return out
}

// CompletionRequest is what the completion backend receives for one turn.
type CompletionRequest struct {
	Persona string
	History Transcript
	Message string
}

// CompletionResult is either Ok(text) or Err(reason).
type CompletionResult struct {
	Text   string
	Reason string
	ok     bool
}

func CompletionOk(text string) CompletionResult {
	return CompletionResult{Text: text, ok: true}
}

func CompletionErr(reason string) CompletionResult {
	return CompletionResult{Reason: reason}
}

func (r CompletionResult) IsOk() bool { return r.ok }

// ChatRequest is the payload of the stateless completion endpoint.
type ChatRequest struct {
	Message string `json:"message"`
	History []Turn `json:"history"`
}

// ChatResponse is the reply from the AI chat.
type ChatResponse struct {
	Reply string `json:"reply"`
}

// SendMessageRequest is the payload for sending into an open session.
type SendMessageRequest struct {
	Message string `json:"message"`
}

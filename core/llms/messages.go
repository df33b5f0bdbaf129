package llms

// MessageRole describes who a message in the conversation is from
type MessageRole string

const (
	MessageRoleSystem    MessageRole = "system"
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Message is a single entry of the conversation history sent to an LLM.
type Message struct {
	Role    MessageRole
	Content string
}

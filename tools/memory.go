// Package tools exposes semantic memory to an agent as callable tools, so
// the model can look things up or save an exchange on its own initiative.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/becomeliminal/nim-memory/memory"
)

// Tool is a function the model can call with a JSON object argument.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]interface{}

	// Run executes the tool and returns the text handed back to the model.
	Run func(ctx context.Context, input json.RawMessage) (string, error)
}

// ErrInvalidInput is returned when a tool is called with arguments that do
// not match its schema.
var ErrInvalidInput = errors.New("invalid tool input")

const noMemories = "No relevant memories found."

// MemoryTools returns the recall_memory and remember_exchange tools bound to
// one scope of m.
func MemoryTools(m memory.Manager, scope string) []Tool {
	return []Tool{
		{
			Name:        "recall_memory",
			Description: "Search long-term memory of past conversations with this user. Use it when the user refers to something said before or when personal details would improve the answer.",
			InputSchema: ObjectSchema(map[string]interface{}{
				"query": StringProperty("What to look for, phrased like the information you need"),
			}, "query"),
			Run: func(ctx context.Context, input json.RawMessage) (string, error) {
				var args struct {
					Query string `json:"query"`
				}
				if err := decode(input, &args); err != nil {
					return "", err
				}
				if strings.TrimSpace(args.Query) == "" {
					return "", fmt.Errorf("%w: query is required", ErrInvalidInput)
				}

				out, err := m.Retrieve(ctx, scope, args.Query)
				if err != nil {
					return "", fmt.Errorf("recall memory: %w", err)
				}
				if out == "" {
					return noMemories, nil
				}
				return out, nil
			},
		},
		{
			Name:        "remember_exchange",
			Description: "Save an exchange with the user to long-term memory. Use it for facts, preferences and plans worth recalling in later conversations.",
			InputSchema: ObjectSchema(map[string]interface{}{
				"user_message":       StringProperty("The user's message, verbatim"),
				"assistant_response": StringProperty("Your reply to it"),
			}, "user_message"),
			Run: func(ctx context.Context, input json.RawMessage) (string, error) {
				var args struct {
					UserMessage       string `json:"user_message"`
					AssistantResponse string `json:"assistant_response"`
				}
				if err := decode(input, &args); err != nil {
					return "", err
				}
				if strings.TrimSpace(args.UserMessage) == "" {
					return "", fmt.Errorf("%w: user_message is required", ErrInvalidInput)
				}

				if err := m.RecordConversation(ctx, scope, args.UserMessage, args.AssistantResponse); err != nil {
					return "", fmt.Errorf("remember exchange: %w", err)
				}
				return "Saved to memory.", nil
			},
		},
	}
}

// Find returns the tool with the given name.
func Find(tools []Tool, name string) (Tool, bool) {
	for _, t := range tools {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}

func decode(input json.RawMessage, v interface{}) error {
	if len(input) == 0 {
		input = json.RawMessage("{}")
	}
	if err := json.Unmarshal(input, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

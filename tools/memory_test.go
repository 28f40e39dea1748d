package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/embedder/hash"
)

func newRegistry(t *testing.T) *memory.Registry {
	t.Helper()
	cfg := memory.DefaultConfig()
	cfg.RootDir = t.TempDir()
	cfg.ContextThreshold = -1
	r := memory.NewRegistry(cfg, memory.WithEmbedder(hash.New(128)))
	t.Cleanup(func() { r.Close() })
	return r
}

func TestMemoryTools_RememberThenRecall(t *testing.T) {
	ctx := context.Background()
	tools := MemoryTools(newRegistry(t), "user123")

	recall, ok := Find(tools, "recall_memory")
	if !ok {
		t.Fatal("recall_memory missing")
	}
	remember, ok := Find(tools, "remember_exchange")
	if !ok {
		t.Fatal("remember_exchange missing")
	}

	out, err := recall.Run(ctx, json.RawMessage(`{"query": "favourite food"}`))
	if err != nil {
		t.Fatalf("recall on empty memory: %v", err)
	}
	if out != noMemories {
		t.Errorf("recall on empty memory = %q", out)
	}

	out, err = remember.Run(ctx, json.RawMessage(`{"user_message": "My favourite food is ramen", "assistant_response": "Ramen is great"}`))
	if err != nil {
		t.Fatalf("remember: %v", err)
	}
	if out != "Saved to memory." {
		t.Errorf("remember = %q", out)
	}

	out, err = recall.Run(ctx, json.RawMessage(`{"query": "favourite food"}`))
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if !strings.Contains(out, "User: My favourite food is ramen") {
		t.Errorf("recall = %q", out)
	}
}

func TestMemoryTools_InvalidInput(t *testing.T) {
	tools := MemoryTools(newRegistry(t), "user123")
	recall, _ := Find(tools, "recall_memory")
	remember, _ := Find(tools, "remember_exchange")

	tests := []struct {
		name  string
		tool  Tool
		input string
	}{
		{"recall not json", recall, `not json`},
		{"recall missing query", recall, `{}`},
		{"remember blank message", remember, `{"user_message": "  "}`},
		{"remember wrong type", remember, `{"user_message": 42}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.tool.Run(context.Background(), json.RawMessage(tt.input))
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestMemoryTools_Schemas(t *testing.T) {
	for _, tool := range MemoryTools(newRegistry(t), "user123") {
		if tool.InputSchema["type"] != "object" {
			t.Errorf("%s schema type = %v", tool.Name, tool.InputSchema["type"])
		}
		required, _ := tool.InputSchema["required"].([]string)
		if len(required) != 1 {
			t.Errorf("%s required = %v", tool.Name, required)
		}
		if _, err := json.Marshal(tool.InputSchema); err != nil {
			t.Errorf("%s schema does not marshal: %v", tool.Name, err)
		}
	}
}

func TestMemoryTools_InvalidScope(t *testing.T) {
	recall, _ := Find(MemoryTools(newRegistry(t), "../etc"), "recall_memory")
	if _, err := recall.Run(context.Background(), json.RawMessage(`{"query": "x"}`)); !errors.Is(err, memory.ErrInvalidScope) {
		t.Errorf("err = %v, want ErrInvalidScope", err)
	}
}

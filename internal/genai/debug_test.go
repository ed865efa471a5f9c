package genai

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/openai/openai-go"
)

func newDebugClient(stateDir string, debug bool) *Client {
	mockResp := openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: "Test response"}},
		},
	}
	return &Client{
		chat:        &mockChatService{resp: mockResp},
		model:       "test-model",
		temperature: 0.7,
		maxTokens:   100,
		debugMode:   debug,
		stateDir:    stateDir,
	}
}

func TestDebugLogging(t *testing.T) {
	stateDir := t.TempDir()
	client := newDebugClient(stateDir, true)

	if _, err := client.Respond(context.Background(), "User prompt"); err != nil {
		t.Fatalf("Respond failed: %v", err)
	}

	debugDir := filepath.Join(stateDir, "debug")
	files, err := os.ReadDir(debugDir)
	if err != nil {
		t.Fatalf("Failed to read debug directory: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected one debug file, got %d", len(files))
	}

	content, err := os.ReadFile(filepath.Join(debugDir, files[0].Name()))
	if err != nil {
		t.Fatalf("Failed to read debug file: %v", err)
	}
	var logEntry map[string]interface{}
	if err := json.Unmarshal(content, &logEntry); err != nil {
		t.Fatalf("Failed to unmarshal debug log: %v", err)
	}
	for _, field := range []string{"timestamp", "method", "model", "params", "response"} {
		if _, exists := logEntry[field]; !exists {
			t.Errorf("Required field '%s' missing from debug log", field)
		}
	}
	if logEntry["method"] != "GeneratePromptWithContext" {
		t.Errorf("Expected method 'GeneratePromptWithContext', got %v", logEntry["method"])
	}
	if logEntry["model"] != "test-model" {
		t.Errorf("Expected model 'test-model', got %v", logEntry["model"])
	}
}

func TestDebugLoggingDisabled(t *testing.T) {
	stateDir := t.TempDir()
	client := newDebugClient(stateDir, false)

	if _, err := client.Respond(context.Background(), "User prompt"); err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(stateDir, "debug")); !os.IsNotExist(err) {
		t.Errorf("Debug directory should not be created when debug mode is disabled")
	}
}

package gemini

import (
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"
)

func TestReplyText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text(" Keep it "), genai.Text("cold. ")}},
		}},
	}
	got, err := replyText(resp)
	if err != nil {
		t.Fatalf("replyText: %v", err)
	}
	if got != "Keep it cold." {
		t.Errorf("got %q", got)
	}

	empty := []*genai.GenerateContentResponse{
		nil,
		{},
		{Candidates: []*genai.Candidate{{}}},
		{Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []genai.Part{genai.Blob{MIMEType: "image/png"}}}}}},
	}
	for i, r := range empty {
		if _, err := replyText(r); !errors.Is(err, errEmptyReply) {
			t.Errorf("case %d: got %v, want errEmptyReply", i, err)
		}
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(Config{}, nil); err == nil {
		t.Error("expected an error without an API key")
	}
}

func TestModelCarriesSystemInstruction(t *testing.T) {
	c, err := NewClient(Config{APIKey: "test-key"}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer c.Close()

	model := c.model("You are a food safety expert.")
	if model.SystemInstruction == nil || len(model.SystemInstruction.Parts) != 1 {
		t.Fatalf("system instruction: %+v", model.SystemInstruction)
	}
	if got := model.SystemInstruction.Parts[0]; got != genai.Text("You are a food safety expert.") {
		t.Errorf("system part: %v", got)
	}
	if model.Temperature == nil || *model.Temperature != 0.7 {
		t.Errorf("temperature: %v", model.Temperature)
	}
	if model.MaxOutputTokens == nil || *model.MaxOutputTokens != 500 {
		t.Errorf("max output tokens: %v", model.MaxOutputTokens)
	}
	if info := c.GetModelInfo(); info["model"] != DefaultModel {
		t.Errorf("model info: %v", info)
	}
}

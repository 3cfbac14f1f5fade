package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func completionHandler(t *testing.T, captured *oaiChatRequest, content string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
}

func TestDraftListingSendsAllImagesInOneCall(t *testing.T) {
	var captured oaiChatRequest
	srv := httptest.NewServer(completionHandler(t, &captured,
		`{"title":"Oak table","description":"Solid oak.","category":"Furniture",`+
			`"suggestedPrice":120,"condition":"good","keyFeatures":["solid wood"],"brand":null}`))
	defer srv.Close()

	advisor, err := NewOpenAIVisionAdvisor(srv.URL+"/v1", "key", "gpt-4o-mini")
	if err != nil {
		t.Fatalf("new advisor: %v", err)
	}
	draft, err := advisor.DraftListing(context.Background(), DraftRequest{
		Images: []ImagePayload{
			{DataURL: "data:image/jpeg;base64,AAAA"},
			{DataURL: "data:image/jpeg;base64,BBBB"},
		},
		Condition: "good",
		Location:  "Helsinki",
	})
	if err != nil {
		t.Fatalf("draft listing: %v", err)
	}
	if draft.Title != "Oak table" || draft.SuggestedPrice != 120 {
		t.Fatalf("unexpected draft: %+v", draft)
	}

	if captured.ResponseFormat == nil || captured.ResponseFormat.Type != "json_object" {
		t.Fatalf("expected structured-output response format, got %+v", captured.ResponseFormat)
	}
	if captured.MaxTokens != draftMaxTokens {
		t.Fatalf("expected max_tokens %d, got %d", draftMaxTokens, captured.MaxTokens)
	}
	if len(captured.Messages) != 2 {
		t.Fatalf("expected system+user messages, got %d", len(captured.Messages))
	}
	parts, ok := captured.Messages[1].Content.([]any)
	if !ok {
		t.Fatalf("expected user content parts, got %T", captured.Messages[1].Content)
	}
	// One text part plus one image_url part per image.
	if len(parts) != 3 {
		t.Fatalf("expected 3 content parts, got %d", len(parts))
	}
}

func TestReplyMaxTokens(t *testing.T) {
	var captured oaiChatRequest
	srv := httptest.NewServer(completionHandler(t, &captured, "Happy to help with the price!"))
	defer srv.Close()

	advisor, err := NewOpenAIVisionAdvisor(srv.URL+"/v1", "", "gpt-4o-mini")
	if err != nil {
		t.Fatalf("new advisor: %v", err)
	}
	reply, err := advisor.Reply(context.Background(), "You are a sales assistant.", "Is 80 ok?")
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if reply != "Happy to help with the price!" {
		t.Fatalf("unexpected reply %q", reply)
	}
	if captured.MaxTokens != replyMaxTokens {
		t.Fatalf("expected max_tokens %d, got %d", replyMaxTokens, captured.MaxTokens)
	}
	if captured.ResponseFormat != nil {
		t.Fatalf("chat replies must not request structured output")
	}
}

func TestAdvisorSurfacesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit"}}`))
	}))
	defer srv.Close()

	advisor, err := NewOpenAIVisionAdvisor(srv.URL+"/v1", "", "gpt-4o-mini")
	if err != nil {
		t.Fatalf("new advisor: %v", err)
	}
	if _, err := advisor.Reply(context.Background(), "sys", "hi"); err == nil {
		t.Fatalf("expected api error")
	}
}

func TestNewOpenAIVisionAdvisorValidates(t *testing.T) {
	if _, err := NewOpenAIVisionAdvisor("", "", "model"); err == nil {
		t.Fatalf("expected error for missing base URL")
	}
	if _, err := NewOpenAIVisionAdvisor("http://localhost/v1", "", ""); err == nil {
		t.Fatalf("expected error for missing model")
	}
}

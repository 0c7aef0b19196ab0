package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const testServiceKey = "keyid:73656372657473656372657473656372"

func TestRemoteGrouperSuccess(t *testing.T) {
	var gotAuth string
	var gotBody struct {
		Items []ItemRef `json:"items"`
	}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/group" {
			t.Errorf("Expected path /v1/group, got %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("Failed to decode request body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"groups": []ItemGroup{
				{CanonicalName: "tomatoes", ItemIDs: []string{"a", "b"}},
			},
		})
	}))
	defer ts.Close()

	c := NewRemoteGrouper(ts.URL, testServiceKey)
	groups, err := c.GroupItems(context.Background(), []ItemRef{
		{ID: "a", Text: "tomatoes"},
		{ID: "b", Text: "cherry tomatos"},
	})
	if err != nil {
		t.Fatalf("GroupItems failed: %v", err)
	}

	if !strings.HasPrefix(gotAuth, "Bearer ") {
		t.Errorf("Expected a bearer token, got '%s'", gotAuth)
	}
	if len(gotBody.Items) != 2 {
		t.Errorf("Expected 2 items in request, got %d", len(gotBody.Items))
	}
	if len(groups) != 1 {
		t.Fatalf("Expected 1 group, got %d", len(groups))
	}
	if groups[0].CanonicalName != "tomatoes" || len(groups[0].ItemIDs) != 2 {
		t.Errorf("Unexpected group: %+v", groups[0])
	}
}

func TestRemoteGrouperNonSuccessStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer ts.Close()

	c := NewRemoteGrouper(ts.URL, testServiceKey)
	_, err := c.GroupItems(context.Background(), []ItemRef{{ID: "a", Text: "milk"}})
	if err == nil {
		t.Fatal("Expected an error for a 429 response, got nil")
	}
	if !strings.Contains(err.Error(), "status=429") {
		t.Errorf("Expected error to mention status 429, got: %v", err)
	}
}

func TestRemoteGrouperBadKey(t *testing.T) {
	c := NewRemoteGrouper("http://unused", "not-a-valid-key")
	_, err := c.GroupItems(context.Background(), []ItemRef{{ID: "a", Text: "milk"}})
	if err == nil {
		t.Fatal("Expected an error for a malformed service key, got nil")
	}
}

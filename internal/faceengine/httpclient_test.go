package faceengine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewHTTPClient(server.URL, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}
	return client
}

func TestRepresentReturnsEmbedding(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/represent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("request body not JSON: %v", err)
		}
		if req["image"] == "" {
			t.Error("image field missing from request")
		}
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{0.1, 0.2, 0.3}})
	})

	vector, err := client.Represent(context.Background(), []byte("jpeg-bytes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vector) != 3 {
		t.Fatalf("expected 3 elements, got %d", len(vector))
	}
}

func TestRepresentMapsEngineErrorCodes(t *testing.T) {
	cases := []struct {
		code string
		want error
	}{
		{"NO_FACE", ErrNoFaceDetected},
		{"MULTIPLE_FACES", ErrMultipleFaces},
		{"DECODE_ERROR", ErrImageDecode},
	}
	for _, tc := range cases {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{"code": tc.code, "message": "rejected"},
			})
		})
		_, err := client.Represent(context.Background(), []byte("img"))
		if !errors.Is(err, tc.want) {
			t.Fatalf("code %s: expected %v, got %v", tc.code, tc.want, err)
		}
	}
}

func TestRepresentUnknownFailureIsNotASentinel(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"code": "BOOM", "message": "model crashed"},
		})
	})
	_, err := client.Represent(context.Background(), []byte("img"))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	for _, sentinel := range []error{ErrNoFaceDetected, ErrMultipleFaces, ErrImageDecode} {
		if errors.Is(err, sentinel) {
			t.Fatalf("unknown failure must not map to %v", sentinel)
		}
	}
}

func TestRepresentRejectsSuccessWithoutEmbedding(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{})
	})
	if _, err := client.Represent(context.Background(), []byte("img")); err == nil {
		t.Fatal("expected error for empty embedding, got nil")
	}
}

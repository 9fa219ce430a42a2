package validatorapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/omegavid/validator/internal/domain"
	"github.com/omegavid/validator/internal/identity"
)

func newTestClient(url string) *Client {
	return NewClient(&Config{
		BaseURL: url,
		Signer:  identity.NewSigner("validator-key", []byte("secret")),
		Timeout: 5 * time.Second,
		Logger:  zap.NewNop(),
	})
}

func TestGetTopic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/topic" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		user, _, ok := r.BasicAuth()
		if !ok || user != "validator-key" {
			t.Errorf("expected basic auth with validator key, got %q", user)
		}
		_ = json.NewEncoder(w).Encode("street food")
	}))
	defer srv.Close()

	topic, err := newTestClient(srv.URL).GetTopic(context.Background())
	if err != nil {
		t.Fatalf("GetTopic: %v", err)
	}
	if topic != "street food" {
		t.Errorf("unexpected topic %q", topic)
	}
}

func TestGetTopic_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode("")
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).GetTopic(context.Background()); err == nil {
		t.Fatal("expected error for empty topic")
	}
}

func TestGetNoveltyScores(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/get_pinecone_novelty" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body struct {
			Metadata []domain.VideoMetadata `json:"metadata"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		scores := make([]float64, len(body.Metadata))
		for i := range scores {
			scores[i] = 0.5
		}
		_ = json.NewEncoder(w).Encode(scores)
	}))
	defer srv.Close()

	items := []domain.VideoMetadata{{VideoID: "aaaaaaaaaaa"}, {VideoID: "bbbbbbbbbbb"}}
	scores, err := newTestClient(srv.URL).GetNoveltyScores(context.Background(), items)
	if err != nil {
		t.Fatalf("GetNoveltyScores: %v", err)
	}
	if len(scores) != 2 {
		t.Fatalf("expected 2 scores, got %d", len(scores))
	}
}

func TestGetNoveltyScores_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "index down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GetNoveltyScores(context.Background(), []domain.VideoMetadata{{}})
	if !errors.Is(err, domain.ErrNoveltyUnavailable) {
		t.Fatalf("expected ErrNoveltyUnavailable, got %v", err)
	}
}

func TestUploadMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/upload_video_metadata" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body uploadRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body.TopicQuery != "cooking" {
			t.Errorf("unexpected topic query %q", body.TopicQuery)
		}
		if len(body.Metadata) != 1 || len(body.DescriptionRelevance) != 1 || len(body.QueryRelevance) != 1 {
			t.Errorf("unexpected payload shape: %+v", body)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).UploadMetadata(
		context.Background(),
		[]domain.VideoMetadata{{VideoID: "aaaaaaaaaaa"}},
		[]float64{0.9}, []float64{0.8},
		"cooking",
	)
	if err != nil {
		t.Fatalf("UploadMetadata: %v", err)
	}
}

func TestVersionChecker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode("1.2.0")
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)

	latest, err := NewVersionChecker(client, "1.2.0").IsLatest(context.Background())
	if err != nil || !latest {
		t.Errorf("expected current build to be latest, got latest=%v err=%v", latest, err)
	}

	latest, err = NewVersionChecker(client, "1.1.0").IsLatest(context.Background())
	if err != nil || latest {
		t.Errorf("expected stale build, got latest=%v err=%v", latest, err)
	}
}

func TestVersionChecker_DevBuildAlwaysLatest(t *testing.T) {
	latest, err := NewVersionChecker(newTestClient("http://localhost:1"), "dev").IsLatest(context.Background())
	if err != nil || !latest {
		t.Errorf("dev build must never restart-loop, got latest=%v err=%v", latest, err)
	}
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/ruiji/internal/config"
	"github.com/hyperjump/ruiji/internal/embedding"
	"github.com/hyperjump/ruiji/internal/fetch"
	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/internal/similarity"
	"github.com/hyperjump/ruiji/internal/store"
)

type errFetcher struct{ err error }

func (f *errFetcher) Fetch(ctx context.Context) ([]string, error) { return nil, f.err }

func newTestServer(t *testing.T) (*Server, *similarity.Registry) {
	t.Helper()
	registry := similarity.NewRegistry()
	embedder := embedding.NewHashEmbedder(64)

	build := func(key similarity.Key, fetcher fetch.Fetcher) *similarity.Index {
		idx, err := registry.GetOrCreate(key, func() (*similarity.Index, error) {
			st, err := store.NewMemoryStore(64, "")
			if err != nil {
				return nil, err
			}
			return similarity.New(key, fetcher, embedder, st)
		})
		if err != nil {
			t.Fatal(err)
		}
		return idx
	}

	breeds := build(similarity.Key{Fetcher: "static:breeds", Store: "memory", Embedder: "hash:64"},
		fetch.NewStaticFetcher([]string{"beagle", "bulldog", "poodle"}))
	broken := build(similarity.Key{Fetcher: "broken", Store: "memory", Embedder: "hash:64"},
		&errFetcher{err: errors.New("source down")})

	if _, err := breeds.Update(context.Background()); err != nil {
		t.Fatal(err)
	}

	indexes := map[string]*similarity.Index{
		"breed":  breeds,
		"broken": broken,
	}
	srv := NewServer(indexes, registry, &config.ServerConfig{Host: "localhost", Port: 0}, zap.NewNop())
	return srv, registry
}

func doRequest(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)
	return rec
}

func TestHandleMatch(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/match", models.MatchRequest{Index: "breed", Query: "bagle"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var resp models.MatchResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Value != "beagle" {
		t.Errorf("value=%s", resp.Value)
	}
	if resp.Score <= 0 {
		t.Errorf("score=%v", resp.Score)
	}
}

func TestHandleMatch_UnknownIndex(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/match", models.MatchRequest{Index: "nope", Query: "x"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status=%d", rec.Code)
	}
}

func TestHandleMatch_EmptyIndex(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/match", models.MatchRequest{Index: "broken", Query: "x"})
	if rec.Code != http.StatusConflict {
		t.Errorf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestHandleMatch_BadBody(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/match", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status=%d", rec.Code)
	}
}

func TestHandleUpdateOne(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/indexes/breed/update", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var res models.UpdateResult
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.Index != "breed" || res.Added != 0 || res.Removed != 0 {
		t.Errorf("unchanged source should report empty delta: %+v", res)
	}
}

func TestHandleUpdateOne_FetchFailure(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/indexes/broken/update", nil)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status=%d", rec.Code)
	}
}

func TestHandleUpdateAll_IsolatesFailures(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/update", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	var report models.UpdateReport
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}
	if len(report.Results) != 2 {
		t.Fatalf("results=%d", len(report.Results))
	}
	failed := report.Failed()
	if len(failed) != 1 || failed[0].Index != "broken" {
		t.Errorf("failed=%+v", failed)
	}
}

func TestHandleIndexes(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/api/v1/indexes", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	var statuses []models.IndexStatus
	if err := json.NewDecoder(rec.Body).Decode(&statuses); err != nil {
		t.Fatal(err)
	}
	if len(statuses) != 2 {
		t.Fatalf("statuses=%d", len(statuses))
	}
	if statuses[0].Name != "breed" || statuses[0].State != "ready" || statuses[0].Size != 3 {
		t.Errorf("got %+v", statuses[0])
	}
	if statuses[1].Name != "broken" || statuses[1].State != "uninitialized" {
		t.Errorf("got %+v", statuses[1])
	}
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status=%d", rec.Code)
	}
}

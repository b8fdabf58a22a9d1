package fetch

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDedupe(t *testing.T) {
	got := Dedupe([]string{"beagle", "", "poodle", "beagle", "bulldog", "poodle"})
	want := []string{"beagle", "poodle", "bulldog"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSQLFetcher(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "source.db")
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`CREATE TABLE candidates (id INTEGER PRIMARY KEY, country TEXT)`); err != nil {
		t.Fatal(err)
	}
	for _, country := range []string{"France", "Japan", "France", ""} {
		if _, err := db.Exec(`INSERT INTO candidates (country) VALUES (?)`, country); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := db.Exec(`INSERT INTO candidates (country) VALUES (NULL)`); err != nil {
		t.Fatal(err)
	}
	_ = db.Close()

	f, err := NewSQLFetcher(dsn, "candidates", "country")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	values, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(values) != 2 {
		t.Errorf("got %v", values)
	}
}

func TestNewSQLFetcher_RejectsBadIdentifiers(t *testing.T) {
	if _, err := NewSQLFetcher("x.db", "candidates; DROP TABLE x", "country"); err == nil {
		t.Error("expected error for bad table name")
	}
	if _, err := NewSQLFetcher("x.db", "candidates", `"country"`); err == nil {
		t.Error("expected error for bad column name")
	}
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]string{"beagle", "bulldog", "beagle"})
	}))
	defer srv.Close()

	values, err := NewHTTPFetcher(srv.URL).Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"beagle", "bulldog"}
	if !reflect.DeepEqual(values, want) {
		t.Errorf("got %v, want %v", values, want)
	}
}

func TestHTTPFetcher_ErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := NewHTTPFetcher(srv.URL).Fetch(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestFileFetcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "breeds.txt")
	content := "# dog breeds\nbeagle\n\npoodle\nbeagle\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	values, err := NewFileFetcher(path).Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"beagle", "poodle"}
	if !reflect.DeepEqual(values, want) {
		t.Errorf("got %v, want %v", values, want)
	}
}

func TestFileFetcher_MissingFile(t *testing.T) {
	f := NewFileFetcher(filepath.Join(t.TempDir(), "absent.txt"))
	if _, err := f.Fetch(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestFactory(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "static", cfg: Config{Type: "static", Values: []string{"a"}}},
		{name: "file", cfg: Config{Type: "file", Path: "breeds.txt"}},
		{name: "http", cfg: Config{Type: "http", URL: "http://example.com/values"}},
		{name: "http without url", cfg: Config{Type: "http"}, wantErr: true},
		{name: "file without path", cfg: Config{Type: "file"}, wantErr: true},
		{name: "unknown", cfg: Config{Type: "ldap"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			if tt.wantErr != (err != nil) {
				t.Errorf("err=%v, wantErr=%v", err, tt.wantErr)
			}
		})
	}
}

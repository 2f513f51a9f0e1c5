package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCheckCatalogue_ok(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"data":{"animes":[]}}`))
	}))
	defer srv.Close()
	if err := CheckCatalogue(context.Background(), srv.URL); err != nil {
		t.Fatalf("CheckCatalogue: %v", err)
	}
	if gotPath != "/search" {
		t.Errorf("path = %q, want /search", gotPath)
	}
}

func TestCheckCatalogue_badStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	if err := CheckCatalogue(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for 502")
	}
}

func TestCheckCatalogue_unconfigured(t *testing.T) {
	if err := CheckCatalogue(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty base URL")
	}
}

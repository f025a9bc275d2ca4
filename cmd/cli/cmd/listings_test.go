package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func TestListingsList_Success(t *testing.T) {
	resetViper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/listings" || r.Method != http.MethodGet {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer pd_testkey" {
			t.Errorf("expected Authorization header, got %q", got)
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"listings": []map[string]interface{}{
				{
					"id":             "6f1a0b2c-0000-0000-0000-000000000001",
					"name":           "Baker St flat",
					"address":        "221B Baker Street, London",
					"attributes":     map[string]interface{}{},
					"discountPolicy": map[string]interface{}{},
					"createdAt":      "2026-06-01T10:00:00Z",
					"updatedAt":      "2026-06-01T10:00:00Z",
				},
			},
		})
	}))
	defer server.Close()

	viper.Set("url", server.URL)
	viper.Set("key", "pd_testkey")

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"listings", "list"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := stdout.String()
	if !strings.Contains(output, "Baker St flat") {
		t.Errorf("expected listing name in output, got: %s", output)
	}
	if !strings.Contains(output, "6f1a0b2c") {
		t.Errorf("expected listing ID in output, got: %s", output)
	}
}

func TestListingsList_Empty(t *testing.T) {
	resetViper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"listings":[]}`))
	}))
	defer server.Close()

	viper.Set("url", server.URL)
	viper.Set("key", "pd_testkey")

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"listings", "list"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(stdout.String(), "No saved listings") {
		t.Errorf("expected empty message, got: %s", stdout.String())
	}
}

func TestListingsList_MissingKey(t *testing.T) {
	resetViper()

	viper.Set("url", "http://localhost:6161")
	viper.Set("key", "")

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"listings", "list"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(stdout.String(), "API key not found") {
		t.Errorf("expected key error message, got: %s", stdout.String())
	}
}

func TestListingsCreate_Success(t *testing.T) {
	resetViper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/listings" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}

		var reqBody map[string]interface{}
		json.NewDecoder(r.Body).Decode(&reqBody)
		if reqBody["name"] != "Baker St flat" {
			t.Errorf("expected name in request body, got %v", reqBody["name"])
		}

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":             "6f1a0b2c-0000-0000-0000-000000000002",
			"name":           "Baker St flat",
			"address":        "221B Baker Street, London",
			"attributes":     map[string]interface{}{},
			"discountPolicy": map[string]interface{}{},
			"createdAt":      "2026-06-01T10:00:00Z",
			"updatedAt":      "2026-06-01T10:00:00Z",
		})
	}))
	defer server.Close()

	viper.Set("url", server.URL)
	viper.Set("key", "pd_testkey")

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"listings", "create", "--name", "Baker St flat", "--address", "221B Baker Street, London"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := stdout.String()
	if !strings.Contains(output, "Listing saved") {
		t.Errorf("expected success message, got: %s", output)
	}
}

func TestListingsCreate_MissingName(t *testing.T) {
	resetViper()

	listingsCreateCmd.Flags().Set("name", "")
	listingsCreateCmd.Flags().Set("address", "")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called when validation fails")
	}))
	defer server.Close()

	viper.Set("url", server.URL)
	viper.Set("key", "pd_testkey")

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"listings", "create", "--address", "somewhere"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(stdout.String(), "--name is required") {
		t.Errorf("expected name required error, got: %s", stdout.String())
	}
}

func TestListingsRerun_Success(t *testing.T) {
	resetViper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/rerun") || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if !strings.Contains(r.URL.Path, "listing-42") {
			t.Errorf("expected listing-42 in rerun path, got %s", r.URL.Path)
		}

		var reqBody map[string]interface{}
		json.NewDecoder(r.Body).Decode(&reqBody)
		if reqBody["startDate"] != "2026-07-01" {
			t.Errorf("expected startDate in request body, got %v", reqBody["startDate"])
		}

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": "rep-rerun", "shareId": "rerunshare123456", "status": "queued"})
	}))
	defer server.Close()

	viper.Set("url", server.URL)
	viper.Set("key", "pd_testkey")

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"listings", "rerun", "listing-42", "--start", "2026-07-01", "--end", "2026-07-15"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := stdout.String()
	if !strings.Contains(output, "Report submitted") {
		t.Errorf("expected success message, got: %s", output)
	}
	if !strings.Contains(output, "rerunshare123456") {
		t.Errorf("expected share ID in output, got: %s", output)
	}
}

func TestListingsRerun_Forbidden(t *testing.T) {
	resetViper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"Listing not found"}`))
	}))
	defer server.Close()

	viper.Set("url", server.URL)
	viper.Set("key", "pd_testkey")

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"listings", "rerun", "someone-elses", "--start", "2026-07-01", "--end", "2026-07-15"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(stdout.String(), "Rerun failed (404)") {
		t.Errorf("expected 404 error in output, got: %s", stdout.String())
	}
}

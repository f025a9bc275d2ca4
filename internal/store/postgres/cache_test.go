package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestLookup_Hit(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	key := "00c0ffee00c0ffee00c0ffee00c0ffee"
	now := time.Now()

	mock.ExpectQuery(`FROM pricing_cache`).
		WithArgs(key).
		WillReturnRows(sqlmock.NewRows([]string{"cache_key", "summary", "calendar", "meta", "expires_at", "created_at"}).
			AddRow(key, []byte(`{"avgNightlyRate":150}`), []byte(`[]`), []byte(`{}`), now.Add(time.Hour), now))

	e, err := s.Lookup(context.Background(), key)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if e == nil {
		t.Fatal("expected a cache hit, got nil")
	}
	if string(e.Summary) != `{"avgNightlyRate":150}` {
		t.Errorf("unexpected summary: %s", e.Summary)
	}
}

func TestLookup_MissReturnsNilNil(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	mock.ExpectQuery(`FROM pricing_cache`).
		WillReturnRows(sqlmock.NewRows([]string{"cache_key", "summary", "calendar", "meta", "expires_at", "created_at"}))

	e, err := s.Lookup(context.Background(), "deadbeefdeadbeefdeadbeefdeadbeef")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if e != nil {
		t.Errorf("expected nil entry on miss, got %+v", e)
	}
}

func TestLookup_QueryError(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	mock.ExpectQuery(`FROM pricing_cache`).
		WillReturnError(errors.New("connection reset"))

	_, err := s.Lookup(context.Background(), "deadbeefdeadbeefdeadbeefdeadbeef")
	if err == nil {
		t.Error("expected error, got nil")
	}
}

func TestStore_InsertsWithTTL(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	key := "feedface0feedface0feedface0feedf"
	summary := []byte(`{"avgNightlyRate":99}`)
	calendar := []byte(`[{"date":"2026-09-01","rate":99}]`)

	mock.ExpectExec(`INSERT INTO pricing_cache`).
		WithArgs(key, summary, calendar, []byte(`{}`), float64(86400)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := s.Store(context.Background(), key, summary, calendar, nil, 24*time.Hour)
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestIsUniqueViolation(t *testing.T) {
	unique := &pq.Error{Code: "23505", Constraint: "teams_team_name_league_id_key"}
	if !isUniqueViolation(unique) {
		t.Fatal("23505 must classify as unique violation")
	}
	if !isUniqueViolation(fmt.Errorf("upsert team: %w", unique)) {
		t.Fatal("wrapped 23505 must classify as unique violation")
	}
	if isUniqueViolation(&pq.Error{Code: "23503"}) {
		t.Fatal("foreign-key violation must not classify as unique violation")
	}
	if isUniqueViolation(errors.New("connection reset")) {
		t.Fatal("plain error must not classify as unique violation")
	}
	if isUniqueViolation(nil) {
		t.Fatal("nil must not classify as unique violation")
	}
}

func TestIsNotFound(t *testing.T) {
	if !isNotFound(fmt.Errorf("select owner: %w", sql.ErrNoRows)) {
		t.Fatal("wrapped ErrNoRows must classify as not found")
	}
	if isNotFound(errors.New("connection reset")) {
		t.Fatal("plain error must not classify as not found")
	}
}

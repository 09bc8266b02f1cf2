package db

import (
	"testing"
)

// openTestDB opens a migrated database in a temp directory.
func openTestDB(t *testing.T) *DB {
	t.Helper()

	database, err := OpenDB(t.TempDir() + "/archive_test.db")
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	migrationsFS, err := getMigrationsFS()
	if err != nil {
		t.Fatalf("Failed to get migrations filesystem: %v", err)
	}
	if err := database.MigrateUp(migrationsFS); err != nil {
		t.Fatalf("Failed to migrate database: %v", err)
	}
	return database
}

// TestPragmasApplied verifies that essential PRAGMAs are set on all databases
func TestPragmasApplied(t *testing.T) {
	database, err := OpenDB(t.TempDir() + "/test_pragmas.db")
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer database.Close()

	// Verify journal_mode is WAL
	var journalMode string
	err = database.QueryRow("PRAGMA journal_mode").Scan(&journalMode)
	if err != nil {
		t.Fatalf("Failed to query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("Expected journal_mode=wal, got %s", journalMode)
	}

	// Verify busy_timeout is 5000
	var busyTimeout int
	err = database.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout)
	if err != nil {
		t.Fatalf("Failed to query busy_timeout: %v", err)
	}
	if busyTimeout != 5000 {
		t.Errorf("Expected busy_timeout=5000, got %d", busyTimeout)
	}

	// Verify synchronous is NORMAL (1)
	var synchronous int
	err = database.QueryRow("PRAGMA synchronous").Scan(&synchronous)
	if err != nil {
		t.Fatalf("Failed to query synchronous: %v", err)
	}
	if synchronous != 1 { // 1 = NORMAL
		t.Errorf("Expected synchronous=1 (NORMAL), got %d", synchronous)
	}

	// Verify temp_store is MEMORY (2)
	var tempStore int
	err = database.QueryRow("PRAGMA temp_store").Scan(&tempStore)
	if err != nil {
		t.Fatalf("Failed to query temp_store: %v", err)
	}
	if tempStore != 2 { // 2 = MEMORY
		t.Errorf("Expected temp_store=2 (MEMORY), got %d", tempStore)
	}
}

// TestSessionLifecycle verifies a capture session can be started, listed and ended
func TestSessionLifecycle(t *testing.T) {
	database := openTestDB(t)

	if err := database.StartSession("session-a", "/dev/ttyUSB0", 9600); err != nil {
		t.Fatalf("Failed to start session: %v", err)
	}

	sessions, err := database.Sessions(10)
	if err != nil {
		t.Fatalf("Failed to list sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("Expected 1 session, got %d", len(sessions))
	}
	got := sessions[0]
	if got.SessionID != "session-a" {
		t.Errorf("Expected session_id=session-a, got %s", got.SessionID)
	}
	if got.Port != "/dev/ttyUSB0" {
		t.Errorf("Expected port=/dev/ttyUSB0, got %s", got.Port)
	}
	if got.BaudRate != 9600 {
		t.Errorf("Expected baud_rate=9600, got %d", got.BaudRate)
	}
	if got.StartedAt.IsZero() {
		t.Error("Expected started_at to be set")
	}
	if got.EndedAt != nil {
		t.Errorf("Expected ended_at to be unset, got %v", got.EndedAt)
	}

	if err := database.EndSession("session-a"); err != nil {
		t.Fatalf("Failed to end session: %v", err)
	}
	sessions, err = database.Sessions(10)
	if err != nil {
		t.Fatalf("Failed to list sessions after ending: %v", err)
	}
	if sessions[0].EndedAt == nil {
		t.Error("Expected ended_at to be set after EndSession")
	}
}

// TestLatestSessionID verifies the most recently started session wins
func TestLatestSessionID(t *testing.T) {
	database := openTestDB(t)

	id, err := database.LatestSessionID()
	if err != nil {
		t.Fatalf("Failed to query latest session on empty database: %v", err)
	}
	if id != "" {
		t.Errorf("Expected empty session id on empty database, got %q", id)
	}

	for _, session := range []string{"session-a", "session-b", "session-c"} {
		if err := database.StartSession(session, "/dev/ttyUSB0", 9600); err != nil {
			t.Fatalf("Failed to start session %s: %v", session, err)
		}
	}

	id, err = database.LatestSessionID()
	if err != nil {
		t.Fatalf("Failed to query latest session: %v", err)
	}
	if id != "session-c" {
		t.Errorf("Expected latest session session-c, got %s", id)
	}
}

// TestSessionsLimit verifies the session list honors its limit newest-first
func TestSessionsLimit(t *testing.T) {
	database := openTestDB(t)

	for _, session := range []string{"session-a", "session-b", "session-c"} {
		if err := database.StartSession(session, "/dev/pts/5", 115200); err != nil {
			t.Fatalf("Failed to start session %s: %v", session, err)
		}
	}

	sessions, err := database.Sessions(2)
	if err != nil {
		t.Fatalf("Failed to list sessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("Expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].SessionID != "session-c" || sessions[1].SessionID != "session-b" {
		t.Errorf("Expected newest-first [session-c session-b], got [%s %s]",
			sessions[0].SessionID, sessions[1].SessionID)
	}
}

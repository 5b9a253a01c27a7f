package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"draw-relay/internal/models"
)

func testStrokes() []models.Stroke {
	return []models.Stroke{
		{{X: 0, Y: 0, Pressure: 0.5}, {X: 10, Y: 5, Pressure: 0.8}},
		{{X: 3, Y: 3, Pressure: 0.2}},
	}
}

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	return s
}

func TestCreateVisibleInSnapshot(t *testing.T) {
	s := openStore(t)

	strokes := testStrokes()
	sub, err := s.Create(strokes)
	if err != nil {
		t.Fatalf("Failed to create submission: %v", err)
	}
	if sub.ID == 0 {
		t.Error("Expected a nonzero id")
	}
	if sub.Approved != models.ApprovalUnset {
		t.Errorf("Expected unset approval, got %q", sub.Approved)
	}

	snap := s.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("Expected 1 submission in snapshot, got %d", len(snap))
	}
	if !reflect.DeepEqual(snap[0].Strokes, strokes) {
		t.Errorf("Snapshot strokes differ from input: %+v vs %+v", snap[0].Strokes, strokes)
	}

	// Durable record must exist and round-trip.
	data, err := os.ReadFile(s.path(sub.ID))
	if err != nil {
		t.Fatalf("Expected a durable record: %v", err)
	}
	var onDisk models.Submission
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("Durable record is malformed: %v", err)
	}
	if !reflect.DeepEqual(onDisk.Strokes, strokes) {
		t.Error("On-disk strokes differ from input")
	}
}

func TestCreateBumpsCollidingID(t *testing.T) {
	s := openStore(t)
	frozen := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return frozen }

	first, err := s.Create(testStrokes())
	if err != nil {
		t.Fatalf("Failed to create first submission: %v", err)
	}
	second, err := s.Create(testStrokes())
	if err != nil {
		t.Fatalf("Failed to create second submission: %v", err)
	}

	if first.ID == second.ID {
		t.Fatalf("Expected distinct ids for same-instant creates, both got %d", first.ID)
	}
	if len(s.Snapshot()) != 2 {
		t.Errorf("Expected 2 cached submissions, got %d", len(s.Snapshot()))
	}
	if _, err := os.Stat(s.path(first.ID)); err != nil {
		t.Errorf("First record missing: %v", err)
	}
	if _, err := os.Stat(s.path(second.ID)); err != nil {
		t.Errorf("Second record missing: %v", err)
	}
}

func TestSetApprovalIdempotent(t *testing.T) {
	s := openStore(t)
	sub, err := s.Create(testStrokes())
	if err != nil {
		t.Fatalf("Failed to create submission: %v", err)
	}

	first, err := s.SetApproval(sub.ID, models.ApprovalApproved)
	if err != nil {
		t.Fatalf("First approval failed: %v", err)
	}
	afterFirst, err := os.ReadFile(s.path(sub.ID))
	if err != nil {
		t.Fatalf("Failed to read record: %v", err)
	}

	second, err := s.SetApproval(sub.ID, models.ApprovalApproved)
	if err != nil {
		t.Fatalf("Second approval failed: %v", err)
	}
	afterSecond, err := os.ReadFile(s.path(sub.ID))
	if err != nil {
		t.Fatalf("Failed to read record: %v", err)
	}

	if first.Approved != models.ApprovalApproved || second.Approved != models.ApprovalApproved {
		t.Errorf("Expected approved both times, got %q then %q", first.Approved, second.Approved)
	}
	if string(afterFirst) != string(afterSecond) {
		t.Error("Durable record changed between identical approvals")
	}
}

func TestSetApprovalReversible(t *testing.T) {
	s := openStore(t)
	sub, err := s.Create(testStrokes())
	if err != nil {
		t.Fatalf("Failed to create submission: %v", err)
	}

	transitions := []models.Approval{
		models.ApprovalApproved,
		models.ApprovalDenied,
		models.ApprovalApproved,
	}
	for _, value := range transitions {
		updated, err := s.SetApproval(sub.ID, value)
		if err != nil {
			t.Fatalf("Transition to %q failed: %v", value, err)
		}
		if updated.Approved != value {
			t.Errorf("Expected %q, got %q", value, updated.Approved)
		}
	}

	snap := s.Snapshot()
	if len(snap) != 1 || snap[0].Approved != models.ApprovalApproved {
		t.Errorf("Cache not updated by identity: %+v", snap)
	}
}

func TestSetApprovalUnknownID(t *testing.T) {
	s := openStore(t)

	_, err := s.SetApproval(12345, models.ApprovalApproved)
	if err != ErrNotFound {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	// No disk write may happen for an unknown id.
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		t.Fatalf("Failed to read data dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected no record files, found %d", len(entries))
	}
}

func TestDeleteAllThenCreate(t *testing.T) {
	s := openStore(t)
	for i := 0; i < 3; i++ {
		if _, err := s.Create(testStrokes()); err != nil {
			t.Fatalf("Failed to create submission: %v", err)
		}
	}

	s.DeleteAll()
	if len(s.Snapshot()) != 0 {
		t.Fatalf("Expected empty snapshot after deleteAll, got %d", len(s.Snapshot()))
	}
	entries, _ := os.ReadDir(s.dir)
	if len(entries) != 0 {
		t.Fatalf("Expected empty data dir after deleteAll, found %d files", len(entries))
	}

	sub, err := s.Create(testStrokes())
	if err != nil {
		t.Fatalf("Create after deleteAll failed: %v", err)
	}
	snap := s.Snapshot()
	if len(snap) != 1 || snap[0].ID != sub.ID {
		t.Errorf("New submission not visible after deleteAll: %+v", snap)
	}
}

func TestOpenSkipsMalformedRecord(t *testing.T) {
	dir := t.TempDir()
	good := models.Submission{ID: 100, CreatedAt: time.Now(), Strokes: testStrokes()}
	data, _ := json.Marshal(good)
	if err := os.WriteFile(filepath.Join(dir, "100.json"), data, 0o644); err != nil {
		t.Fatalf("Failed to seed record: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "101.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("Failed to seed corrupt record: %v", err)
	}

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open must tolerate corrupt records: %v", err)
	}
	snap := s.Snapshot()
	if len(snap) != 1 || snap[0].ID != 100 {
		t.Errorf("Expected exactly the parseable record, got %+v", snap)
	}
}

// A snapshot taken before a mutation must stay safe to iterate while the
// mutation runs, and must not grow when records are created afterward.
func TestSnapshotIsolatedFromConcurrentMutation(t *testing.T) {
	s := openStore(t)
	sub, err := s.Create(testStrokes())
	if err != nil {
		t.Fatalf("Failed to create submission: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		values := []models.Approval{models.ApprovalApproved, models.ApprovalDenied}
		for i := 0; i < 100; i++ {
			if _, err := s.SetApproval(sub.ID, values[i%2]); err != nil {
				t.Errorf("Approval failed mid-iteration: %v", err)
				return
			}
		}
	}()

	for i := 0; i < 100; i++ {
		for _, rec := range s.Snapshot() {
			if rec.ID != sub.ID {
				t.Errorf("Unexpected record %d in snapshot", rec.ID)
			}
		}
	}
	<-done

	before := s.Snapshot()
	if _, err := s.Create(testStrokes()); err != nil {
		t.Fatalf("Failed to create submission: %v", err)
	}
	if len(before) != 1 {
		t.Errorf("Earlier snapshot grew after a later create: %d records", len(before))
	}
	if len(s.Snapshot()) != 2 {
		t.Errorf("Expected 2 records in a fresh snapshot, got %d", len(s.Snapshot()))
	}
}

// When the data directory disappears out from under the store, Create must
// fail rather than loop in the id-collision probe or leave a phantom cache
// entry.
func TestCreateFailsWhenDataDirUnavailable(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}

	// Replace the directory with a plain file: stats under it now fail
	// with an error that is not ENOENT.
	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("Failed to remove data dir: %v", err)
	}
	if err := os.WriteFile(dir, []byte("in the way"), 0o644); err != nil {
		t.Fatalf("Failed to shadow data dir: %v", err)
	}

	if _, err := s.Create(testStrokes()); err == nil {
		t.Fatal("Expected Create to fail without a data directory")
	}
	if snap := s.Snapshot(); len(snap) != 0 {
		t.Errorf("Failed create must not be cached: %+v", snap)
	}
}

// A record can exist on disk without being cached, either because it
// predates the process or because it raced a deleteAll. SetApproval acts
// on the disk record and surfaces it.
func TestSetApprovalAdoptsUncachedRecord(t *testing.T) {
	s := openStore(t)

	orphan := models.Submission{ID: 555, CreatedAt: time.Now(), Strokes: testStrokes()}
	data, _ := json.Marshal(orphan)
	if err := os.WriteFile(s.path(orphan.ID), data, 0o644); err != nil {
		t.Fatalf("Failed to write orphan record: %v", err)
	}

	updated, err := s.SetApproval(orphan.ID, models.ApprovalDenied)
	if err != nil {
		t.Fatalf("Expected approval of on-disk record to succeed: %v", err)
	}
	if updated.Approved != models.ApprovalDenied {
		t.Errorf("Expected denied, got %q", updated.Approved)
	}

	snap := s.Snapshot()
	if len(snap) != 1 || snap[0].ID != orphan.ID {
		t.Errorf("Expected the record to become visible, got %+v", snap)
	}
}

// deleteAll racing an in-flight approval is documented best-effort
// behavior: whichever write lands last wins. Here the approval's write
// lands after the wipe and recreates the record.
func TestDeleteAllApprovalRaceBoundary(t *testing.T) {
	s := openStore(t)
	sub, err := s.Create(testStrokes())
	if err != nil {
		t.Fatalf("Failed to create submission: %v", err)
	}

	s.DeleteAll()

	if _, err := s.SetApproval(sub.ID, models.ApprovalApproved); err != ErrNotFound {
		t.Fatalf("Approval after completed deleteAll must be NotFound, got %v", err)
	}

	// The losing interleaving: the approval re-read happened before the
	// wipe, so its write recreates the file afterward.
	recreated := *sub
	recreated.Approved = models.ApprovalApproved
	if err := s.write(&recreated); err != nil {
		t.Fatalf("Failed to simulate in-flight write: %v", err)
	}

	adopted, err := s.SetApproval(sub.ID, models.ApprovalApproved)
	if err != nil {
		t.Fatalf("Recreated record must be actionable again: %v", err)
	}
	if adopted.ID != sub.ID {
		t.Errorf("Expected id %d, got %d", sub.ID, adopted.ID)
	}
}

package history

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, dbPath
}

func sampleRecord(fileName, status string, finishedAt time.Time) Record {
	return Record{
		SessionId:       "sess-1",
		FileId:          "f-" + fileName,
		FileName:        fileName,
		Size:            42,
		Direction:       "receive",
		PeerAlias:       "Fast Pear",
		PeerFingerprint: "peer-fp",
		Status:          status,
		FinishedAt:      finishedAt,
	}
}

func TestAddAndRecent(t *testing.T) {
	store, _ := openTestStore(t)

	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	for i, name := range []string{"a.txt", "b.txt", "c.txt"} {
		rec := sampleRecord(name, "completed", base.Add(time.Duration(i)*time.Minute))
		if err := store.Add(rec); err != nil {
			t.Fatalf("Add %s: %v", name, err)
		}
	}

	records, err := store.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records; want 3", len(records))
	}
	// newest first
	for i, want := range []string{"c.txt", "b.txt", "a.txt"} {
		if records[i].FileName != want {
			t.Errorf("records[%d] = %s; want %s", i, records[i].FileName, want)
		}
	}
	if records[0].PeerAlias != "Fast Pear" || records[0].Direction != "receive" {
		t.Errorf("record fields lost: %+v", records[0])
	}
}

func TestRecentHonorsLimit(t *testing.T) {
	store, _ := openTestStore(t)

	base := time.Now().Truncate(time.Second)
	for i := 0; i < 5; i++ {
		rec := sampleRecord("f.txt", "completed", base.Add(time.Duration(i)*time.Second))
		if err := store.Add(rec); err != nil {
			t.Fatal(err)
		}
	}

	records, err := store.Recent(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Errorf("got %d records; want 2", len(records))
	}
}

func TestAddRejectsInvalidEnums(t *testing.T) {
	store, _ := openTestStore(t)

	rec := sampleRecord("a.txt", "exploded", time.Now())
	if err := store.Add(rec); err == nil {
		t.Error("unknown status must violate the schema")
	}

	rec = sampleRecord("a.txt", "completed", time.Now())
	rec.Direction = "sideways"
	if err := store.Add(rec); err == nil {
		t.Error("unknown direction must violate the schema")
	}
}

func TestReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")

	store, err := Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Add(sampleRecord("a.txt", "completed", time.Now())); err != nil {
		t.Fatal(err)
	}
	store.Close()

	// reopening replays no migrations and keeps existing rows
	store, err = Open(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()

	records, err := store.Recent(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Errorf("got %d records after reopen; want 1", len(records))
	}
}

func TestZeroFinishedAtDefaultsToNow(t *testing.T) {
	store, _ := openTestStore(t)

	rec := sampleRecord("a.txt", "completed", time.Time{})
	if err := store.Add(rec); err != nil {
		t.Fatal(err)
	}

	records, err := store.Recent(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].FinishedAt.IsZero() {
		t.Error("zero FinishedAt must be stamped at insert time")
	}
}

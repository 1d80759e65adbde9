package storage

import (
	"bytes"
	"testing"
)

func TestMemDBPutGetDelete(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	value, err := db.Get([]byte("missing"))
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if value != nil {
		t.Fatalf("missing key returned %v, want nil", value)
	}

	if err := db.Put([]byte("k"), []byte("v1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	value, err = db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(value, []byte("v1")) {
		t.Fatalf("value = %q, want v1", value)
	}

	if err := db.Put([]byte("k"), []byte("v2")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	value, _ = db.Get([]byte("k"))
	if !bytes.Equal(value, []byte("v2")) {
		t.Fatalf("value = %q, want v2", value)
	}

	if err := db.Delete([]byte("k")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	value, err = db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if value != nil {
		t.Fatalf("deleted key returned %v, want nil", value)
	}
}

func TestMemDBCopiesValues(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	original := []byte("payload")
	if err := db.Put([]byte("k"), original); err != nil {
		t.Fatalf("put: %v", err)
	}
	original[0] = 'X'

	stored, _ := db.Get([]byte("k"))
	if !bytes.Equal(stored, []byte("payload")) {
		t.Fatalf("stored value mutated through caller slice: %q", stored)
	}

	stored[0] = 'Y'
	again, _ := db.Get([]byte("k"))
	if !bytes.Equal(again, []byte("payload")) {
		t.Fatalf("stored value mutated through returned slice: %q", again)
	}
}

func TestLevelDBRoundTrip(t *testing.T) {
	dir := t.TempDir()
	db, err := NewLevelDB(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	value, err := db.Get([]byte("missing"))
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if value != nil {
		t.Fatalf("missing key returned %v, want nil", value)
	}

	if err := db.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	value, err = db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(value, []byte("v")) {
		t.Fatalf("value = %q, want v", value)
	}

	if err := db.Delete([]byte("k")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	value, _ = db.Get([]byte("k"))
	if value != nil {
		t.Fatalf("deleted key returned %v, want nil", value)
	}
}

package viewledger

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "views.json")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	c := s.Client("client-1")
	if c.Contains("p1") {
		t.Error("empty ledger claims p1")
	}
	if err := c.Add("p1"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := c.Add("p2"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !c.Contains("p1") || !c.Contains("p2") {
		t.Error("marks not visible after Add")
	}

	other := s.Client("client-2")
	if other.Contains("p1") {
		t.Error("client-2 sees client-1 marks")
	}

	// Reopen from disk.
	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if !reopened.Client("client-1").Contains("p1") {
		t.Error("mark lost across reopen")
	}
	if reopened.Client("client-2").Contains("p1") {
		t.Error("client scoping lost across reopen")
	}
}

func TestOpenMissingFile(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.Client("c").Contains("p1") {
		t.Error("fresh store claims p1")
	}
}

func TestOpenCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "views.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); err == nil {
		t.Fatal("want parse error")
	}
}

func TestAddIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "views.json")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	c := s.Client("c")
	if err := c.Add("p1"); err != nil {
		t.Fatal(err)
	}
	if err := c.Add("p1"); err != nil {
		t.Fatal(err)
	}
	if !c.Contains("p1") {
		t.Error("mark lost")
	}
}

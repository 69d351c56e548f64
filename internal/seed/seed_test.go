package seed

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreMissing(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "candle", "seed"))

	_, ok, err := s.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("missing file should not be ok")
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candle", "seed")
	s := NewFileStore(path)

	if err := s.Save(0xdeadbeefcafef00d); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := s.Load()
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got != 0xdeadbeefcafef00d {
		t.Errorf("expected seed back, got %#x", got)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temporary file left behind: %v", err)
	}
}

func TestFileStoreShortFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed")
	if err := os.WriteFile(path, []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatal(err)
	}

	_, ok, err := NewFileStore(path).Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("short file should not be ok")
	}
}

func TestBootAdvancesSeed(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "seed"))
	if err := s.Save(42); err != nil {
		t.Fatal(err)
	}

	first, err := Boot(s)
	if err != nil {
		t.Fatalf("boot: %v", err)
	}
	if first != 42 {
		t.Errorf("expected stored seed 42, got %d", first)
	}

	second, err := Boot(s)
	if err != nil {
		t.Fatalf("boot: %v", err)
	}
	if second != Next(42) {
		t.Errorf("expected successor %d, got %d", Next(42), second)
	}
	if second == first {
		t.Error("consecutive boots replayed the same seed")
	}
}

func TestBootColdStart(t *testing.T) {
	m := NewMemStore()

	seed, err := Boot(m)
	if err != nil {
		t.Fatalf("boot: %v", err)
	}
	stored, ok, _ := m.Load()
	if !ok {
		t.Fatal("boot should persist a successor")
	}
	if stored != Next(seed) {
		t.Errorf("expected stored %d, got %d", Next(seed), stored)
	}
}

func TestBootLoadError(t *testing.T) {
	m := NewMemStore()
	m.LoadError = errors.New("simulated error")

	_, err := Boot(m)
	if err == nil {
		t.Fatal("expected load error to surface")
	}
	if m.Saves != 1 {
		t.Errorf("expected a successor to be saved anyway, saves=%d", m.Saves)
	}
}

func TestBootSaveError(t *testing.T) {
	m := NewMemStore()
	m.SaveError = errors.New("read-only")

	if _, err := Boot(m); err == nil {
		t.Error("expected save error")
	}
}

func TestNextDistinct(t *testing.T) {
	seen := make(map[uint64]bool)
	s := uint64(0)
	for i := 0; i < 1000; i++ {
		s = Next(s)
		if seen[s] {
			t.Fatalf("cycle after %d steps", i)
		}
		seen[s] = true
	}
}

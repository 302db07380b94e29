package organize

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
)

func TestLocalSinkStore(t *testing.T) {
	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "transactions.csv"), []byte("a,b\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(src, "attachments"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "attachments", "hoadon.pdf"), []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}

	root := t.TempDir()
	sink := NewLocalSink(root, log.Default())

	summary, err := sink.Store(context.Background(), Bundle{
		Entity: "Công ty ABC",
		Period: "2025-03-01_to_2025-03-31",
		Dir:    src,
	})
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if summary.Stored != 2 || summary.Failed != 0 {
		t.Errorf("stored/failed = %d/%d, want 2/0", summary.Stored, summary.Failed)
	}

	copied := filepath.Join(root, "Công ty ABC", "2025-03-01_to_2025-03-31", "attachments", "hoadon.pdf")
	data, err := os.ReadFile(copied)
	if err != nil {
		t.Fatalf("copied file missing: %v", err)
	}
	if string(data) != "%PDF-1.4" {
		t.Errorf("copied content = %q", data)
	}
}

func TestLocalSinkSanitizesEntity(t *testing.T) {
	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "f.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	root := t.TempDir()
	sink := NewLocalSink(root, log.Default())

	summary, err := sink.Store(context.Background(), Bundle{
		Entity: `A/B:C`,
		Period: "p",
		Dir:    src,
	})
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "A_B_C", "p", "f.txt")); err != nil {
		t.Errorf("sanitized path missing: %v", err)
	}
	if summary.Destination != filepath.Join(root, "A_B_C", "p") {
		t.Errorf("destination = %q", summary.Destination)
	}
}

func TestLocalSinkMissingBundle(t *testing.T) {
	sink := NewLocalSink(t.TempDir(), log.Default())
	_, err := sink.Store(context.Background(), Bundle{Entity: "A", Period: "p", Dir: "/does/not/exist"})
	if err == nil {
		t.Fatal("expected error for missing bundle dir")
	}
}

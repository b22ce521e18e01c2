package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestManagerBasicUsage(t *testing.T) {
	manager := NewManager()
	defer manager.Close()

	logFile := filepath.Join(t.TempDir(), "events.log")

	sinks := map[string]map[string]interface{}{
		"audit": {
			"type": "file",
			"path": logFile,
		},
	}

	if err := manager.UpdateSinks(sinks); err != nil {
		t.Fatalf("failed to update sinks: %v", err)
	}

	if !manager.HasSinks() {
		t.Error("manager should have sinks")
	}
	if manager.SinkCount() != 1 {
		t.Errorf("expected 1 sink, got %d", manager.SinkCount())
	}

	manager.Write(&Event{
		Data: map[string]interface{}{
			"batch_id": "01JF0000000000000000000000",
			"status":   "succeeded",
			"packages": []string{"pkg-a"},
		},
	})

	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("failed to read event log file: %v", err)
	}
	if !strings.Contains(string(content), "pkg-a") {
		t.Errorf("event log missing written event: %q", string(content))
	}
}

func TestUpdateSinks_RemovesDroppedSinks(t *testing.T) {
	manager := NewManager()
	defer manager.Close()

	dir := t.TempDir()

	sinks := map[string]map[string]interface{}{
		"one": {"type": "file", "path": filepath.Join(dir, "one.log")},
		"two": {"type": "file", "path": filepath.Join(dir, "two.log")},
	}
	if err := manager.UpdateSinks(sinks); err != nil {
		t.Fatalf("failed to update sinks: %v", err)
	}
	if manager.SinkCount() != 2 {
		t.Fatalf("expected 2 sinks, got %d", manager.SinkCount())
	}

	delete(sinks, "two")
	if err := manager.UpdateSinks(sinks); err != nil {
		t.Fatalf("failed to update sinks: %v", err)
	}
	if manager.SinkCount() != 1 {
		t.Errorf("expected 1 sink after removal, got %d", manager.SinkCount())
	}
}

func TestUpdateSinks_UnchangedConfigKeepsSink(t *testing.T) {
	manager := NewManager()
	defer manager.Close()

	logFile := filepath.Join(t.TempDir(), "events.log")
	sinks := map[string]map[string]interface{}{
		"audit": {"type": "file", "path": logFile},
	}

	if err := manager.UpdateSinks(sinks); err != nil {
		t.Fatalf("failed to update sinks: %v", err)
	}

	manager.mu.RLock()
	before := manager.sinks["audit"]
	manager.mu.RUnlock()

	if err := manager.UpdateSinks(sinks); err != nil {
		t.Fatalf("failed to re-apply sinks: %v", err)
	}

	manager.mu.RLock()
	after := manager.sinks["audit"]
	manager.mu.RUnlock()

	if before != after {
		t.Error("sink with unchanged config should not be recreated")
	}
}

func TestUpdateSinks_InvalidSinkSkipped(t *testing.T) {
	manager := NewManager()
	defer manager.Close()

	sinks := map[string]map[string]interface{}{
		"broken": {"type": "nope"},
	}

	// Unknown sink types are skipped, not fatal
	if err := manager.UpdateSinks(sinks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if manager.HasSinks() {
		t.Error("broken sink should not have been created")
	}
}

func TestCreateSink_MissingType(t *testing.T) {
	_, err := CreateSink("x", map[string]interface{}{"path": "/tmp/x.log"})
	if err == nil {
		t.Fatal("expected error for sink config without type")
	}
}

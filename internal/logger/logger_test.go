package logger

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestNewWritesJSONLines(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	log, err := New(dir, "info", false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Infow("spin granted", "email", "ada@example.com")
	log.Debugw("below level")
	_ = log.Sync()

	f, err := os.Open(filepath.Join(dir, "spinwheel.log"))
	if err != nil {
		t.Fatalf("open log file: %v", err)
	}
	defer f.Close()

	var msgs []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var line map[string]any
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			t.Fatalf("line %q is not JSON: %v", sc.Text(), err)
		}
		if line["level"] != "info" {
			t.Fatalf("level = %v, want info", line["level"])
		}
		msgs = append(msgs, line["msg"].(string))
		if line["msg"] == "spin granted" && line["email"] != "ada@example.com" {
			t.Fatalf("fields not encoded: %v", line)
		}
	}
	if len(msgs) != 2 || msgs[0] != "logger online" || msgs[1] != "spin granted" {
		t.Fatalf("messages = %v", msgs)
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New(t.TempDir(), "loud", false); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

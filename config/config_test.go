package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.SostenutoController != 66 || cfg.Threshold != 64 || cfg.ReferenceChannel != 1 {
		t.Fatalf("unexpected pedal defaults: %+v", cfg)
	}
	if cfg.LogLineCap != 500 || cfg.DrainHz != 30 || cfg.OffloadQueue != 256 || cfg.LogQueue != 512 {
		t.Fatalf("unexpected queue defaults: %+v", cfg)
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Threshold = 0
	cfg.ReferenceChannel = 17
	cfg.LogQueue = 0
	cfg.OffloadPolicy = "sometimes"

	err := cfg.Validate()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Problems) != 4 {
		t.Fatalf("expected 4 problems, got %d: %v", len(verr.Problems), verr.Problems)
	}
	if !strings.Contains(err.Error(), "referenceChannel 17") {
		t.Fatalf("missing channel problem in %q", err.Error())
	}
}

func TestWorkerCountFloor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 1
	if got := cfg.WorkerCount(); got != 2 {
		t.Fatalf("expected floor of 2 workers, got %d", got)
	}
	cfg.Workers = 0
	if got := cfg.WorkerCount(); got < 2 {
		t.Fatalf("auto worker count below floor: %d", got)
	}
}

func TestDrainInterval(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DrainHz = 20
	if got := cfg.DrainInterval(); got != 50*time.Millisecond {
		t.Fatalf("expected 50ms, got %v", got)
	}
}

func TestLoadFileMissingReturnsDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLineCap != DefaultConfig().LogLineCap {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadFileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"logLineCap": 99, "shutdownTimeout": "500ms", "offloadPolicy": "drop-oldest", "ports": {"output": "IAC"}}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLineCap != 99 {
		t.Fatalf("expected cap 99, got %d", cfg.LogLineCap)
	}
	if time.Duration(cfg.ShutdownTimeout) != 500*time.Millisecond {
		t.Fatalf("expected 500ms, got %v", time.Duration(cfg.ShutdownTimeout))
	}
	if cfg.OffloadPolicy != DropOldest {
		t.Fatalf("expected drop-oldest, got %q", cfg.OffloadPolicy)
	}
	if cfg.Ports.Output != "IAC" || cfg.Ports.SerialBaud != 31250 {
		t.Fatalf("unexpected ports: %+v", cfg.Ports)
	}
	if cfg.SostenutoController != 66 {
		t.Fatalf("default lost: %d", cfg.SostenutoController)
	}
}

func TestLoadFileRejectsBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"shutdownTimeout": 5}`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for numeric duration")
	}
}

package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRun_SingleProcess(t *testing.T) {
	// procs=0 keeps everything in this process: the parent is worker zero
	path := filepath.Join(t.TempDir(), "smoke.seg")
	if err := run(0, 2000, 50, path); err != nil {
		t.Fatalf("run: %v", err)
	}

	// the segment file is cleaned up on the way out
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("segment file still present after run: %v", err)
	}
}

func TestRunWorker_MissingSegment(t *testing.T) {
	if err := runWorker("", 10, 10); err == nil {
		t.Fatal("expected error without -segment")
	}
	if err := runWorker(filepath.Join(t.TempDir(), "nope.seg"), 10, 10); err == nil {
		t.Fatal("expected error for missing segment file")
	}
}

//go:build unix

package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"tvetl/internal/config"
	"tvetl/internal/pipeline"
)

func TestAcquireLock(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run", "tvetl.lock")
	release, err := acquireLock(path)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if _, err := acquireLock(path); err == nil {
		t.Fatal("second acquire while held: want error")
	}
	release()

	again, err := acquireLock(path)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	again()
}

func TestRunOnce_LockHeld(t *testing.T) {
	t.Parallel()

	p := config.Default()
	p.Runtime.LockFile = filepath.Join(t.TempDir(), "tvetl.lock")
	release, err := acquireLock(p.Runtime.LockFile)
	if err != nil {
		t.Fatalf("acquireLock: %v", err)
	}
	defer release()

	err = runOnce(context.Background(), p, pipeline.StageQuery, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "another run holds") {
		t.Fatalf("runOnce with held lock = %v, want lock error", err)
	}
}

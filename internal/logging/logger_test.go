package logging

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestDisabledByDefault(t *testing.T) {
	if err := Initialize(Settings{DebugMode: false}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	l := Get(CategorySandbox)
	// Must not panic and must not create files.
	l.Info("ignored")
	l.Error("ignored too")
}

func TestWritesToCategoryFile(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(Settings{DebugMode: true, Dir: dir, Level: "debug"}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() { Initialize(Settings{}) })

	Get(CategorySkills).Info("skill loaded: %s", "presentation")

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	var found string
	for _, e := range entries {
		if strings.Contains(e.Name(), string(CategorySkills)) {
			found = e.Name()
		}
	}
	if found == "" {
		t.Fatalf("no skills log file in %v", entries)
	}
	data, err := os.ReadFile(filepath.Join(dir, found))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(string(data), "skill loaded: presentation") {
		t.Errorf("log file missing message, got: %s", data)
	}
}

func TestLevelFilter(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(Settings{DebugMode: true, Dir: dir, Level: "error"}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() { Initialize(Settings{}) })

	l := Get(CategoryBuilder)
	l.Debug("dropped")
	l.Info("dropped")
	l.Error("kept")

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if !strings.Contains(e.Name(), string(CategoryBuilder)) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			t.Fatalf("ReadFile failed: %v", err)
		}
		if strings.Contains(string(data), "dropped") {
			t.Errorf("below-level message written: %s", data)
		}
		if !strings.Contains(string(data), "kept") {
			t.Errorf("error message not written: %s", data)
		}
	}
}

// Loggers obtained before a re-Initialize keep writing while the settings
// change underneath them; this must be race-free (run with -race).
func TestConcurrentReinitialize(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(Settings{DebugMode: true, Dir: dir, Level: "debug"}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() { Initialize(Settings{}) })

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				Get(CategoryWorkspace).Info("message %d", j)
			}
		}()
	}
	for _, level := range []string{"warn", "info", "debug", "error", "info"} {
		if err := Initialize(Settings{DebugMode: true, Dir: dir, Level: level}); err != nil {
			t.Fatalf("re-Initialize failed: %v", err)
		}
	}
	wg.Wait()
}

func TestCategoryFilter(t *testing.T) {
	dir := t.TempDir()
	err := Initialize(Settings{
		DebugMode:  true,
		Dir:        dir,
		Level:      "debug",
		Categories: map[string]bool{"sandbox": false},
	})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() { Initialize(Settings{}) })

	if IsCategoryEnabled(CategorySandbox) {
		t.Error("sandbox category should be disabled")
	}
	if !IsCategoryEnabled(CategoryWorkspace) {
		t.Error("workspace category should default to enabled")
	}
}

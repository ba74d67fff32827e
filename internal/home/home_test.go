package home

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew_DefaultsToUserHome(t *testing.T) {
	userHome := t.TempDir()
	t.Setenv("HOME", userHome)

	dir, err := New("")
	if err != nil {
		t.Fatalf("New(\"\") error = %v", err)
	}
	if want := filepath.Join(userHome, DefaultDirName); dir.Path() != want {
		t.Errorf("Path() = %s, want %s", dir.Path(), want)
	}
}

func TestLayout(t *testing.T) {
	root := filepath.Join(t.TempDir(), "clinex")
	dir, err := New(root)
	if err != nil {
		t.Fatal(err)
	}

	tests := map[string]struct{ got, want string }{
		"config":   {dir.ConfigPath(), filepath.Join(root, "config.yaml")},
		"logs":     {dir.LogsPath(), filepath.Join(root, "logs")},
		"log file": {dir.LogFilePath(), filepath.Join(root, "logs", "clinex.log")},
		"results":  {dir.ResultsPath(), filepath.Join(root, "results")},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %s, want %s", tt.got, tt.want)
			}
		})
	}
}

func TestEnsureExists(t *testing.T) {
	dir, _ := New(filepath.Join(t.TempDir(), "nested", "clinex"))
	if dir.Exists() || dir.ConfigExists() {
		t.Fatal("fresh home should not exist")
	}

	// Twice, to check it is idempotent.
	for i := 0; i < 2; i++ {
		if err := dir.EnsureExists(); err != nil {
			t.Fatalf("EnsureExists() #%d error = %v", i+1, err)
		}
	}
	if info, err := os.Stat(dir.LogsPath()); err != nil || !info.IsDir() {
		t.Fatalf("logs directory missing: %v", err)
	}
	if !dir.Exists() {
		t.Error("Exists() = false after EnsureExists")
	}
	if dir.ConfigExists() {
		t.Error("EnsureExists must not write a config")
	}

	if err := os.WriteFile(dir.ConfigPath(), []byte("eval:\n  match: exact\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !dir.ConfigExists() {
		t.Error("ConfigExists() = false after writing config.yaml")
	}
}

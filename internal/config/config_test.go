package config

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jackzampolin/clinex/internal/match"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return configFile
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LLM.APIKey != "${OPENAI_API_KEY}" {
		t.Errorf("expected OpenAI API key placeholder, got %s", cfg.LLM.APIKey)
	}
	p, err := cfg.Eval.Policy()
	if err != nil {
		t.Fatalf("default policy: %v", err)
	}
	if p != match.DefaultPolicy() {
		t.Errorf("expected default match policy, got %s", p)
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Setenv("CLINEX_TEST_KEY", "secret123")

	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"${CLINEX_TEST_KEY}", "secret123"},
		{"Bearer ${CLINEX_TEST_KEY}", "Bearer secret123"},
		{"${CLINEX_DEFINITELY_UNSET}", ""},
		{"sk-literal", "sk-literal"},
	}
	for _, tt := range tests {
		if got := ResolveEnvVars(tt.in); got != tt.want {
			t.Errorf("ResolveEnvVars(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if got := (LLMConfig{APIKey: "${CLINEX_TEST_KEY}"}).ResolvedAPIKey(); got != "secret123" {
		t.Errorf("ResolvedAPIKey() = %q", got)
	}
}

func TestLLMConfig_Durations(t *testing.T) {
	c := LLMConfig{RetryDelay: "500ms", Timeout: "bogus"}
	if got := c.RetryDelayDuration(); got != 500*time.Millisecond {
		t.Errorf("RetryDelayDuration() = %s", got)
	}
	if got := c.TimeoutDuration(); got != 2*time.Minute {
		t.Errorf("TimeoutDuration() = %s, want fallback", got)
	}
}

func TestEvalConfig_Policy(t *testing.T) {
	p, err := EvalConfig{Match: "exact"}.Policy()
	if err != nil || p.Mode != match.ModeExact {
		t.Errorf("Policy() = %v, %v", p, err)
	}
	if _, err := (EvalConfig{Match: "overlap", Threshold: 2}).Policy(); !errors.Is(err, match.ErrInvalidPolicy) {
		t.Errorf("expected ErrInvalidPolicy, got %v", err)
	}
}

func TestNewManager(t *testing.T) {
	t.Run("loads from config file", func(t *testing.T) {
		configFile := writeConfig(t, `
llm:
  model: "test-model"
eval:
  match: exact
`)
		mgr, err := NewManager(configFile)
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}

		cfg := mgr.Get()
		if cfg.LLM.Model != "test-model" {
			t.Errorf("expected test-model, got %s", cfg.LLM.Model)
		}
		if cfg.Eval.Match != "exact" {
			t.Errorf("expected exact, got %s", cfg.Eval.Match)
		}
		// Unset keys keep their defaults
		if cfg.Log.Level != "info" || cfg.LLM.MaxRetries != 3 {
			t.Errorf("expected defaults to fill unset keys, got %+v", cfg)
		}
		if mgr.ConfigFile() != configFile {
			t.Errorf("ConfigFile() = %s", mgr.ConfigFile())
		}
	})

	t.Run("missing file uses defaults", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())

		mgr, err := NewManager("", t.TempDir())
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}
		if mgr.Get().LLM.Model != DefaultConfig().LLM.Model {
			t.Errorf("expected default model, got %s", mgr.Get().LLM.Model)
		}
		if mgr.ConfigFile() != "" {
			t.Errorf("expected no config file, got %s", mgr.ConfigFile())
		}
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("CLINEX_LLM_MODEL", "env-model")
		t.Setenv("CLINEX_EVAL_THRESHOLD", "0.5")

		mgr, err := NewManager(writeConfig(t, "llm:\n  model: file-model\n"))
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}
		cfg := mgr.Get()
		if cfg.LLM.Model != "env-model" {
			t.Errorf("expected env-model, got %s", cfg.LLM.Model)
		}
		if cfg.Eval.Threshold != 0.5 {
			t.Errorf("expected threshold 0.5, got %v", cfg.Eval.Threshold)
		}
	})

	t.Run("invalid file", func(t *testing.T) {
		if _, err := NewManager(writeConfig(t, "llm: [unclosed\n")); err == nil {
			t.Fatal("expected error for invalid YAML")
		}
	})
}

// TestManager_Reload edits the eval section of a watched file and checks that
// every callback sees the new policy while readers keep getting a consistent
// config.
func TestManager_Reload(t *testing.T) {
	configFile := writeConfig(t, "eval:\n  match: overlap\n  threshold: 0.25\n")

	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	if p, _ := mgr.Get().Eval.Policy(); p.Threshold != 0.25 {
		t.Fatalf("initial threshold = %v", p.Threshold)
	}

	var first, second atomic.Pointer[Config]
	mgr.OnChange(func(cfg *Config) { first.Store(cfg) })
	mgr.OnChange(func(cfg *Config) { second.Store(cfg) })
	mgr.WatchConfig()

	stop := make(chan struct{})
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			select {
			case <-stop:
				return
			default:
			}
			if _, err := mgr.Get().Eval.Policy(); err != nil {
				t.Errorf("reader saw invalid policy: %v", err)
				return
			}
		}
	}()

	// Let fsnotify register the file before editing it.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(configFile, []byte("eval:\n  match: exact\n"), 0644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	// A rewrite may fire more than one event; wait for the final content.
	reloaded := func(p *atomic.Pointer[Config]) bool {
		c := p.Load()
		return c != nil && c.Eval.Match == "exact"
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !(reloaded(&first) && reloaded(&second)) {
		time.Sleep(25 * time.Millisecond)
	}
	close(stop)
	<-readerDone

	for name, got := range map[string]*Config{"first": first.Load(), "second": second.Load()} {
		if got == nil {
			t.Fatalf("%s callback was not invoked", name)
		}
		if got.Eval.Match != "exact" {
			t.Errorf("%s callback saw match %q, want exact", name, got.Eval.Match)
		}
	}
	if mgr.Get().Eval.Match != "exact" {
		t.Errorf("Get() still returns match %q", mgr.Get().Eval.Match)
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("written config is not YAML: %v", err)
	}
	if cfg.LLM.Model != DefaultConfig().LLM.Model || cfg.Log.MaxBackups != 3 {
		t.Errorf("unexpected written config %+v", cfg)
	}

	mgr, err := NewManager(path)
	if err != nil {
		t.Fatalf("written config does not load: %v", err)
	}
	if mgr.Get().Eval.Match != "overlap" {
		t.Errorf("expected overlap, got %s", mgr.Get().Eval.Match)
	}
}

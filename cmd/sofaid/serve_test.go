package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/sofai/sofaid/internal/config"
	"github.com/sofai/sofaid/internal/history"
	"github.com/sofai/sofaid/internal/inference"
)

func testConfig(t *testing.T, yaml string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	return cfg
}

func TestBuildStore(t *testing.T) {
	cfg := testConfig(t, "")
	store, err := buildStore(cfg)
	if err != nil {
		t.Fatalf("build store: %v", err)
	}
	if _, ok := store.(*history.MemoryStore); !ok {
		t.Errorf("store = %T, want *history.MemoryStore", store)
	}

	cfg = testConfig(t, "history:\n  backend: sqlite\n  path: "+t.TempDir()+"/h.db\n")
	store, err = buildStore(cfg)
	if err != nil {
		t.Fatalf("build sqlite store: %v", err)
	}
	if _, ok := store.(*history.DBStore); !ok {
		t.Errorf("store = %T, want *history.DBStore", store)
	}
}

func TestBuildChatService_DummyMode(t *testing.T) {
	cfg := testConfig(t, "skip_model_load: true\n")
	var out bytes.Buffer

	svc, runner, err := buildChatService(context.Background(), cfg, &out)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if runner != nil {
		t.Error("runner should be nil in dummy mode")
	}
	if !svc.Ready() {
		t.Error("service not ready")
	}

	reply, err := svc.Reply(context.Background(), "qwen", "hi", 0)
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if reply != "[dry-run reply] I received: hi" {
		t.Errorf("reply = %q", reply)
	}
}

func TestBuildChatService_RunnerDownIsFatal(t *testing.T) {
	cfg := testConfig(t, "runner:\n  url: http://127.0.0.1:1\n  timeout_seconds: 1\n")
	var out bytes.Buffer

	_, _, err := buildChatService(context.Background(), cfg, &out)
	if err == nil {
		t.Fatal("expected error with runner unreachable")
	}
	if !errors.Is(err, inference.ErrDependencyMissing) {
		t.Errorf("error = %v, want ErrDependencyMissing", err)
	}
}

func TestBuildBridge(t *testing.T) {
	cfg := testConfig(t, "skip_model_load: true\n")
	var out bytes.Buffer
	svc, _, err := buildChatService(context.Background(), cfg, &out)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	store := history.NewMemoryStore()

	if b := buildBridge(cfg, svc, store, &out); b != nil {
		t.Error("bridge should be nil with no platforms configured")
	}

	cfg.Bridge.Discord.BotToken = "token"
	if b := buildBridge(cfg, svc, store, &out); b == nil {
		t.Error("bridge should be active with discord configured")
	}
}

func TestParamsFor(t *testing.T) {
	cfg := testConfig(t, "")
	mc, _ := cfg.Model("qwen")
	p := paramsFor(mc)
	if p.Temperature != 0.6 || p.TopP != 0.85 || !p.DoSample || p.MaxNewTokens != 256 {
		t.Errorf("params = %+v", p)
	}

	f := false
	mc.Sampling.DoSample = &f
	if paramsFor(mc).DoSample {
		t.Error("DoSample should be false when disabled")
	}
}

package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sofai/sofaid/internal/inference"
	"github.com/sofai/sofaid/internal/model"
)

// fakeEngine maps token ids to bytes one-to-one so tests can read prompts
// back out of token slices. echoPrompt controls whether Generate returns
// the full sequence or only the new tokens.
type fakeEngine struct {
	completion string
	echoPrompt bool
	generated  int
	lastParams inference.GenParams
}

func (f *fakeEngine) Tokenize(_ context.Context, text string) ([]int, error) {
	ids := make([]int, len(text))
	for i := range text {
		ids[i] = int(text[i])
	}
	return ids, nil
}

func (f *fakeEngine) Generate(_ context.Context, ids []int, params inference.GenParams) ([]int, error) {
	f.generated++
	f.lastParams = params
	newIDs := make([]int, len(f.completion))
	for i := range f.completion {
		newIDs[i] = int(f.completion[i])
	}
	if f.echoPrompt {
		return append(append([]int{}, ids...), newIDs...), nil
	}
	return newIDs, nil
}

func (f *fakeEngine) Decode(_ context.Context, ids []int) (string, error) {
	text := make([]byte, len(ids))
	for i, id := range ids {
		text[i] = byte(id)
	}
	return string(text), nil
}

func newTestModel(name, template string, engine inference.Engine) *Model {
	return &Model{
		Name:     name,
		Template: template,
		Defaults: Params{MaxNewTokens: 80, DoSample: true, Temperature: 0.6, TopP: 0.85},
		Replier:  &ModelReplier{Handle: &model.Handle{Engine: engine}, Template: template},
	}
}

func TestReply_EchoedPromptStripped(t *testing.T) {
	engine := &fakeEngine{completion: "  The answer is 4.  ", echoPrompt: true}
	svc := NewService("qwen")
	svc.Register(newTestModel("qwen", TemplateChatML, engine))

	reply, err := svc.Reply(context.Background(), "qwen", "what is 2+2", 0)
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if reply != "The answer is 4." {
		t.Errorf("reply = %q", reply)
	}
}

func TestReply_NewTokensOnly(t *testing.T) {
	engine := &fakeEngine{completion: "Paris.", echoPrompt: false}
	svc := NewService("qwen")
	svc.Register(newTestModel("qwen", TemplateGeneric, engine))

	reply, err := svc.Reply(context.Background(), "qwen", "capital of France?", 0)
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if reply != "Paris." {
		t.Errorf("reply = %q", reply)
	}
}

func TestReply_IdentityShortCircuit(t *testing.T) {
	engine := &fakeEngine{completion: "should not run"}
	svc := NewService("qwen")
	svc.Register(newTestModel("qwen", TemplateChatML, engine))

	reply, err := svc.Reply(context.Background(), "qwen", "Who are you?", 0)
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if reply != CannedReply {
		t.Errorf("reply = %q, want canned reply", reply)
	}
	if engine.generated != 0 {
		t.Errorf("generate ran %d times, want 0", engine.generated)
	}
}

func TestReply_UnknownModelFallsBack(t *testing.T) {
	engine := &fakeEngine{completion: "fallback answer"}
	svc := NewService("qwen")
	svc.Register(newTestModel("qwen", TemplateChatML, engine))

	reply, err := svc.Reply(context.Background(), "gpt-5", "hello there", 0)
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if reply != "fallback answer" {
		t.Errorf("reply = %q", reply)
	}
}

func TestReply_NoModels(t *testing.T) {
	svc := NewService("qwen")
	_, err := svc.Reply(context.Background(), "qwen", "hello", 0)
	if !errors.Is(err, ErrModelNotLoaded) {
		t.Errorf("error = %v, want ErrModelNotLoaded", err)
	}
}

func TestReply_MaxTokensOverride(t *testing.T) {
	engine := &fakeEngine{completion: "ok"}
	svc := NewService("qwen")
	svc.Register(newTestModel("qwen", TemplateChatML, engine))

	if _, err := svc.Reply(context.Background(), "qwen", "hello", 512); err != nil {
		t.Fatalf("reply: %v", err)
	}
	if engine.lastParams.MaxNewTokens != 512 {
		t.Errorf("MaxNewTokens = %d, want 512", engine.lastParams.MaxNewTokens)
	}

	if _, err := svc.Reply(context.Background(), "qwen", "hello", 0); err != nil {
		t.Fatalf("reply: %v", err)
	}
	if engine.lastParams.MaxNewTokens != 80 {
		t.Errorf("MaxNewTokens = %d, want model default 80", engine.lastParams.MaxNewTokens)
	}
}

func TestModelReplier_NotInitialized(t *testing.T) {
	r := &ModelReplier{Handle: &model.Handle{}}
	_, err := r.Reply(context.Background(), "hi", Params{})
	if !errors.Is(err, ErrNotInitialized) {
		t.Errorf("error = %v, want ErrNotInitialized", err)
	}

	r = &ModelReplier{}
	_, err = r.Reply(context.Background(), "hi", Params{})
	if !errors.Is(err, ErrNotInitialized) {
		t.Errorf("nil handle error = %v, want ErrNotInitialized", err)
	}
}

func TestTrimAtStop(t *testing.T) {
	cases := []struct {
		name  string
		text  string
		stops []string
		want  string
	}{
		{"basic", "Hello there. STOP and ignore", []string{"STOP"}, "Hello there. "},
		{"no match", "Hello there.", []string{"STOP"}, "Hello there."},
		{"empty stops", "Hello", nil, "Hello"},
		// First stop in list order wins even when a later stop matches
		// earlier in the text.
		{"list order wins", "aaa LATER bbb FIRST ccc", []string{"FIRST", "LATER"}, "aaa LATER bbb "},
		{"empty stop skipped", "Hello", []string{"", "He"}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := TrimAtStop(tc.text, tc.stops); got != tc.want {
				t.Errorf("TrimAtStop(%q, %v) = %q, want %q", tc.text, tc.stops, got, tc.want)
			}
		})
	}
}

func TestReply_StopTrimming(t *testing.T) {
	engine := &fakeEngine{completion: "Hello there. STOP and ignore"}
	svc := NewService("qwen")
	m := newTestModel("qwen", TemplateChatML, engine)
	m.Defaults.Stop = []string{"STOP"}
	svc.Register(m)

	reply, err := svc.Reply(context.Background(), "qwen", "greet me", 0)
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if reply != "Hello there." {
		t.Errorf("reply = %q, want %q", reply, "Hello there.")
	}
}

func TestDummyReplier(t *testing.T) {
	var d DummyReplier
	reply, err := d.Reply(context.Background(), "hi", Params{})
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if reply != "[dry-run reply] I received: hi" {
		t.Errorf("reply = %q", reply)
	}

	long := strings.Repeat("x", 500)
	reply, _ = d.Reply(context.Background(), long, Params{})
	want := "[dry-run reply] I received: " + long[:200]
	if reply != want {
		t.Errorf("long reply = %d chars, want truncated echo", len(reply))
	}
}

func TestBuildPrompt(t *testing.T) {
	msg := "what is 2+2"

	chatml := BuildPrompt(TemplateChatML, msg)
	if !strings.Contains(chatml, "<|im_start|>user\n"+msg) {
		t.Errorf("chatml prompt = %q", chatml)
	}
	if !strings.HasSuffix(chatml, "<|im_start|>assistant\n") {
		t.Errorf("chatml prompt should end with assistant tag: %q", chatml)
	}

	zephyr := BuildPrompt(TemplateZephyr, msg)
	if !strings.Contains(zephyr, "<|user|>\n"+msg) {
		t.Errorf("zephyr prompt = %q", zephyr)
	}

	// Unknown template names fall back to the generic layout.
	generic := BuildPrompt("something-new", msg)
	if !strings.Contains(generic, "### User:\n"+msg) {
		t.Errorf("generic prompt = %q", generic)
	}
}

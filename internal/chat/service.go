// Package chat turns raw user messages into model replies: canned-response
// short-circuiting, prompt formatting, generation, and output cleanup.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sofai/sofaid/internal/inference"
	"github.com/sofai/sofaid/internal/model"
)

var (
	// ErrNotInitialized indicates a handle without a usable engine.
	ErrNotInitialized = errors.New("chat: model handle not initialized")
	// ErrModelNotLoaded indicates the resolved logical model has no
	// registered replier.
	ErrModelNotLoaded = errors.New("chat: model not loaded")
)

// Params are the generation settings for one reply.
type Params struct {
	MaxNewTokens int
	DoSample     bool
	Temperature  float64
	TopP         float64
	Stop         []string
}

// Replier produces a reply to a raw user message. Implementations:
// ModelReplier (real inference) and DummyReplier (dry-run echo).
type Replier interface {
	Reply(ctx context.Context, message string, p Params) (string, error)
}

// Model couples a logical model name with its prompt template, sampling
// defaults, and replier.
type Model struct {
	Name     string
	Template string
	Defaults Params
	Replier  Replier
}

// Service routes messages to the right model and applies the identity
// short-circuit before any inference work.
type Service struct {
	defaultName string
	models      map[string]*Model
}

// NewService creates a service with the given default model name. Models
// are registered during startup; the service is read-only afterward.
func NewService(defaultName string) *Service {
	return &Service{
		defaultName: defaultName,
		models:      make(map[string]*Model),
	}
}

// Register adds a model. Call only during startup.
func (s *Service) Register(m *Model) {
	s.models[m.Name] = m
}

// Resolve returns the model for name, falling back to the default for
// unknown names. Returns nil when the default itself is missing.
func (s *Service) Resolve(name string) *Model {
	if m, ok := s.models[name]; ok {
		return m
	}
	return s.models[s.defaultName]
}

// Ready reports whether the default model can serve requests.
func (s *Service) Ready() bool {
	return s.models[s.defaultName] != nil
}

// Reply generates a reply to message using the named logical model.
// maxTokens overrides the model's default when positive.
func (s *Service) Reply(ctx context.Context, modelName, message string, maxTokens int) (string, error) {
	if IsIdentityQuestion(message) {
		return CannedReply, nil
	}

	m := s.Resolve(modelName)
	if m == nil {
		return "", ErrModelNotLoaded
	}

	p := m.Defaults
	if maxTokens > 0 {
		p.MaxNewTokens = maxTokens
	}
	return m.Replier.Reply(ctx, message, p)
}

// ModelReplier generates replies through a loaded model handle.
type ModelReplier struct {
	Handle   *model.Handle
	Template string
}

// Reply formats the prompt, runs generation, and cleans up the output:
// the echoed prompt is stripped and the text is truncated at the first
// configured stop sequence found.
func (r *ModelReplier) Reply(ctx context.Context, message string, p Params) (string, error) {
	if r.Handle == nil || r.Handle.Engine == nil {
		return "", ErrNotInitialized
	}
	engine := r.Handle.Engine

	prompt := BuildPrompt(r.Template, message)
	inputIDs, err := engine.Tokenize(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("chat: tokenize: %w", err)
	}

	outputIDs, err := engine.Generate(ctx, inputIDs, inference.GenParams{
		MaxNewTokens: p.MaxNewTokens,
		DoSample:     p.DoSample,
		Temperature:  p.Temperature,
		TopP:         p.TopP,
	})
	if err != nil {
		return "", fmt.Errorf("chat: generate: %w", err)
	}

	text, err := decodeNewTokens(ctx, engine, prompt, inputIDs, outputIDs)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(TrimAtStop(text, p.Stop)), nil
}

// decodeNewTokens decodes only the newly produced tokens. When the engine
// echoes the prompt ids we slice them off; otherwise we decode the full
// sequence and strip the prompt text prefix if present. A failed sliced
// decode falls back to the full-sequence path rather than surfacing an
// error to the user.
func decodeNewTokens(ctx context.Context, engine inference.Engine, prompt string, inputIDs, outputIDs []int) (string, error) {
	if hasIDPrefix(outputIDs, inputIDs) {
		text, err := engine.Decode(ctx, outputIDs[len(inputIDs):])
		if err == nil {
			return text, nil
		}
	}
	text, err := engine.Decode(ctx, outputIDs)
	if err != nil {
		return "", fmt.Errorf("chat: decode: %w", err)
	}
	if strings.HasPrefix(text, prompt) {
		text = text[len(prompt):]
	}
	return text, nil
}

func hasIDPrefix(ids, prefix []int) bool {
	if len(ids) < len(prefix) {
		return false
	}
	for i, id := range prefix {
		if ids[i] != id {
			return false
		}
	}
	return true
}

// TrimAtStop truncates text at the first stop string, scanning stops in
// configured order and taking the first one found anywhere in the text,
// not the one with the earliest match index.
func TrimAtStop(text string, stops []string) string {
	for _, stop := range stops {
		if stop == "" {
			continue
		}
		if idx := strings.Index(text, stop); idx >= 0 {
			return text[:idx]
		}
	}
	return text
}

// DummyReplier is a capability-compatible stand-in used when real model
// loading is skipped. It echoes a truncated copy of the input.
type DummyReplier struct{}

// dummyMaxEcho bounds how much of the input the dry-run reply repeats.
const dummyMaxEcho = 200

// Reply echoes the message behind a fixed prefix.
func (DummyReplier) Reply(_ context.Context, message string, _ Params) (string, error) {
	if len(message) > dummyMaxEcho {
		message = message[:dummyMaxEcho]
	}
	return "[dry-run reply] I received: " + message, nil
}

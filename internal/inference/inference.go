// Package inference talks to the model runner sidecar that hosts tokenizers
// and generative models. The rest of the system treats it as an opaque
// capability: tokenize text to ids, generate ids from ids, decode ids back
// to text.
package inference

import (
	"context"
	"errors"
)

// ErrDependencyMissing indicates the runner is unreachable. It is fatal at
// startup unless dummy mode is active.
var ErrDependencyMissing = errors.New("inference: model runner unavailable")

// Devices the runner can place a model on.
const (
	DeviceCPU         = "cpu"
	DeviceAccelerator = "accelerator"
)

// GenParams are the sampling knobs passed through to the runner.
type GenParams struct {
	MaxNewTokens int     `json:"max_new_tokens"`
	DoSample     bool    `json:"do_sample"`
	Temperature  float64 `json:"temperature"`
	TopP         float64 `json:"top_p"`
}

// Engine is the generation capability for one loaded model. Generate may
// return either only the newly produced ids or the full sequence including
// the prompt; callers must handle both.
type Engine interface {
	Tokenize(ctx context.Context, text string) ([]int, error)
	Generate(ctx context.Context, ids []int, params GenParams) ([]int, error)
	Decode(ctx context.Context, ids []int) (string, error)
}

// LoadRequest asks the runner to load a model.
type LoadRequest struct {
	Repo            string `json:"repo"`
	Revision        string `json:"revision"`
	TrustRemoteCode bool   `json:"trust_remote_code"`
	ReducedBit      bool   `json:"reduced_bit"`
	Device          string `json:"device"`
	// LowMemory requests memory-frugal loading; set for CPU placement.
	LowMemory bool `json:"low_memory"`
	// PadFallback tells the runner to fall back to the end-of-sequence
	// token as padding, or register a synthetic pad token if neither exists.
	PadFallback bool `json:"pad_fallback"`
}

// LoadResult describes a model the runner has loaded.
type LoadResult struct {
	ModelID  string `json:"model_id"`
	Device   string `json:"device"`
	PadToken string `json:"pad_token"`
}

// HealthInfo reports runner status and hardware.
type HealthInfo struct {
	Status      string `json:"status"`
	Accelerator bool   `json:"accelerator"`
}

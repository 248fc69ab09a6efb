package kappa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"golang.org/x/time/rate"

	"github.com/periodic-system/evaluator/pkg/model"
)

// DefaultTimeout and DefaultOutputCap implement spec.md's default external-
// tool bounds (5 minute timeout, 50 MiB stdout cap).
const (
	DefaultTimeout   = 5 * time.Minute
	DefaultOutputCap = 50 * 1024 * 1024
)

// Tool is the capability trait spec.md §9 asks for: in-process fallback
// and an external WASM κ helper must be interchangeable behind this
// interface, both producing byte-identical output on the same input.
type Tool interface {
	Canonicalize(ctx context.Context, sys *model.System) (Result, error)
}

// InProcessTool canonicalizes without a subprocess; always available.
type InProcessTool struct{}

func (InProcessTool) Canonicalize(_ context.Context, sys *model.System) (Result, error) {
	return Canonicalize(sys)
}

// WasmTool runs an external κ helper compiled to WASI, bounded by a
// timeout, an output byte cap, and a rate limiter on how often
// invocations may start. It falls back to InProcessTool on any failure, recording
// that fact on the returned Result.
type WasmTool struct {
	runtime   wazero.Runtime
	wasmBytes []byte
	timeout   time.Duration
	outputCap int
	limiter   *rate.Limiter
	fallback  InProcessTool
}

// WasmToolConfig configures the external κ tool's resource bounds.
type WasmToolConfig struct {
	Timeout       time.Duration
	OutputCapByte int
	// RateLimit bounds how many external-tool invocations may start per
	// second; Burst bounds how many may start back-to-back.
	RateLimit rate.Limit
	Burst     int
}

// NewWasmTool compiles the given WASI module bytes once and returns a Tool
// that invokes it per Canonicalize call, subject to config's bounds.
func NewWasmTool(ctx context.Context, wasmBytes []byte, cfg WasmToolConfig) (*WasmTool, error) {
	r := wazero.NewRuntime(ctx)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("kappa: failed to instantiate WASI: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	outCap := cfg.OutputCapByte
	if outCap <= 0 {
		outCap = DefaultOutputCap
	}
	rl := cfg.RateLimit
	if rl <= 0 {
		rl = rate.Limit(4)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &WasmTool{
		runtime:   r,
		wasmBytes: wasmBytes,
		timeout:   timeout,
		outputCap: outCap,
		limiter:   rate.NewLimiter(rl, burst),
	}, nil
}

// Close releases the wazero runtime.
func (t *WasmTool) Close(ctx context.Context) error {
	return t.runtime.Close(ctx)
}

// Canonicalize sends the system as JSON on stdin to the external κ module
// and expects a kappa.Result-shaped JSON document on stdout. Any error —
// rate-limit wait failure, timeout, compile failure, oversized output,
// malformed response — falls back to in-process canonicalization and sets
// FallbackWarning on the result.
func (t *WasmTool) Canonicalize(ctx context.Context, sys *model.System) (Result, error) {
	res, err := t.runExternal(ctx, sys)
	if err == nil {
		res.UsedExternal = true
		return res, nil
	}

	fallback, ferr := t.fallback.Canonicalize(ctx, sys)
	if ferr != nil {
		return Result{}, ferr
	}
	fallback.FallbackWarning = true
	fallback.NodeMapDigest = nil
	return fallback, nil
}

func (t *WasmTool) runExternal(ctx context.Context, sys *model.System) (Result, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return Result{}, fmt.Errorf("kappa: rate limiter wait failed: %w", err)
	}

	execCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	input, err := json.Marshal(sys)
	if err != nil {
		return Result{}, fmt.Errorf("kappa: failed to marshal system for external tool: %w", err)
	}

	var stdout, stderr bytes.Buffer
	compiled, err := t.runtime.CompileModule(execCtx, t.wasmBytes)
	if err != nil {
		return Result{}, fmt.Errorf("kappa: failed to compile external κ tool: %w", err)
	}
	defer func() { _ = compiled.Close(execCtx) }()

	modCfg := wazero.NewModuleConfig().
		WithStdin(bytes.NewReader(input)).
		WithStdout(&stdout).
		WithStderr(&stderr).
		WithName("kappa-tool")

	mod, err := t.runtime.InstantiateModule(execCtx, compiled, modCfg)
	if err != nil {
		return Result{}, fmt.Errorf("kappa: external κ tool execution failed: %w", err)
	}
	defer func() { _ = mod.Close(execCtx) }()

	if stdout.Len() > t.outputCap {
		return Result{}, fmt.Errorf("kappa: external tool stdout %d bytes exceeds cap %d", stdout.Len(), t.outputCap)
	}

	var res Result
	if err := json.Unmarshal(stdout.Bytes(), &res); err != nil {
		return Result{}, fmt.Errorf("kappa: malformed external tool response: %w", err)
	}
	return res, nil
}

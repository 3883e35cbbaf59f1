package zkvm

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"
)

// NativeExecutor runs a program compiled into the host binary.
type NativeExecutor struct {
	name  string
	entry func(*Env) error
}

// NewNativeExecutor returns an executor for entry. name distinguishes
// programs and determines the image id.
func NewNativeExecutor(name string, entry func(*Env) error) *NativeExecutor {
	return &NativeExecutor{name: name, entry: entry}
}

// ImageID returns SHA-256 of "native:" followed by the program name.
func (n *NativeExecutor) ImageID() [32]byte {
	return sha256.Sum256([]byte("native:" + n.name))
}

// Execute runs the program in-process.
func (n *NativeExecutor) Execute(ctx context.Context, input []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	env := NewEnv(input)
	if err := n.entry(env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecution, err)
	}
	return env.Journal(), nil
}

// WasmConfig configures a WasmExecutor.
type WasmConfig struct {
	// MemoryLimitPages caps guest memory in 64 KiB pages. Zero means the
	// wazero default.
	MemoryLimitPages uint32

	Logger *zap.Logger
}

// WasmExecutor runs a wasip1 program image under wazero. The program reads
// its framed input from stdin and writes its journal to stdout. The guest
// gets no filesystem, environment, clock or randomness.
type WasmExecutor struct {
	image   []byte
	imageID [32]byte
	runtime wazero.Runtime
	logger  *zap.Logger

	mu       sync.Mutex
	compiled wazero.CompiledModule
}

// NewWasmExecutor prepares a runtime for image. Call Close when done.
func NewWasmExecutor(ctx context.Context, image []byte, cfg WasmConfig) (*WasmExecutor, error) {
	if len(image) == 0 {
		return nil, errors.New("zkvm: empty program image")
	}

	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	r := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("zkvm: instantiating WASI: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WasmExecutor{
		image:   image,
		imageID: sha256.Sum256(image),
		runtime: r,
		logger:  logger,
	}, nil
}

// ImageID returns SHA-256 of the program image.
func (w *WasmExecutor) ImageID() [32]byte {
	return w.imageID
}

func (w *WasmExecutor) compile(ctx context.Context) (wazero.CompiledModule, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.compiled != nil {
		return w.compiled, nil
	}
	compiled, err := w.runtime.CompileModule(ctx, w.image)
	if err != nil {
		return nil, fmt.Errorf("zkvm: compiling program: %w", err)
	}
	w.compiled = compiled
	return compiled, nil
}

// Execute instantiates a fresh module per run.
func (w *WasmExecutor) Execute(ctx context.Context, input []byte) ([]byte, error) {
	compiled, err := w.compile(ctx)
	if err != nil {
		return nil, err
	}

	var stdout, stderr bytes.Buffer
	modCfg := wazero.NewModuleConfig().
		WithName("").
		WithArgs("zkmail-guest").
		WithStdin(bytes.NewReader(input)).
		WithStdout(&stdout).
		WithStderr(&stderr)

	mod, err := w.runtime.InstantiateModule(ctx, compiled, modCfg)
	if mod != nil {
		defer func() { _ = mod.Close(ctx) }()
	}
	if err != nil {
		var exitErr *sys.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 0 {
			return stdout.Bytes(), nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		w.logger.Debug("guest aborted",
			zap.Error(err),
			zap.String("stderr", stderr.String()),
		)
		return nil, fmt.Errorf("%w: %v: %s", ErrExecution, err, bytes.TrimSpace(stderr.Bytes()))
	}

	return stdout.Bytes(), nil
}

// Close releases the runtime.
func (w *WasmExecutor) Close(ctx context.Context) error {
	return w.runtime.Close(ctx)
}

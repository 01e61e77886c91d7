package dspatch

import "github.com/pkg/errors"

// Sentinel errors returned by the structural and control-surface APIs.
// Bounds errors on the hot wiring path (ConnectInput, ConnectOutToIn)
// are reported as a bool per the engine's error taxonomy: no exception,
// no global state change. These sentinels cover the remaining class of
// structural misuse that isn't on that hot path.
var (
	// ErrEmptyCircuit is returned by NewCircuit when called with no
	// components.
	ErrEmptyCircuit = errors.New("dspatch: circuit has no components")

	// ErrUnknownComponent is returned when a component handle passed to a
	// Circuit method is not owned by that circuit.
	ErrUnknownComponent = errors.New("dspatch: component not found in circuit")

	// ErrBufferCount is returned by SetBufferCount for out-of-range buffer
	// or thread counts.
	ErrBufferCount = errors.New("dspatch: buffer count and threads-per-buffer must be >= 1")

	// ErrNotAutoTicking is returned by PauseAutoTick/ResumeAutoTick when
	// auto-tick was never started. StopAutoTick has no return value: it is
	// unconditionally a no-op if auto-tick isn't running.
	ErrNotAutoTicking = errors.New("dspatch: auto-tick is not running")

	// ErrAlreadyPaused / ErrNotPaused guard redundant pause/resume calls.
	ErrAlreadyPaused = errors.New("dspatch: auto-tick already paused")
	ErrNotPaused     = errors.New("dspatch: auto-tick is not paused")
)

package vm

import (
	"sync"
)

// ---------------------------------------------------------------------------
// Debugger hooks: activations observed by an embedding debugger
// ---------------------------------------------------------------------------

// Debugger observes compilation and script activations of a Context. The
// hooks run on the evaluating goroutine; they must not re-enter the
// Context except through the Activation accessors.
type Debugger interface {
	OnCompiled(e Executable, source string)
	OnEnter(a *Activation)
	OnExit(a *Activation)
}

// StatementHandler is implemented by debuggers that want to observe
// debugger statements.
type StatementHandler interface {
	OnDebuggerStatement(a *Activation)
}

// ActivationState is the lifecycle of an activation.
type ActivationState uint8

const (
	StateReady ActivationState = iota
	StateRunning
	StateSuspended // waiting for a call to return
	StateCompleted
	StateThrew
	StateInterrupted
)

var stateNames = [...]string{"ready", "running", "suspended", "completed", "threw", "interrupted"}

func (s ActivationState) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Activation is one running script function or top-level script.
type Activation struct {
	parent     *Activation
	fn         *Object // nil for top-level and eval code
	sourceName string

	// Bytecode activations read their position from the frame; the AST
	// interpreter updates line and scope as it goes.
	frame *frame
	line  int
	scope *Scope

	State ActivationState
}

// Parent returns the calling script activation, or nil.
func (a *Activation) Parent() *Activation { return a.parent }

// Function returns the running function, or nil for top-level code.
func (a *Activation) Function() *Object { return a.fn }

// FunctionName returns the name of the running function.
func (a *Activation) FunctionName() string {
	if a.fn == nil {
		return ""
	}
	return a.fn.FunctionName()
}

// SourceName returns the source name of the running code.
func (a *Activation) SourceName() string { return a.sourceName }

// Line returns the current source line.
func (a *Activation) Line() int {
	if f := a.frame; f != nil {
		return f.code.LineAt(f.opPC)
	}
	return a.line
}

// Scope returns the innermost scope of the activation.
func (a *Activation) Scope() *Scope {
	if f := a.frame; f != nil {
		return f.scope
	}
	return a.scope
}

// Locals returns the bindings visible in the activation's function,
// innermost first; outer names are shadowed by inner ones.
func (a *Activation) Locals() map[string]Value {
	out := make(map[string]Value)
	var root *Scope
	if a.fn != nil && a.fn.fn != nil {
		root = a.fn.fn.scope
	}
	for s := a.Scope(); s != nil && s != root; s = s.parent {
		if s.kind == frameGlobal {
			break
		}
		for k, v := range s.Bindings() {
			if _, ok := out[k]; !ok {
				out[k] = v
			}
		}
	}
	return out
}

// pushActivation links a as the innermost activation and notifies the
// debugger.
func (cx *Context) pushActivation(a *Activation) *Activation {
	a.parent = cx.act
	a.State = StateRunning
	cx.act = a
	if cx.debugger != nil {
		cx.debugger.OnEnter(a)
	}
	return a
}

// popActivation records the outcome of a and unlinks it.
func (cx *Context) popActivation(a *Activation, err error) {
	switch {
	case err == nil:
		a.State = StateCompleted
	case isInterrupt(err):
		a.State = StateInterrupted
	default:
		a.State = StateThrew
	}
	if cx.debugger != nil {
		cx.debugger.OnExit(a)
	}
	cx.act = a.parent
}

func (cx *Context) debuggerStatement() {
	if h, ok := cx.debugger.(StatementHandler); ok && cx.act != nil {
		h.OnDebuggerStatement(cx.act)
	}
}

// captureStack snapshots the script activations, innermost first.
func (cx *Context) captureStack() []StackFrame {
	var frames []StackFrame
	for a := cx.act; a != nil; a = a.parent {
		frames = append(frames, StackFrame{Function: a.FunctionName(), SourceName: a.sourceName, Line: a.Line()})
	}
	return frames
}

// ---------------------------------------------------------------------------
// Recorder: a Debugger that keeps an event log
// ---------------------------------------------------------------------------

// DebugEvent is one observation made by a Recorder.
type DebugEvent struct {
	Type       string // "compiled", "enter", "exit", "debugger"
	Function   string
	SourceName string
	Line       int
	State      ActivationState
	Locals     map[string]Value // debugger statements only
}

// Recorder is a Debugger that records every hook invocation. It is safe
// to read from another goroutine.
type Recorder struct {
	mu     sync.Mutex
	events []DebugEvent
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) add(e DebugEvent) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// OnCompiled implements Debugger.
func (r *Recorder) OnCompiled(e Executable, source string) {
	r.add(DebugEvent{Type: "compiled", SourceName: e.ScriptName()})
}

// OnEnter implements Debugger.
func (r *Recorder) OnEnter(a *Activation) {
	r.add(DebugEvent{Type: "enter", Function: a.FunctionName(), SourceName: a.SourceName(), Line: a.Line(), State: a.State})
}

// OnExit implements Debugger.
func (r *Recorder) OnExit(a *Activation) {
	r.add(DebugEvent{Type: "exit", Function: a.FunctionName(), SourceName: a.SourceName(), Line: a.Line(), State: a.State})
}

// OnDebuggerStatement implements StatementHandler.
func (r *Recorder) OnDebuggerStatement(a *Activation) {
	r.add(DebugEvent{Type: "debugger", Function: a.FunctionName(), SourceName: a.SourceName(), Line: a.Line(), State: a.State, Locals: a.Locals()})
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []DebugEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]DebugEvent(nil), r.events...)
}

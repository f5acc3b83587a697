package vm

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("rhino.vm")

// ---------------------------------------------------------------------------
// Factory: shared configuration for Contexts
// ---------------------------------------------------------------------------

// Compiler turns source text into an executable. The compiler package
// implements it; it is injected through the Factory so that the vm
// package does not import the compiler.
type Compiler interface {
	Compile(cx *Context, source string, opts CompileOptions) (Executable, error)
}

// CompileOptions configures one compilation.
type CompileOptions struct {
	SourceName string
	Eval       bool // compile as eval code
	Strict     bool // force strict mode
	Level      int  // optimization level
}

// FeatureHook can decide feature queries before overrides and version
// defaults. It returns handled=false to defer.
type FeatureHook func(cx *Context, f Feature) (value, handled bool)

// HostInitializer installs host-bridging globals. It is skipped for safe
// standard objects.
type HostInitializer func(cx *Context, global *Object) error

// Factory creates Contexts and answers feature queries for them.
// A Factory may be shared between goroutines.
type Factory struct {
	mu        sync.RWMutex
	overrides map[Feature]bool
	hosts     []HostInitializer

	Compiler          Compiler
	FeatureHook       FeatureHook
	StackStyle        StackStyle
	LanguageVersion   int
	OptimizationLevel int
	MaxStackDepth     int
	InterruptInterval int
	Debugger          Debugger
	WarningReporter   func(cx *Context, msg string)
}

// NewFactory creates a factory with default settings.
func NewFactory() *Factory {
	return &Factory{
		overrides:         make(map[Feature]bool),
		LanguageVersion:   VersionDefault,
		MaxStackDepth:     DefaultMaxStackDepth,
		InterruptInterval: DefaultInterruptInterval,
	}
}

var defaultFactory = NewFactory()

// DefaultFactory returns the process-wide factory used by Contexts created
// without one.
func DefaultFactory() *Factory { return defaultFactory }

// OverrideFeature fixes the value of f for every Context of the factory,
// independently of the language version.
func (fy *Factory) OverrideFeature(f Feature, on bool) {
	fy.mu.Lock()
	defer fy.mu.Unlock()
	fy.overrides[f] = on
}

// ClearOverride restores the version default of f.
func (fy *Factory) ClearOverride(f Feature) {
	fy.mu.Lock()
	defer fy.mu.Unlock()
	delete(fy.overrides, f)
}

// AddHostInitializer registers host globals installed by
// InitStandardObjects unless the safe option is set.
func (fy *Factory) AddHostInitializer(h HostInitializer) {
	fy.mu.Lock()
	defer fy.mu.Unlock()
	fy.hosts = append(fy.hosts, h)
}

// HasFeature reports whether f is enabled for cx.
func (fy *Factory) HasFeature(cx *Context, f Feature) bool {
	if fy.FeatureHook != nil {
		if v, ok := fy.FeatureHook(cx, f); ok {
			return v
		}
	}
	fy.mu.RLock()
	v, ok := fy.overrides[f]
	fy.mu.RUnlock()
	if ok {
		return v
	}
	return VersionHasFeature(cx.version, f)
}

// NewContext creates a Context configured from the factory.
func (fy *Factory) NewContext() *Context {
	cx := &Context{
		id:            uuid.New(),
		factory:       fy,
		version:       fy.LanguageVersion,
		optLevel:      fy.OptimizationLevel,
		MaxStackDepth: fy.MaxStackDepth,
		interval:      fy.InterruptInterval,
		debugger:      fy.Debugger,
	}
	if cx.interval <= 0 {
		cx.interval = DefaultInterruptInterval
	}
	if !IsValidLanguageVersion(cx.version) {
		cx.version = VersionDefault
	}
	return cx
}

// Enter creates a Context and enters it on the calling goroutine.
func (fy *Factory) Enter() (*Context, func()) {
	cx := fy.NewContext()
	return cx, cx.Enter()
}

// ---------------------------------------------------------------------------
// Context
// ---------------------------------------------------------------------------

// DefaultInterruptInterval is the number of safe points between checks of
// the interrupt hook and Go context.
const DefaultInterruptInterval = 1024

// ErrOptimizationLevelLocked is returned when the optimization level is
// changed while a script runs.
var ErrOptimizationLevelLocked = errors.New("optimization level cannot change while a script is running")

// Context holds the execution state of one logical thread of script
// execution. It is not safe for concurrent use, except for Interrupt.
type Context struct {
	id      uuid.UUID
	factory *Factory

	version  int
	optLevel int
	running  int // nesting of Exec calls
	realm    *Realm

	// MaxStackDepth bounds nested script calls.
	MaxStackDepth int
	depth         int

	interruptFlag atomic.Bool
	interruptHook func(*Context) bool
	goctx         context.Context
	pending       *InterruptedError
	unwinding     int // finally blocks running because of an interrupt
	interval      int
	ticks         int

	act      *Activation
	caches   map[*Code]*feedback
	debugger Debugger
	joining  map[*Object]bool // arrays being joined, for cycle detection

	// WarningReporter receives warnings; nil uses the factory reporter or
	// the rhino.vm logger.
	WarningReporter func(cx *Context, msg string)

	enteredOn  int64
	enterCount int
}

// NewContext creates a Context from the default factory.
func NewContext() *Context {
	return defaultFactory.NewContext()
}

// ID returns the unique id of the Context.
func (cx *Context) ID() uuid.UUID { return cx.id }

// Factory returns the factory that created the Context.
func (cx *Context) Factory() *Factory { return cx.factory }

// HasFeature reports whether f is enabled.
func (cx *Context) HasFeature(f Feature) bool {
	return cx.factory.HasFeature(cx, f)
}

// LanguageVersion returns the language version.
func (cx *Context) LanguageVersion() int { return cx.version }

// SetLanguageVersion selects the language version for later compilations
// and feature queries.
func (cx *Context) SetLanguageVersion(v int) error {
	if !IsValidLanguageVersion(v) {
		return fmt.Errorf("invalid language version %d", v)
	}
	cx.version = v
	return nil
}

// OptimizationLevel returns the level used by later compilations.
func (cx *Context) OptimizationLevel() int { return cx.optLevel }

// SetOptimizationLevel selects the optimization level: -1 interprets the
// syntax tree, 0 runs bytecode, 1 to 9 enable feedback caches.
func (cx *Context) SetOptimizationLevel(level int) error {
	if level < -1 || level > 9 {
		return fmt.Errorf("invalid optimization level %d", level)
	}
	if cx.running > 0 && level != cx.optLevel {
		return ErrOptimizationLevelLocked
	}
	cx.optLevel = level
	return nil
}

// Realm returns the realm installed by InitStandardObjects, or nil.
func (cx *Context) Realm() *Realm { return cx.realm }

var emptyRealm = &Realm{}

func (cx *Context) currentRealm() *Realm {
	if cx.realm != nil {
		return cx.realm
	}
	return emptyRealm
}

// SetDebugger installs a debugger for this Context.
func (cx *Context) SetDebugger(d Debugger) { cx.debugger = d }

// ---------------------------------------------------------------------------
// Enter / exit
// ---------------------------------------------------------------------------

// contextStacks maps goroutine ids to their stacks of entered Contexts.
var contextStacks sync.Map // int64 -> *[]*Context

// getGoroutineID returns the current goroutine's ID by parsing the stack.
// This is a workaround since Go doesn't expose goroutine IDs directly.
func getGoroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// Stack starts with "goroutine <id> [...]"
	s := string(buf[:n])
	s = strings.TrimPrefix(s, "goroutine ")
	if idx := strings.Index(s, " "); idx > 0 {
		s = s[:idx]
	}
	id, _ := strconv.ParseInt(s, 10, 64)
	return id
}

// Enter makes cx the current Context of the calling goroutine and returns
// the function that restores the previous one. Enter calls nest; every
// exit must happen in reverse order on the same goroutine. A Context can
// be entered on only one goroutine at a time.
func (cx *Context) Enter() (exit func()) {
	gid := getGoroutineID()
	if cx.enterCount > 0 && cx.enteredOn != gid {
		panic("vm: Context is already entered on another goroutine")
	}
	v, _ := contextStacks.LoadOrStore(gid, new([]*Context))
	stack := v.(*[]*Context)
	*stack = append(*stack, cx)
	cx.enteredOn = gid
	cx.enterCount++

	done := false
	return func() {
		if done {
			panic("vm: Context exit called twice")
		}
		if getGoroutineID() != gid {
			panic("vm: Context exited on a different goroutine")
		}
		n := len(*stack)
		if n == 0 || (*stack)[n-1] != cx {
			panic("vm: mismatched Context exit")
		}
		done = true
		(*stack)[n-1] = nil
		*stack = (*stack)[:n-1]
		cx.enterCount--
		if len(*stack) == 0 {
			contextStacks.Delete(gid)
		}
	}
}

// Current returns the innermost Context entered on the calling goroutine,
// or nil.
func Current() *Context {
	v, ok := contextStacks.Load(getGoroutineID())
	if !ok {
		return nil
	}
	stack := *v.(*[]*Context)
	if len(stack) == 0 {
		return nil
	}
	return stack[len(stack)-1]
}

// ---------------------------------------------------------------------------
// Interrupts
// ---------------------------------------------------------------------------

// Interrupt asks the running evaluation to stop at its next safe point.
// It may be called from any goroutine.
func (cx *Context) Interrupt() {
	cx.interruptFlag.Store(true)
}

// SetInterruptHook installs a hook polled at safe points; returning true
// interrupts the evaluation.
func (cx *Context) SetInterruptHook(h func(*Context) bool) {
	cx.interruptHook = h
}

// SetGoContext makes cancellation or deadline expiry of ctx interrupt the
// evaluation.
func (cx *Context) SetGoContext(ctx context.Context) {
	cx.goctx = ctx
}

// poll is called at safe points. Once raised, an interrupt stays pending
// until the outermost evaluation returns.
func (cx *Context) poll() error {
	if cx.pending != nil {
		return cx.pending
	}
	if cx.interruptFlag.Load() {
		return cx.raiseInterrupt("interrupted")
	}
	cx.ticks++
	if cx.ticks < cx.interval {
		return nil
	}
	cx.ticks = 0
	if cx.goctx != nil {
		if err := cx.goctx.Err(); err != nil {
			return cx.raiseInterrupt(err.Error())
		}
	}
	if cx.interruptHook != nil && cx.interruptHook(cx) {
		return cx.raiseInterrupt("interrupt hook")
	}
	return nil
}

func (cx *Context) raiseInterrupt(reason string) error {
	cx.pending = &InterruptedError{Reason: reason}
	log.Debugf("context %s: %s", cx.id, reason)
	return cx.pending
}

func isInterrupt(err error) bool {
	var ie *InterruptedError
	return errors.As(err, &ie)
}

// ---------------------------------------------------------------------------
// Warnings
// ---------------------------------------------------------------------------

// warn reports a warning, or returns it as an error when
// FeatureWarningAsError is enabled.
func (cx *Context) warn(format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	if cx.HasFeature(FeatureWarningAsError) {
		return cx.newError(ErrorPlain, "%s", msg)
	}
	switch {
	case cx.WarningReporter != nil:
		cx.WarningReporter(cx, msg)
	case cx.factory.WarningReporter != nil:
		cx.factory.WarningReporter(cx, msg)
	default:
		if frames := cx.captureStack(); len(frames) > 0 {
			log.Warningf("%s (%s#%d)", msg, frames[0].SourceName, frames[0].Line)
		} else {
			log.Warning(msg)
		}
	}
	return nil
}

// failSet handles an assignment the object model refused: a TypeError in
// strict code, a warning under FeatureStrictMode, ignored otherwise.
func (cx *Context) failSet(strict bool, format string, args ...interface{}) error {
	if strict {
		return cx.newError(ErrorType, format, args...)
	}
	if cx.HasFeature(FeatureStrictMode) {
		return cx.warn(format, args...)
	}
	return nil
}

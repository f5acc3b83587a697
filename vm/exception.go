package vm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Exceptions: script-visible errors carried as Go errors
// ---------------------------------------------------------------------------

// ErrorKind selects one of the built-in error constructors.
type ErrorKind int

const (
	ErrorPlain ErrorKind = iota
	ErrorType
	ErrorReference
	ErrorSyntax
	ErrorRange
	ErrorEval
	ErrorURI
	ErrorInternal
	errorKindCount
)

var errorKindNames = [errorKindCount]string{
	"Error", "TypeError", "ReferenceError", "SyntaxError",
	"RangeError", "EvalError", "URIError", "InternalError",
}

func (k ErrorKind) String() string {
	if k >= 0 && k < errorKindCount {
		return errorKindNames[k]
	}
	return "Error"
}

// StackFrame is one entry of a script-level stack trace.
type StackFrame struct {
	Function   string // empty for top-level code
	SourceName string
	Line       int
}

// errorData is the payload of error objects.
type errorData struct {
	kind  ErrorKind
	stack []StackFrame
}

// Exception is a value thrown by script code, or raised by the engine on
// its behalf, that propagated to Go.
type Exception struct {
	Value      Value // the thrown value
	SourceName string
	Line       int
	Stack      []StackFrame

	style StackStyle
}

func (e *Exception) Error() string {
	msg := e.Details()
	if e.SourceName != "" && e.Line > 0 {
		return fmt.Sprintf("%s (%s#%d)", msg, e.SourceName, e.Line)
	}
	return msg
}

// Details returns "Name: message" for error objects and the string form
// of other thrown values.
func (e *Exception) Details() string {
	if o, ok := e.Value.(*Object); ok && o.err != nil {
		name := dataString(o, "name", o.err.kind.String())
		msg := dataString(o, "message", "")
		if msg == "" {
			return name
		}
		return name + ": " + msg
	}
	return ToDisplayValue(e.Value)
}

// Name returns the error constructor name, or "" for non-error values.
func (e *Exception) Name() string {
	if o, ok := e.Value.(*Object); ok && o.err != nil {
		return dataString(o, "name", o.err.kind.String())
	}
	return ""
}

// Message returns the error message of error objects.
func (e *Exception) Message() string {
	if o, ok := e.Value.(*Object); ok && o.err != nil {
		return dataString(o, "message", "")
	}
	return ToDisplayValue(e.Value)
}

// ScriptStack renders the script-level stack trace.
func (e *Exception) ScriptStack() string {
	return FormatStack(e.Stack, e.style)
}

// dataString reads a string data property along the prototype chain
// without running getters.
func dataString(o *Object, key, def string) string {
	for obj := o; obj != nil; obj = obj.proto {
		if p, ok := obj.getOwn(key); ok {
			if p.IsAccessor() {
				return def
			}
			return ToString(p.Value).String()
		}
	}
	return def
}

// ToDisplayValue renders a thrown value without running script code.
func ToDisplayValue(v Value) string {
	if s, ok := v.(*String); ok {
		return s.String()
	}
	return ToDisplay(v)
}

// InterruptedError unwinds an evaluation stopped by Context.Interrupt, an
// interrupt hook or a Go context deadline. Script code cannot catch it;
// finally blocks still run.
type InterruptedError struct {
	Reason string
}

func (e *InterruptedError) Error() string {
	if e.Reason == "" {
		return "script execution interrupted"
	}
	return "script execution interrupted: " + e.Reason
}

// ---------------------------------------------------------------------------
// Raising errors
// ---------------------------------------------------------------------------

// newError creates an error object of the given kind and wraps it in an
// Exception positioned at the current script location.
func (cx *Context) newError(kind ErrorKind, format string, args ...interface{}) *Exception {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return cx.throwValue(cx.NewErrorObject(kind, msg))
}

// NewError creates a script error exception for host code to return from
// native functions.
func (cx *Context) NewError(kind ErrorKind, format string, args ...interface{}) error {
	return cx.newError(kind, format, args...)
}

// throwValue wraps a thrown script value.
func (cx *Context) throwValue(v Value) *Exception {
	stack := cx.captureStack()
	e := &Exception{Value: v, Stack: stack, style: cx.factory.StackStyle}
	if len(stack) > 0 {
		e.SourceName, e.Line = stack[0].SourceName, stack[0].Line
	}
	return e
}

// NewErrorObject creates an error object with captured stack.
func (cx *Context) NewErrorObject(kind ErrorKind, msg string) *Object {
	r := cx.currentRealm()
	proto := r.ErrorPrototype
	if p := r.errorProtos[kind]; p != nil {
		proto = p
	}
	return cx.initError(NewObject(proto, "Error"), kind, msg, true)
}

func (cx *Context) initError(o *Object, kind ErrorKind, msg string, hasMsg bool) *Object {
	o.kind = KindError
	o.class = "Error"
	stack := cx.captureStack()
	o.err = &errorData{kind: kind, stack: stack}
	if hasMsg {
		o.SetOwn("message", NewString(msg), FlagsHidden)
	}
	o.SetOwn("stack", NewString(cx.stackProperty(o, stack)), FlagsHidden)
	if cx.HasFeature(FeatureLocationInformationInError) && len(stack) > 0 {
		o.SetOwn("fileName", NewString(stack[0].SourceName), FlagsHidden)
		o.SetOwn("lineNumber", Int(stack[0].Line), FlagsHidden)
	}
	return o
}

// stackProperty renders the stack property of a new error object. The
// V8 style starts with the error's description line.
func (cx *Context) stackProperty(o *Object, stack []StackFrame) string {
	s := FormatStack(stack, cx.factory.StackStyle)
	if cx.factory.StackStyle == StackStyleV8 {
		e := &Exception{Value: o}
		return e.Details() + "\n" + s
	}
	return s
}

// asException converts any error to an Exception carrying a script value,
// so that catch clauses can bind it. Interrupts are not converted.
func (cx *Context) asException(err error) (*Exception, bool) {
	switch e := err.(type) {
	case *Exception:
		return e, true
	case *InterruptedError:
		return nil, false
	}
	if se, ok := err.(interface{ ScriptErrorKind() ErrorKind }); ok {
		return cx.newError(se.ScriptErrorKind(), "%s", err.Error()), true
	}
	return cx.newError(ErrorInternal, "%s", err.Error()), true
}

// ---------------------------------------------------------------------------
// Stack trace rendering
// ---------------------------------------------------------------------------

// StackStyle selects how stack traces are rendered. It affects only
// presentation.
type StackStyle int

const (
	StackStyleRhino StackStyle = iota
	StackStyleMozilla
	StackStyleV8
)

// ParseStackStyle parses a style name.
func ParseStackStyle(s string) (StackStyle, error) {
	switch strings.ToLower(s) {
	case "", "rhino":
		return StackStyleRhino, nil
	case "mozilla":
		return StackStyleMozilla, nil
	case "v8":
		return StackStyleV8, nil
	}
	return StackStyleRhino, fmt.Errorf("unknown stack style %q", s)
}

func (s StackStyle) String() string {
	switch s {
	case StackStyleMozilla:
		return "mozilla"
	case StackStyleV8:
		return "v8"
	}
	return "rhino"
}

// FormatStack renders frames innermost first, one per line.
func FormatStack(frames []StackFrame, style StackStyle) string {
	var b strings.Builder
	for _, f := range frames {
		switch style {
		case StackStyleMozilla:
			fmt.Fprintf(&b, "%s()@%s:%d\n", f.Function, f.SourceName, f.Line)
		case StackStyleV8:
			if f.Function != "" {
				fmt.Fprintf(&b, "    at %s (%s:%d)\n", f.Function, f.SourceName, f.Line)
			} else {
				fmt.Fprintf(&b, "    at %s:%d\n", f.SourceName, f.Line)
			}
		default:
			if f.Function != "" {
				fmt.Fprintf(&b, "\tat %s:%d (%s)\n", f.SourceName, f.Line, f.Function)
			} else {
				fmt.Fprintf(&b, "\tat %s:%d\n", f.SourceName, f.Line)
			}
		}
	}
	return b.String()
}

package compiler

import (
	"fmt"
	"strings"

	"github.com/mozilla/rhino-sub008/ast"
	"github.com/mozilla/rhino-sub008/vm"
)

// SyntaxError reports an unrecoverable grammar violation. Parsing stops at
// the first one; no partial tree is returned.
type SyntaxError struct {
	Message    string
	SourceName string
	Pos        ast.Position
	LineSource string // text of the offending line
}

func (e *SyntaxError) Error() string {
	if e.SourceName != "" {
		return fmt.Sprintf("%s: line %d, column %d: %s", e.SourceName, e.Pos.Line, e.Pos.Column, e.Message)
	}
	return fmt.Sprintf("line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

func newSyntaxError(source, name string, pos ast.Position, msg string) *SyntaxError {
	return &SyntaxError{
		Message:    msg,
		SourceName: name,
		Pos:        pos,
		LineSource: lineAt(source, pos.Offset),
	}
}

func lineAt(source string, offset int) string {
	if offset > len(source) {
		offset = len(source)
	}
	start := strings.LastIndexByte(source[:offset], '\n') + 1
	end := strings.IndexByte(source[offset:], '\n')
	if end < 0 {
		return strings.TrimRight(source[start:], "\r")
	}
	return strings.TrimRight(source[start:offset+end], "\r")
}

// bailout unwinds the parser or resolver on the first error.
type bailout struct {
	err *SyntaxError
}

// ScriptErrorKind makes syntax errors surface as SyntaxError objects when
// they reach script code through eval or the Function constructor.
func (e *SyntaxError) ScriptErrorKind() vm.ErrorKind { return vm.ErrorSyntax }

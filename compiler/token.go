package compiler

import (
	"fmt"

	"github.com/mozilla/rhino-sub008/ast"
)

// ---------------------------------------------------------------------------
// Token types
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenIdentifier     // foo, $bar, let, of
	TokenNumber         // 42, 0x1F, 1.5e10
	TokenString         // 'a', "b"
	TokenRegExp         // /ab+c/gi (only produced on request)
	TokenTemplate       // `no substitutions`
	TokenTemplateHead   // `head${
	TokenTemplateMiddle // }middle${ (only produced on request)
	TokenTemplateTail   // }tail` (only produced on request)

	// Delimiters
	TokenLBrace    // {
	TokenRBrace    // }
	TokenLParen    // (
	TokenRParen    // )
	TokenLBracket  // [
	TokenRBracket  // ]
	TokenDot       // .
	TokenSemicolon // ;
	TokenComma     // ,
	TokenQuestion  // ?
	TokenColon     // :
	TokenArrow     // =>

	// Operators
	TokenLT         // <
	TokenGT         // >
	TokenLE         // <=
	TokenGE         // >=
	TokenEq         // ==
	TokenNE         // !=
	TokenStrictEq   // ===
	TokenStrictNE   // !==
	TokenPlus       // +
	TokenMinus      // -
	TokenStar       // *
	TokenSlash      // /
	TokenPercent    // %
	TokenStarStar   // **
	TokenInc        // ++
	TokenDec        // --
	TokenShl        // <<
	TokenShr        // >>
	TokenUShr       // >>>
	TokenAmp        // &
	TokenPipe       // |
	TokenCaret      // ^
	TokenBang       // !
	TokenTilde      // ~
	TokenAndAnd     // &&
	TokenOrOr       // ||
	TokenNullish    // ??
	TokenAssign     // =
	TokenPlusEq     // +=
	TokenMinusEq    // -=
	TokenStarEq     // *=
	TokenSlashEq    // /=
	TokenPercentEq  // %=
	TokenStarStarEq // **=
	TokenShlEq      // <<=
	TokenShrEq      // >>=
	TokenUShrEq     // >>>=
	TokenAmpEq      // &=
	TokenPipeEq     // |=
	TokenCaretEq    // ^=

	// Keywords
	TokenBreak
	TokenCase
	TokenCatch
	TokenConst
	TokenContinue
	TokenDebugger
	TokenDefault
	TokenDelete
	TokenDo
	TokenElse
	TokenFalse
	TokenFinally
	TokenFor
	TokenFunction
	TokenIf
	TokenIn
	TokenInstanceOf
	TokenNew
	TokenNull
	TokenReturn
	TokenSwitch
	TokenThis
	TokenThrow
	TokenTrue
	TokenTry
	TokenTypeof
	TokenVar
	TokenVoid
	TokenWhile
	TokenWith

	// Future reserved words (class, enum, export, extends, import, super)
	TokenReserved
)

var tokenNames = map[TokenType]string{
	TokenEOF:            "EOF",
	TokenError:          "ERROR",
	TokenIdentifier:     "IDENTIFIER",
	TokenNumber:         "NUMBER",
	TokenString:         "STRING",
	TokenRegExp:         "REGEXP",
	TokenTemplate:       "TEMPLATE",
	TokenTemplateHead:   "TEMPLATE_HEAD",
	TokenTemplateMiddle: "TEMPLATE_MIDDLE",
	TokenTemplateTail:   "TEMPLATE_TAIL",
	TokenLBrace:         "{",
	TokenRBrace:         "}",
	TokenLParen:         "(",
	TokenRParen:         ")",
	TokenLBracket:       "[",
	TokenRBracket:       "]",
	TokenDot:            ".",
	TokenSemicolon:      ";",
	TokenComma:          ",",
	TokenQuestion:       "?",
	TokenColon:          ":",
	TokenArrow:          "=>",
	TokenLT:             "<",
	TokenGT:             ">",
	TokenLE:             "<=",
	TokenGE:             ">=",
	TokenEq:             "==",
	TokenNE:             "!=",
	TokenStrictEq:       "===",
	TokenStrictNE:       "!==",
	TokenPlus:           "+",
	TokenMinus:          "-",
	TokenStar:           "*",
	TokenSlash:          "/",
	TokenPercent:        "%",
	TokenStarStar:       "**",
	TokenInc:            "++",
	TokenDec:            "--",
	TokenShl:            "<<",
	TokenShr:            ">>",
	TokenUShr:           ">>>",
	TokenAmp:            "&",
	TokenPipe:           "|",
	TokenCaret:          "^",
	TokenBang:           "!",
	TokenTilde:          "~",
	TokenAndAnd:         "&&",
	TokenOrOr:           "||",
	TokenNullish:        "??",
	TokenAssign:         "=",
	TokenPlusEq:         "+=",
	TokenMinusEq:        "-=",
	TokenStarEq:         "*=",
	TokenSlashEq:        "/=",
	TokenPercentEq:      "%=",
	TokenStarStarEq:     "**=",
	TokenShlEq:          "<<=",
	TokenShrEq:          ">>=",
	TokenUShrEq:         ">>>=",
	TokenAmpEq:          "&=",
	TokenPipeEq:         "|=",
	TokenCaretEq:        "^=",
	TokenBreak:          "break",
	TokenCase:           "case",
	TokenCatch:          "catch",
	TokenConst:          "const",
	TokenContinue:       "continue",
	TokenDebugger:       "debugger",
	TokenDefault:        "default",
	TokenDelete:         "delete",
	TokenDo:             "do",
	TokenElse:           "else",
	TokenFalse:          "false",
	TokenFinally:        "finally",
	TokenFor:            "for",
	TokenFunction:       "function",
	TokenIf:             "if",
	TokenIn:             "in",
	TokenInstanceOf:     "instanceof",
	TokenNew:            "new",
	TokenNull:           "null",
	TokenReturn:         "return",
	TokenSwitch:         "switch",
	TokenThis:           "this",
	TokenThrow:          "throw",
	TokenTrue:           "true",
	TokenTry:            "try",
	TokenTypeof:         "typeof",
	TokenVar:            "var",
	TokenVoid:           "void",
	TokenWhile:          "while",
	TokenWith:           "with",
	TokenReserved:       "RESERVED",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// IsKeyword reports whether t is a reserved word token. Keywords are valid
// property names after a dot or in object literals.
func (t TokenType) IsKeyword() bool {
	return t >= TokenBreak && t <= TokenReserved
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string       // the raw text
	Value   string       // decoded string, cooked template text, or regexp pattern
	Raw     string       // raw template text, or regexp flags
	Num     float64      // numeric value of TokenNumber
	Pos     ast.Position // start position
	End     ast.Position // position just past the token

	// NewlineBefore is set when a line terminator separates this token
	// from the previous one. Automatic semicolon insertion and restricted
	// productions depend on it.
	NewlineBefore bool

	// LegacyOctal marks 0777 literals and \1 style escapes, which strict
	// code rejects.
	LegacyOctal bool

	// Escaped marks identifiers and strings written with escapes.
	Escaped bool
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if t.Type == TokenError {
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// Reserved words mapped to their token types.
var keywords = map[string]TokenType{
	"break":      TokenBreak,
	"case":       TokenCase,
	"catch":      TokenCatch,
	"const":      TokenConst,
	"continue":   TokenContinue,
	"debugger":   TokenDebugger,
	"default":    TokenDefault,
	"delete":     TokenDelete,
	"do":         TokenDo,
	"else":       TokenElse,
	"false":      TokenFalse,
	"finally":    TokenFinally,
	"for":        TokenFor,
	"function":   TokenFunction,
	"if":         TokenIf,
	"in":         TokenIn,
	"instanceof": TokenInstanceOf,
	"new":        TokenNew,
	"null":       TokenNull,
	"return":     TokenReturn,
	"switch":     TokenSwitch,
	"this":       TokenThis,
	"throw":      TokenThrow,
	"true":       TokenTrue,
	"try":        TokenTry,
	"typeof":     TokenTypeof,
	"var":        TokenVar,
	"void":       TokenVoid,
	"while":      TokenWhile,
	"with":       TokenWith,
	"class":      TokenReserved,
	"enum":       TokenReserved,
	"export":     TokenReserved,
	"extends":    TokenReserved,
	"import":     TokenReserved,
	"super":      TokenReserved,
}

// Words reserved only in strict code.
var strictReserved = map[string]bool{
	"implements": true,
	"interface":  true,
	"let":        true,
	"package":    true,
	"private":    true,
	"protected":  true,
	"public":     true,
	"static":     true,
	"yield":      true,
}

// Compound assignment tokens mapped to their binary operator.
var assignOps = map[TokenType]ast.Op{
	TokenAssign:     ast.OpAssign,
	TokenPlusEq:     ast.OpAdd,
	TokenMinusEq:    ast.OpSub,
	TokenStarEq:     ast.OpMul,
	TokenSlashEq:    ast.OpDiv,
	TokenPercentEq:  ast.OpMod,
	TokenStarStarEq: ast.OpExp,
	TokenShlEq:      ast.OpShl,
	TokenShrEq:      ast.OpShr,
	TokenUShrEq:     ast.OpUShr,
	TokenAmpEq:      ast.OpBitAnd,
	TokenPipeEq:     ast.OpBitOr,
	TokenCaretEq:    ast.OpBitXor,
}

// Binary operator tokens mapped to their operator.
var binaryOps = map[TokenType]ast.Op{
	TokenNullish:    ast.OpNullish,
	TokenOrOr:       ast.OpOr,
	TokenAndAnd:     ast.OpAnd,
	TokenPipe:       ast.OpBitOr,
	TokenCaret:      ast.OpBitXor,
	TokenAmp:        ast.OpBitAnd,
	TokenEq:         ast.OpEq,
	TokenNE:         ast.OpNE,
	TokenStrictEq:   ast.OpStrictEq,
	TokenStrictNE:   ast.OpStrictNE,
	TokenLT:         ast.OpLT,
	TokenGT:         ast.OpGT,
	TokenLE:         ast.OpLE,
	TokenGE:         ast.OpGE,
	TokenIn:         ast.OpIn,
	TokenInstanceOf: ast.OpInstanceOf,
	TokenShl:        ast.OpShl,
	TokenShr:        ast.OpShr,
	TokenUShr:       ast.OpUShr,
	TokenPlus:       ast.OpAdd,
	TokenMinus:      ast.OpSub,
	TokenStar:       ast.OpMul,
	TokenSlash:      ast.OpDiv,
	TokenPercent:    ast.OpMod,
	TokenStarStar:   ast.OpExp,
}

package ast

// ---------------------------------------------------------------------------
// Resolver annotations
// ---------------------------------------------------------------------------

// BindingKind says how an identifier reference is resolved at run time.
type BindingKind int

const (
	// BindUnresolved is the zero value before the resolver runs.
	BindUnresolved BindingKind = iota
	// BindStatic references a slot in a frame a fixed number of hops up
	// the scope chain.
	BindStatic
	// BindDynamic must be looked up by name walking the scope chain,
	// because a with scope or a direct eval may intervene.
	BindDynamic
	// BindGlobal is not declared in any enclosing function or block and no
	// dynamic scope intervenes: it is looked up directly on the global
	// scope.
	BindGlobal
)

func (k BindingKind) String() string {
	switch k {
	case BindStatic:
		return "static"
	case BindDynamic:
		return "dynamic"
	case BindGlobal:
		return "global"
	}
	return "unresolved"
}

// Binding is the resolution of one identifier occurrence.
type Binding struct {
	Kind  BindingKind
	Depth int      // frames to skip for BindStatic
	Slot  int      // slot index for BindStatic
	Decl  DeclKind // declaration kind of the target for BindStatic
}

// ScopeKind classifies frames.
type ScopeKind int

const (
	ScopeFunction ScopeKind = iota
	ScopeBlock
	ScopeCatch
	ScopeEval
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeFunction:
		return "function"
	case ScopeBlock:
		return "block"
	case ScopeCatch:
		return "catch"
	case ScopeEval:
		return "eval"
	}
	return "unknown"
}

// ScopeInfo is the static layout of one frame: an ordered list of named
// slots. Frames created from the same ScopeInfo share it.
type ScopeInfo struct {
	Kind  ScopeKind
	Names []string
	Decls []DeclKind

	// Dynamic is set when code inside the frame may add bindings at run
	// time (sloppy direct eval). Such frames carry an extension object.
	Dynamic bool

	index map[string]int
}

// NewScopeInfo creates an empty layout.
func NewScopeInfo(kind ScopeKind) *ScopeInfo {
	return &ScopeInfo{Kind: kind}
}

// Lookup returns the slot for name.
func (s *ScopeInfo) Lookup(name string) (int, bool) {
	if s == nil || len(s.Names) == 0 {
		return 0, false
	}
	if s.index == nil {
		s.index = make(map[string]int, len(s.Names))
		for i, n := range s.Names {
			s.index[n] = i
		}
	}
	slot, ok := s.index[name]
	return slot, ok
}

// Declare adds name with the given kind, or returns the existing slot.
// The second result is false when the name already existed.
func (s *ScopeInfo) Declare(name string, kind DeclKind) (int, bool) {
	if slot, ok := s.Lookup(name); ok {
		return slot, false
	}
	if s.index == nil {
		s.index = make(map[string]int)
	}
	slot := len(s.Names)
	s.Names = append(s.Names, name)
	s.Decls = append(s.Decls, kind)
	s.index[name] = slot
	return slot, true
}

// Len returns the number of slots.
func (s *ScopeInfo) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Names)
}

// FunctionInfo records what the resolver learned about one function.
type FunctionInfo struct {
	Scope         *ScopeInfo
	ParamSlots    []int
	ArgumentsSlot int // -1 when no arguments object is needed
	SelfSlot      int // -1 unless a named function expression binds itself
	VarNames      []string
	FuncDecls     []*FunctionDecl // hoisted function-level declarations
	UsesThis      bool
	HasEval       bool // contains a direct eval call
	Strict        bool
}

// MappedArguments reports whether the arguments object aliases parameters.
func (f *FunctionInfo) MappedArguments() bool {
	return !f.Strict
}

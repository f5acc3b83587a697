package ast

// Inspect traverses the tree rooted at n in depth-first order. It calls
// f(n); when f returns true, Inspect visits each child of n. Nil children
// (array holes, absent else branches) are skipped.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	switch n := n.(type) {
	case *Program:
		inspectStmts(n.Body, f)
	case *TemplateLiteral:
		for _, x := range n.Exprs {
			Inspect(x, f)
		}
	case *ArrayLiteral:
		for _, x := range n.Elements {
			if x != nil {
				Inspect(x, f)
			}
		}
	case *ObjectLiteral:
		for _, p := range n.Properties {
			if p.Computed != nil {
				Inspect(p.Computed, f)
			}
			Inspect(p.Value, f)
		}
	case *FunctionLiteral:
		if n.Name != nil {
			Inspect(n.Name, f)
		}
		for _, p := range n.Params {
			Inspect(p, f)
		}
		inspectStmts(n.Body, f)
	case *UnaryExpr:
		Inspect(n.X, f)
	case *UpdateExpr:
		Inspect(n.X, f)
	case *BinaryExpr:
		Inspect(n.X, f)
		Inspect(n.Y, f)
	case *LogicalExpr:
		Inspect(n.X, f)
		Inspect(n.Y, f)
	case *AssignExpr:
		Inspect(n.Target, f)
		Inspect(n.Value, f)
	case *ConditionalExpr:
		Inspect(n.Test, f)
		Inspect(n.Cons, f)
		Inspect(n.Alt, f)
	case *CallExpr:
		Inspect(n.Callee, f)
		for _, a := range n.Args {
			Inspect(a, f)
		}
	case *NewExpr:
		Inspect(n.Callee, f)
		for _, a := range n.Args {
			Inspect(a, f)
		}
	case *MemberExpr:
		Inspect(n.Object, f)
	case *IndexExpr:
		Inspect(n.Object, f)
		Inspect(n.Index, f)
	case *SequenceExpr:
		for _, x := range n.List {
			Inspect(x, f)
		}
	case *VarDecl:
		for _, d := range n.Decls {
			Inspect(d.Name, f)
			if d.Init != nil {
				Inspect(d.Init, f)
			}
		}
	case *FunctionDecl:
		Inspect(n.Func, f)
	case *ExprStmt:
		Inspect(n.X, f)
	case *BlockStmt:
		inspectStmts(n.Body, f)
	case *IfStmt:
		Inspect(n.Test, f)
		Inspect(n.Cons, f)
		if n.Alt != nil {
			Inspect(n.Alt, f)
		}
	case *ForStmt:
		if n.Init != nil {
			Inspect(n.Init, f)
		}
		if n.Test != nil {
			Inspect(n.Test, f)
		}
		if n.Update != nil {
			Inspect(n.Update, f)
		}
		Inspect(n.Body, f)
	case *ForInStmt:
		Inspect(n.Left, f)
		Inspect(n.Right, f)
		Inspect(n.Body, f)
	case *WhileStmt:
		Inspect(n.Test, f)
		Inspect(n.Body, f)
	case *DoWhileStmt:
		Inspect(n.Body, f)
		Inspect(n.Test, f)
	case *ReturnStmt:
		if n.Arg != nil {
			Inspect(n.Arg, f)
		}
	case *ThrowStmt:
		Inspect(n.Arg, f)
	case *TryStmt:
		Inspect(n.Block, f)
		if n.Param != nil {
			Inspect(n.Param, f)
		}
		if n.Handler != nil {
			Inspect(n.Handler, f)
		}
		if n.Finalizer != nil {
			Inspect(n.Finalizer, f)
		}
	case *SwitchStmt:
		Inspect(n.Disc, f)
		for _, c := range n.Cases {
			if c.Test != nil {
				Inspect(c.Test, f)
			}
			inspectStmts(c.Body, f)
		}
	case *LabeledStmt:
		Inspect(n.Body, f)
	case *WithStmt:
		Inspect(n.Object, f)
		Inspect(n.Body, f)
	}
}

func inspectStmts(list []Stmt, f func(Node) bool) {
	for _, s := range list {
		Inspect(s, f)
	}
}

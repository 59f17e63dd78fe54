// Package enumvalidator flags string-literal assignments to struct fields
// whose type is a named string type with at least one associated constant.
// The scout event/node/source enums (Kind, NodeType, DiscoveryMethod,
// SourceRole, ...) are closed string enums rather than Go's iota pattern, so
// nothing stops `source.DiscoveryMethod = "gap_analisys"` from compiling.
// This analyzer, run as a standalone checker (see cmd/), reports such
// assignment statements for enum types declared in the package being
// analyzed; enum types imported from other packages and keyed fields in
// composite literals are not checked.
package enumvalidator

import (
	"go/ast"
	"go/types"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

var Analyzer = &analysis.Analyzer{
	Name:     "enumvalidator",
	Doc:      "flags string literals assigned to fields typed as a closed string enum",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

func run(pass *analysis.Pass) (any, error) {
	insp := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	// Collect every named string type that has at least one declared
	// constant of that type - our definition of "enum".
	enumTypes := collectEnumTypes(pass)

	nodeFilter := []ast.Node{(*ast.AssignStmt)(nil)}
	insp.Preorder(nodeFilter, func(n ast.Node) {
		assign := n.(*ast.AssignStmt)
		if assign.Tok.String() != "=" && assign.Tok.String() != ":=" {
			return
		}
		for i, lhs := range assign.Lhs {
			if i >= len(assign.Rhs) {
				continue
			}
			sel, ok := lhs.(*ast.SelectorExpr)
			if !ok {
				continue
			}
			lit, ok := assign.Rhs[i].(*ast.BasicLit)
			if !ok || lit.Kind.String() != "STRING" {
				continue
			}

			fieldType := pass.TypesInfo.TypeOf(sel)
			named, ok := fieldType.(*types.Named)
			if !ok {
				continue
			}
			if !enumTypes[named.Obj()] {
				continue
			}

			pass.Reportf(lit.Pos(), "enum field %s assigned string literal", sel.Sel.Name)
		}
	})

	return nil, nil
}

// collectEnumTypes finds every named string-kind type in the package that
// has at least one package-level constant declared with that type.
func collectEnumTypes(pass *analysis.Pass) map[*types.TypeName]bool {
	enums := make(map[*types.TypeName]bool)

	scope := pass.Pkg.Scope()
	for _, name := range scope.Names() {
		obj, ok := scope.Lookup(name).(*types.Const)
		if !ok {
			continue
		}
		named, ok := obj.Type().(*types.Named)
		if !ok {
			continue
		}
		if named.Underlying() == nil {
			continue
		}
		basic, ok := named.Underlying().(*types.Basic)
		if !ok || basic.Info()&types.IsString == 0 {
			continue
		}
		enums[named.Obj()] = true
	}

	return enums
}

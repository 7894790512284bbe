package analysis

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/reactant-dev/reactant/internal/domain"
)

// Analyzer derives a cell's bindings, requirements, ignored names and
// statements from its source, and keeps the notebook-global scope in step.
//
// Classification follows the one-owner rule: the first cell to bind a free
// name owns it, and a later cell assigning to that name records a requirement
// on the owner instead of stealing the binding. Definitions (def, class,
// import) rebind unconditionally; the last definition wins.
type Analyzer struct {
	parser *Parser
}

// NewAnalyzer creates a new Analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{parser: NewParser()}
}

// Analyze parses cell.Source and populates the cell's derived sets, binding
// newly defined names into scope. On parse failure the derived sets are left
// empty and the scope is untouched.
func (a *Analyzer) Analyze(cell *domain.Cell, scope domain.Scope) error {
	cell.ResetAnalysis()
	if !cell.Kind.IsCode() {
		return nil
	}

	src := []byte(cell.Source)
	tree, err := a.parser.Parse(context.Background(), src)
	if err != nil {
		return err
	}
	defer tree.Close()

	root := tree.RootNode()
	cell.Statements = SplitStatements(root, src)

	w := &walker{cell: cell, scope: scope, src: src}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		w.stmt(root.NamedChild(i))
	}
	return nil
}

// ReanalyzeOnUpdate removes the cell's current bindings from scope, replaces
// its source, and analyzes the new content. The content replacement sticks
// even when the new source fails to parse, so users can type through
// transient syntax errors; the error is still reported.
func (a *Analyzer) ReanalyzeOnUpdate(cell *domain.Cell, newSource string, scope domain.Scope) error {
	for name := range cell.Bindings {
		if owner, ok := scope.Owner(name); ok && owner == cell.ID {
			scope.Unbind(name)
		}
	}
	cell.Source = newSource
	return a.Analyze(cell, scope)
}

// walker carries the state of one analysis pass over a cell's syntax tree.
type walker struct {
	cell  *domain.Cell
	scope domain.Scope
	src   []byte
}

func (w *walker) text(n *sitter.Node) string {
	return string(w.src[n.StartByte():n.EndByte()])
}

// bindName records a definition-style binding: def, class, import. These
// rebind unconditionally; the scope's previous owner loses the name.
func (w *walker) bindName(name string) {
	if w.cell.Ignored.Has(name) {
		return
	}
	w.scope.Bind(name, w.cell.ID)
	w.cell.Bindings.Add(name)
	w.cell.Requirements.Remove(name)
}

// storeName records an assignment target. Assigning to a name another cell
// owns makes that name a requirement here; the other cell keeps the binding.
func (w *walker) storeName(name string) {
	if w.cell.Ignored.Has(name) {
		return
	}
	if owner, ok := w.scope.Owner(name); ok && owner != w.cell.ID {
		w.cell.Requirements.Add(name)
		return
	}
	w.scope.Bind(name, w.cell.ID)
	w.cell.Bindings.Add(name)
	w.cell.Requirements.Remove(name)
}

// loadName records a use. Names the cell itself binds are not requirements.
func (w *walker) loadName(name string) {
	if w.cell.Ignored.Has(name) || w.cell.Bindings.Has(name) {
		return
	}
	w.cell.Requirements.Add(name)
}

// stmt dispatches one statement node.
func (w *walker) stmt(n *sitter.Node) {
	switch n.Type() {
	case "comment":

	case "expression_statement":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			w.expr(n.NamedChild(i))
		}

	case "import_statement":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			w.importAlias(n.NamedChild(i))
		}

	case "import_from_statement":
		module := n.ChildByFieldName("module_name")
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			if module != nil && child.StartByte() == module.StartByte() {
				continue
			}
			if child.Type() == "wildcard_import" {
				continue
			}
			w.importAlias(child)
		}

	case "future_import_statement":

	case "function_definition":
		w.functionDef(n)

	case "class_definition":
		w.classDef(n, nil)

	case "decorated_definition":
		w.decoratedDef(n)

	case "if_statement":
		if cond := n.ChildByFieldName("condition"); cond != nil {
			w.expr(cond)
		}
		if body := n.ChildByFieldName("consequence"); body != nil {
			w.block(body)
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			switch child.Type() {
			case "elif_clause":
				if cond := child.ChildByFieldName("condition"); cond != nil {
					w.expr(cond)
				}
				if body := child.ChildByFieldName("consequence"); body != nil {
					w.block(body)
				}
			case "else_clause":
				if body := child.ChildByFieldName("body"); body != nil {
					w.block(body)
				}
			}
		}

	case "while_statement":
		if cond := n.ChildByFieldName("condition"); cond != nil {
			w.expr(cond)
		}
		if body := n.ChildByFieldName("body"); body != nil {
			w.block(body)
		}
		w.elseClauses(n)

	case "for_statement":
		// The loop target and iterable are intentionally not visited: loop
		// variables are ephemeral, local to the cell's runtime.
		if body := n.ChildByFieldName("body"); body != nil {
			w.block(body)
		}
		w.elseClauses(n)

	case "try_statement":
		if body := n.ChildByFieldName("body"); body != nil {
			w.block(body)
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			switch child.Type() {
			case "except_clause", "except_group_clause", "finally_clause", "else_clause":
				for j := 0; j < int(child.NamedChildCount()); j++ {
					inner := child.NamedChild(j)
					if inner.Type() == "block" {
						w.block(inner)
					} else {
						w.expr(inner)
					}
				}
			}
		}

	case "with_statement":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			if child.Type() != "with_clause" {
				continue
			}
			for j := 0; j < int(child.NamedChildCount()); j++ {
				item := child.NamedChild(j)
				if item.Type() != "with_item" {
					continue
				}
				if value := item.ChildByFieldName("value"); value != nil {
					w.expr(value)
				}
			}
		}
		if body := n.ChildByFieldName("body"); body != nil {
			w.block(body)
		}

	case "match_statement":
		if subject := n.ChildByFieldName("subject"); subject != nil {
			w.expr(subject)
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			if child.Type() != "case_clause" {
				continue
			}
			if body := child.ChildByFieldName("consequence"); body != nil {
				w.block(body)
			}
		}

	case "return_statement", "raise_statement", "assert_statement",
		"print_statement", "exec_statement":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			w.expr(n.NamedChild(i))
		}

	case "delete_statement":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			w.deleteTarget(n.NamedChild(i))
		}

	case "global_statement", "nonlocal_statement",
		"pass_statement", "break_statement", "continue_statement":

	case "block":
		w.block(n)
	}
}

func (w *walker) block(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		w.stmt(n.NamedChild(i))
	}
}

func (w *walker) elseClauses(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() != "else_clause" {
			continue
		}
		if body := child.ChildByFieldName("body"); body != nil {
			w.block(body)
		}
	}
}

// importAlias binds one imported name: the alias if present, else the dotted
// name as written.
func (w *walker) importAlias(n *sitter.Node) {
	switch n.Type() {
	case "aliased_import":
		if alias := n.ChildByFieldName("alias"); alias != nil {
			w.bindName(w.text(alias))
			return
		}
		if name := n.ChildByFieldName("name"); name != nil {
			w.bindName(w.text(name))
		}
	case "dotted_name", "identifier":
		w.bindName(w.text(n))
	}
}

func (w *walker) functionDef(n *sitter.Node) {
	// Parameter names shadow outer bindings for the rest of the analysis;
	// they must never surface as requirements.
	if params := n.ChildByFieldName("parameters"); params != nil {
		w.ignoreParams(params)
	}
	if name := n.ChildByFieldName("name"); name != nil {
		w.bindName(w.text(name))
	}
	if body := n.ChildByFieldName("body"); body != nil {
		w.block(body)
	}
}

func (w *walker) classDef(n *sitter.Node, decorators []*sitter.Node) {
	if name := n.ChildByFieldName("name"); name != nil {
		w.bindName(w.text(name))
	}
	if bases := n.ChildByFieldName("superclasses"); bases != nil {
		w.callArguments(bases)
	}
	if body := n.ChildByFieldName("body"); body != nil {
		w.block(body)
	}
	for _, d := range decorators {
		for i := 0; i < int(d.NamedChildCount()); i++ {
			w.expr(d.NamedChild(i))
		}
	}
}

func (w *walker) decoratedDef(n *sitter.Node) {
	var decorators []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == "decorator" {
			decorators = append(decorators, child)
		}
	}
	def := n.ChildByFieldName("definition")
	if def == nil {
		return
	}
	switch def.Type() {
	case "function_definition":
		w.functionDef(def)
	case "class_definition":
		w.classDef(def, decorators)
	}
}

// expr walks an expression in load context.
func (w *walker) expr(n *sitter.Node) {
	switch n.Type() {
	case "identifier":
		w.loadName(w.text(n))

	case "assignment":
		if left := n.ChildByFieldName("left"); left != nil {
			w.store(left)
		}
		if typ := n.ChildByFieldName("type"); typ != nil {
			w.expr(typ)
		}
		if right := n.ChildByFieldName("right"); right != nil {
			w.expr(right)
		}

	case "augmented_assignment":
		if left := n.ChildByFieldName("left"); left != nil {
			w.store(left)
		}
		if right := n.ChildByFieldName("right"); right != nil {
			w.expr(right)
		}

	case "named_expression":
		if name := n.ChildByFieldName("name"); name != nil {
			w.store(name)
		}
		if value := n.ChildByFieldName("value"); value != nil {
			w.expr(value)
		}

	case "attribute":
		// Attribute names are not identifiers for dependency purposes.
		if object := n.ChildByFieldName("object"); object != nil {
			w.expr(object)
		}

	case "subscript":
		if value := n.ChildByFieldName("value"); value != nil {
			w.expr(value)
			for i := 0; i < int(n.NamedChildCount()); i++ {
				child := n.NamedChild(i)
				if child.StartByte() != value.StartByte() {
					w.expr(child)
				}
			}
		}

	case "call":
		if fn := n.ChildByFieldName("function"); fn != nil {
			w.expr(fn)
		}
		if args := n.ChildByFieldName("arguments"); args != nil {
			w.callArguments(args)
		}

	case "lambda":
		if params := n.ChildByFieldName("parameters"); params != nil {
			w.ignoreParams(params)
		}
		if body := n.ChildByFieldName("body"); body != nil {
			w.expr(body)
		}

	case "list_comprehension", "set_comprehension",
		"generator_expression", "dictionary_comprehension":
		w.comprehension(n)

	case "dictionary":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			w.expr(n.NamedChild(i))
		}

	case "pair":
		if key := n.ChildByFieldName("key"); key != nil {
			w.expr(key)
		}
		if value := n.ChildByFieldName("value"); value != nil {
			w.expr(value)
		}

	case "keyword_argument":
		if value := n.ChildByFieldName("value"); value != nil {
			w.expr(value)
		}

	case "as_pattern":
		if int(n.NamedChildCount()) > 0 {
			w.expr(n.NamedChild(0))
		}

	case "string", "concatenated_string":
		w.interpolations(n)

	case "binary_operator", "boolean_operator", "comparison_operator",
		"unary_operator", "not_operator", "conditional_expression",
		"await", "yield", "starred_expression", "list_splat",
		"dictionary_splat", "parenthesized_expression", "expression_list",
		"tuple", "list", "set", "slice", "type":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			w.expr(n.NamedChild(i))
		}

	case "integer", "float", "true", "false", "none", "ellipsis",
		"string_content", "escape_sequence", "comment":
	}
}

// interpolations walks the embedded expressions of f-strings, including
// nested format specifiers.
func (w *walker) interpolations(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "interpolation":
			if expr := child.ChildByFieldName("expression"); expr != nil {
				w.expr(expr)
			} else if int(child.NamedChildCount()) > 0 {
				w.expr(child.NamedChild(0))
			}
			if spec := child.ChildByFieldName("format_specifier"); spec != nil {
				w.interpolations(spec)
			}
		case "string":
			w.interpolations(child)
		}
	}
}

// callArguments walks an argument_list, descending into keyword argument
// values without treating keyword names as identifiers.
func (w *walker) callArguments(args *sitter.Node) {
	for i := 0; i < int(args.NamedChildCount()); i++ {
		w.expr(args.NamedChild(i))
	}
}

// store walks an assignment target.
func (w *walker) store(n *sitter.Node) {
	switch n.Type() {
	case "identifier":
		w.storeName(w.text(n))
	case "tuple_pattern", "list_pattern", "pattern_list",
		"tuple", "list", "expression_list", "parenthesized_expression":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			w.store(n.NamedChild(i))
		}
	case "list_splat_pattern", "starred_expression", "list_splat":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			w.store(n.NamedChild(i))
		}
	default:
		// Attribute and subscript targets mutate a value owned elsewhere;
		// the load walk of the base records the conflict as a requirement.
		w.expr(n)
	}
}

// deleteTarget handles `del` operands: plain names are in delete context and
// skipped, compound targets are load-walked.
func (w *walker) deleteTarget(n *sitter.Node) {
	switch n.Type() {
	case "identifier":
	case "expression_list", "tuple", "parenthesized_expression":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			w.deleteTarget(n.NamedChild(i))
		}
	default:
		w.expr(n)
	}
}

// comprehension pushes every binder name into the ignored set, then walks the
// iterables, the filters, and finally the produced element.
func (w *walker) comprehension(n *sitter.Node) {
	var clauses []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == "for_in_clause" {
			clauses = append(clauses, child)
			if left := child.ChildByFieldName("left"); left != nil {
				w.ignoreTargets(left)
			}
		}
	}
	for _, clause := range clauses {
		if right := clause.ChildByFieldName("right"); right != nil {
			w.expr(right)
		}
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == "if_clause" {
			for j := 0; j < int(child.NamedChildCount()); j++ {
				w.expr(child.NamedChild(j))
			}
		}
	}
	if body := n.ChildByFieldName("body"); body != nil {
		w.expr(body)
	}
}

// ignoreTargets adds every identifier in a binder pattern to the ignored set.
func (w *walker) ignoreTargets(n *sitter.Node) {
	switch n.Type() {
	case "identifier":
		w.cell.Ignored.Add(w.text(n))
	case "tuple_pattern", "list_pattern", "pattern_list", "tuple", "list",
		"parenthesized_expression", "list_splat_pattern", "dictionary_splat_pattern":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			w.ignoreTargets(n.NamedChild(i))
		}
	}
}

// ignoreParams adds every parameter name of a function or lambda to the
// ignored set.
func (w *walker) ignoreParams(params *sitter.Node) {
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		switch p.Type() {
		case "identifier":
			w.cell.Ignored.Add(w.text(p))
		case "default_parameter", "typed_default_parameter":
			if name := p.ChildByFieldName("name"); name != nil {
				w.cell.Ignored.Add(w.text(name))
			}
		case "typed_parameter":
			if int(p.NamedChildCount()) > 0 && p.NamedChild(0).Type() == "identifier" {
				w.cell.Ignored.Add(w.text(p.NamedChild(0)))
			}
		case "list_splat_pattern", "dictionary_splat_pattern", "tuple_pattern":
			w.ignoreTargets(p)
		}
	}
}

package analysis

import (
	"log/slog"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/reactant-dev/reactant/internal/domain"
)

// SplitStatements walks the top level of a parsed cell and emits one
// Statement per non-comment node, in source order; comment nodes produce no
// Statement. Overlapping spans are a parser quirk;
// the later node is dropped with a warning so every source line belongs to at
// most one statement.
func SplitStatements(root *sitter.Node, source []byte) []domain.Statement {
	var statements []domain.Statement
	text := string(source)

	for i := 0; i < int(root.NamedChildCount()); i++ {
		node := root.NamedChild(i)
		if node.Type() == "comment" {
			continue
		}

		span := spanOf(node)
		overlaps := false
		for _, existing := range statements {
			if existing.Span.Intersects(span) {
				overlaps = true
				break
			}
		}
		if overlaps {
			slog.Warn("dropping statement with overlapping span",
				"row", span.StartRow,
				"type", node.Type())
			continue
		}

		statements = append(statements, domain.Statement{
			Span:    span,
			Kind:    classifyStatement(node),
			Content: span.Extract(text),
		})
	}

	return statements
}

// classifyStatement maps a top-level node to its execution kind.
func classifyStatement(node *sitter.Node) domain.StatementKind {
	switch node.Type() {
	case "import_statement", "import_from_statement", "future_import_statement",
		"function_definition", "class_definition", "decorated_definition":
		return domain.StatementDefinition
	case "expression_statement":
		// Tree-sitter parses `a = 1` as an expression_statement wrapping an
		// assignment; only genuinely bare expressions are Evaluate.
		for i := 0; i < int(node.NamedChildCount()); i++ {
			switch node.NamedChild(i).Type() {
			case "assignment", "augmented_assignment":
				return domain.StatementExecute
			}
		}
		return domain.StatementEvaluate
	default:
		return domain.StatementExecute
	}
}

func spanOf(node *sitter.Node) domain.Span {
	return domain.Span{
		StartRow: int(node.StartPoint().Row) + 1,
		StartCol: int(node.StartPoint().Column),
		EndRow:   int(node.EndPoint().Row) + 1,
		EndCol:   int(node.EndPoint().Column),
	}
}

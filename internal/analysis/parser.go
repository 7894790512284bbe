package analysis

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/reactant-dev/reactant/internal/domain/errors"
)

// Parser wraps a Tree-sitter parser configured for Python source. It is not
// safe for concurrent use; callers serialize through the topology lock.
type Parser struct {
	inner *sitter.Parser
}

// NewParser creates a new Parser.
func NewParser() *Parser {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())
	return &Parser{inner: p}
}

// Parse parses source and returns the syntax tree. A tree containing error or
// missing nodes is rejected with a ParseError locating the first such node.
// The caller owns the returned tree and must Close it.
func (p *Parser) Parse(ctx context.Context, source []byte) (*sitter.Tree, error) {
	tree, err := p.inner.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, errors.NewParseError(0, 0, err.Error())
	}
	root := tree.RootNode()
	if root.HasError() {
		bad := firstErrorNode(root)
		line, col := 0, 0
		msg := "invalid syntax"
		if bad != nil {
			line = int(bad.StartPoint().Row) + 1
			col = int(bad.StartPoint().Column)
			if bad.IsMissing() {
				msg = fmt.Sprintf("missing %s", bad.Type())
			}
		}
		tree.Close()
		return nil, errors.NewParseError(line, col, msg)
	}
	return tree, nil
}

// firstErrorNode finds the shallowest, leftmost ERROR or missing node.
func firstErrorNode(n *sitter.Node) *sitter.Node {
	if n.Type() == "ERROR" || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if !child.HasError() && !child.IsMissing() {
			continue
		}
		if found := firstErrorNode(child); found != nil {
			return found
		}
	}
	return nil
}

package notebook

type DefinitionBuilder struct {
	d Definition
}

func NewDefinitionBuilder() *DefinitionBuilder {
	return &DefinitionBuilder{d: Definition{Language: "python"}}
}

func (b *DefinitionBuilder) Title(title string) *DefinitionBuilder { b.d.Title = title; return b }
func (b *DefinitionBuilder) Language(lang string) *DefinitionBuilder {
	b.d.Language = lang
	return b
}

// Code appends a reactive code cell.
func (b *DefinitionBuilder) Code(source string) *DefinitionBuilder {
	b.d.Cells = append(b.d.Cells, CellDef{Type: TypeReactiveCode, Content: source})
	return b
}

// RawCode appends a non-reactive code cell.
func (b *DefinitionBuilder) RawCode(source string) *DefinitionBuilder {
	b.d.Cells = append(b.d.Cells, CellDef{Type: TypeNonReactiveCode, Content: source})
	return b
}

// Markdown appends an inert text cell.
func (b *DefinitionBuilder) Markdown(text string) *DefinitionBuilder {
	b.d.Cells = append(b.d.Cells, CellDef{Type: TypeMarkdown, Content: text})
	return b
}

func (b *DefinitionBuilder) Build() Definition { return b.d }

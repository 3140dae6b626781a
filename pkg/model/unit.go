package model

// Language is the tag a front end is registered under (e.g. "go", "python").
type Language string

const (
	LangGo         Language = "go"
	LangPython     Language = "python"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangUnknown    Language = "unknown"
)

// SymbolKind classifies a declared program element.
type SymbolKind string

const (
	SymbolFunction SymbolKind = "function"
	SymbolType     SymbolKind = "type"
	SymbolModule   SymbolKind = "module"
)

// ReferenceKind is the kind of a raw dependency observed in source.
type ReferenceKind string

const (
	RefImport      ReferenceKind = "import"
	RefCall        ReferenceKind = "call"
	RefInheritance ReferenceKind = "inheritance"
	RefComposition ReferenceKind = "composition"
)

// Span is a 1-based source position.
type Span struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// FileRef is one entry of the project file enumeration.
type FileRef struct {
	Path     string   `json:"path"`
	Language Language `json:"language"`
}

// SourceUnit is the normalized parse result of one file. Front ends produce it;
// nothing downstream mutates it.
type SourceUnit struct {
	Path       string          `json:"path"`
	Language   Language        `json:"language"`
	Symbols    []Symbol        `json:"symbols"`
	References []Reference     `json:"references"`
	Resolution ResolutionTable `json:"resolution,omitempty"`
}

// Symbol is a named, locatable program element declared in a SourceUnit.
// Name is qualified and unique within its unit (e.g. "Server.Start").
type Symbol struct {
	Name  string            `json:"name"`
	Kind  SymbolKind        `json:"kind"`
	Span  Span              `json:"span"`
	Shape *ControlFlowShape `json:"shape,omitempty"`
}

// Reference is an unresolved dependency as written in source. From is the
// qualified name of the enclosing symbol, or empty at file level.
type Reference struct {
	From   string        `json:"from,omitempty"`
	Target string        `json:"target"`
	Kind   ReferenceKind `json:"kind"`
	Span   Span          `json:"span"`
}

// Resolution lists candidate unit paths for a reference target, in priority
// order. A path ending in "/" stands for every unit in that directory. When
// Symbol is set only units declaring that symbol qualify.
type Resolution struct {
	Paths  []string `json:"paths"`
	Symbol string   `json:"symbol,omitempty"`
}

// ResolutionTable maps reference targets, as written, to their candidates.
type ResolutionTable map[string]Resolution

// Declares reports whether the unit declares a symbol named name, either by
// its qualified name or by its last dotted segment.
func (u *SourceUnit) Declares(name string) bool {
	for _, s := range u.Symbols {
		if s.Name == name || lastSegment(s.Name) == name {
			return true
		}
	}
	return false
}

// Functions returns the function-kind symbols of the unit.
func (u *SourceUnit) Functions() []Symbol {
	var fns []Symbol
	for _, s := range u.Symbols {
		if s.Kind == SymbolFunction {
			fns = append(fns, s)
		}
	}
	return fns
}

func lastSegment(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[i+1:]
		}
	}
	return name
}

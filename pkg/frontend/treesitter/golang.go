package treesitter

import (
	"path"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/ritzau/codegraph/pkg/model"
)

// GoModule locates the project's own module so internal imports resolve to
// directories. Dir is the module root relative to the project root.
type GoModule struct {
	Path string
	Dir  string
}

// dirOf maps an import path inside the module to its directory.
func (m GoModule) dirOf(importPath string) (string, bool) {
	if m.Path == "" {
		return "", false
	}
	if importPath == m.Path {
		return path.Clean(m.Dir), true
	}
	rest, ok := strings.CutPrefix(importPath, m.Path+"/")
	if !ok {
		return "", false
	}
	return path.Join(m.Dir, rest), true
}

var goGrammar = &grammar{
	loops:       set("for_statement"),
	branches:    set("if_statement", "expression_switch_statement", "type_switch_statement", "select_statement"),
	calls:       set("call_expression"),
	numbers:     set("int_literal", "float_literal"),
	idents:      set("identifier"),
	declParents: set("short_var_declaration", "assignment_statement", "range_clause", "var_spec"),
	boundaries:  set(),
	builtins:    set("true", "false"),
	assignments: map[string][2]string{
		"short_var_declaration": {"left", "right"},
		"assignment_statement":  {"left", "right"},
	},
	library: goLibrary,
}

var goRoutines = map[string]model.LibraryKind{
	"sort.Slice":              model.LibrarySort,
	"sort.SliceStable":        model.LibrarySort,
	"sort.Sort":               model.LibrarySort,
	"sort.Stable":             model.LibrarySort,
	"sort.Ints":               model.LibrarySort,
	"sort.Strings":            model.LibrarySort,
	"sort.Float64s":           model.LibrarySort,
	"slices.Sort":             model.LibrarySort,
	"slices.SortFunc":         model.LibrarySort,
	"slices.SortStableFunc":   model.LibrarySort,
	"sort.Search":             model.LibrarySearch,
	"sort.SearchInts":         model.LibrarySearch,
	"sort.SearchStrings":      model.LibrarySearch,
	"sort.SearchFloat64s":     model.LibrarySearch,
	"slices.BinarySearch":     model.LibrarySearch,
	"slices.BinarySearchFunc": model.LibrarySearch,
}

func goLibrary(callee string) (model.LibraryKind, bool) {
	k, ok := goRoutines[callee]
	return k, ok
}

var goBuiltins = set(
	"append", "cap", "clear", "close", "complex", "copy", "delete", "imag",
	"len", "make", "max", "min", "new", "panic", "print", "println", "real",
	"recover",
	"bool", "byte", "complex64", "complex128", "error", "float32", "float64",
	"int", "int8", "int16", "int32", "int64", "rune", "string",
	"uint", "uint8", "uint16", "uint32", "uint64", "uintptr", "any",
)

// NewGo returns the Go front end. Imports under mod resolve to package
// directories; everything else is external.
func NewGo(mod GoModule) *Frontend {
	return &Frontend{
		lang:    model.LangGo,
		grammar: func(string) *sitter.Language { return golang.GetLanguage() },
		newExtr: func(filePath string, src []byte) extractor {
			return &goExtractor{unitBuilder: newUnitBuilder(filePath, model.LangGo), src: src, mod: mod}
		},
	}
}

type goExtractor struct {
	*unitBuilder
	src []byte
	mod GoModule
	// packages maps local package names of internal imports to directories.
	packages map[string]string
}

func (x *goExtractor) extract(root *sitter.Node) {
	x.packages = make(map[string]string)
	for _, n := range namedChildren(root) {
		if n.Type() == "import_declaration" {
			x.imports(n)
		}
	}

	for _, n := range namedChildren(root) {
		switch n.Type() {
		case "function_declaration":
			name := text(field(n, "name"), x.src)
			x.function(n, name, selfNames(name))
		case "method_declaration":
			recvName, recvType := x.receiver(n)
			method := text(field(n, "name"), x.src)
			name := method
			if recvType != "" {
				name = recvType + "." + method
			}
			self := selfNames(method, recvName, recvType)
			// A bare call names a package function, never the method.
			delete(self, method)
			x.function(n, name, self)
		case "type_declaration":
			for _, spec := range namedChildren(n) {
				if spec.Type() == "type_spec" || spec.Type() == "type_alias" {
					x.typeSpec(spec)
				}
			}
		}
	}
}

func (x *goExtractor) imports(decl *sitter.Node) {
	walk(decl, func(n *sitter.Node) bool {
		if n.Type() != "import_spec" {
			return true
		}
		importPath := unquote(text(field(n, "path"), x.src))
		alias := text(field(n, "name"), x.src)
		x.addReference(model.Reference{Target: importPath, Kind: model.RefImport, Span: spanOf(n)})

		dir, internal := x.mod.dirOf(importPath)
		if !internal {
			return false
		}
		x.resolve(importPath, model.Resolution{Paths: []string{dirCandidate(dir)}})
		switch alias {
		case "_", ".":
		case "":
			x.packages[path.Base(importPath)] = dir
		default:
			x.packages[alias] = dir
		}
		return false
	})
}

// receiver returns the receiver variable and its base type name.
func (x *goExtractor) receiver(method *sitter.Node) (string, string) {
	for _, p := range namedChildren(field(method, "receiver")) {
		if p.Type() != "parameter_declaration" {
			continue
		}
		return text(field(p, "name"), x.src), baseType(field(p, "type"), x.src)
	}
	return "", ""
}

// baseType strips pointers and type arguments: *Server[T] becomes Server.
func baseType(n *sitter.Node, src []byte) string {
	for n != nil {
		switch n.Type() {
		case "pointer_type", "parenthesized_type":
			n = n.NamedChild(0)
		case "generic_type":
			n = field(n, "type")
		default:
			return text(n, src)
		}
	}
	return ""
}

func (x *goExtractor) function(n *sitter.Node, name string, self map[string]bool) {
	shape := goGrammar.analyzeShape(x.src, shapeInput{body: field(n, "body"), selfNames: self})
	name = x.addSymbol(name, model.SymbolFunction, n, shape)
	x.references(field(n, "body"), name)
	x.references(field(n, "parameters"), name)
	x.references(field(n, "result"), name)
}

func (x *goExtractor) typeSpec(spec *sitter.Node) {
	name := x.addSymbol(text(field(spec, "name"), x.src), model.SymbolType, spec, nil)
	typ := field(spec, "type")
	if typ == nil {
		return
	}
	if typ.Type() == "struct_type" || typ.Type() == "interface_type" {
		x.members(typ, name)
		return
	}
	x.references(typ, name)
}

// members records field types as composition and embedded types as
// inheritance.
func (x *goExtractor) members(typ *sitter.Node, from string) {
	walk(typ, func(n *sitter.Node) bool {
		switch n.Type() {
		case "field_declaration":
			kind := model.RefComposition
			if field(n, "name") == nil {
				kind = model.RefInheritance
			}
			x.typeRefs(field(n, "type"), from, kind)
			return false
		case "type_elem", "constraint_elem":
			x.typeRefs(n, from, model.RefInheritance)
			return false
		case "method_spec", "method_elem":
			x.references(n, from)
			return false
		}
		return true
	})
}

// references records calls and type uses below n.
func (x *goExtractor) references(n *sitter.Node, from string) {
	walk(n, func(c *sitter.Node) bool {
		switch c.Type() {
		case "call_expression":
			x.call(c, from)
		case "composite_literal":
			x.typeRefs(field(c, "type"), from, model.RefComposition)
		case "qualified_type":
			x.typeRefs(c, from, model.RefComposition)
			return false
		}
		return true
	})
}

func (x *goExtractor) call(c *sitter.Node, from string) {
	fn := field(c, "function")
	if fn == nil {
		return
	}
	switch fn.Type() {
	case "identifier":
		name := text(fn, x.src)
		if goBuiltins[name] {
			return
		}
		x.addReference(model.Reference{From: from, Target: name, Kind: model.RefCall, Span: spanOf(c)})
		x.resolve(name, model.Resolution{Paths: []string{dirCandidate(x.dir())}, Symbol: name})
	case "selector_expression":
		x.qualified(field(fn, "operand"), field(fn, "field"), from, model.RefCall, c)
	}
}

// typeRefs records the named types used in a type expression.
func (x *goExtractor) typeRefs(t *sitter.Node, from string, kind model.ReferenceKind) {
	walk(t, func(n *sitter.Node) bool {
		switch n.Type() {
		case "qualified_type":
			x.qualified(field(n, "package"), field(n, "name"), from, kind, n)
			return false
		case "type_identifier":
			name := text(n, x.src)
			// Single letters are almost always type parameters.
			if goBuiltins[name] || len(name) == 1 {
				return false
			}
			x.addReference(model.Reference{From: from, Target: name, Kind: kind, Span: spanOf(n)})
			x.resolve(name, model.Resolution{Paths: []string{dirCandidate(x.dir())}, Symbol: name})
			return false
		}
		return true
	})
}

// qualified records pkg.Name when pkg is an internal import. External
// packages are already covered by their import reference.
func (x *goExtractor) qualified(pkg, name *sitter.Node, from string, kind model.ReferenceKind, site *sitter.Node) {
	if pkg == nil || name == nil || pkg.Type() != "identifier" && pkg.Type() != "package_identifier" {
		return
	}
	dir, ok := x.packages[text(pkg, x.src)]
	if !ok {
		return
	}
	symbol := text(name, x.src)
	target := text(pkg, x.src) + "." + symbol
	x.addReference(model.Reference{From: from, Target: target, Kind: kind, Span: spanOf(site)})
	x.resolve(target, model.Resolution{Paths: []string{dirCandidate(dir)}, Symbol: symbol})
}

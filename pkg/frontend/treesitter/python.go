package treesitter

import (
	"path"
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/ritzau/codegraph/pkg/model"
)

var pyComprehensions = set("list_comprehension", "set_comprehension", "dictionary_comprehension", "generator_expression")

var pyGrammar = &grammar{
	loops:       set("for_statement", "while_statement"),
	branches:    set("if_statement", "elif_clause", "conditional_expression"),
	calls:       set("call"),
	numbers:     set("integer", "float"),
	idents:      set("identifier"),
	declParents: set("for_statement", "for_in_clause", "assignment", "augmented_assignment", "named_expression"),
	boundaries:  set("function_definition", "class_definition", "decorated_definition"),
	builtins:    set("range"),
	assignments: map[string][2]string{
		"assignment": {"left", "right"},
	},
	extraLevels: func(g *grammar, n *sitter.Node, src []byte) int {
		if !pyComprehensions[n.Type()] {
			return 0
		}
		levels := 0
		for _, c := range namedChildren(n) {
			if c.Type() == "for_in_clause" && g.inputBounded(c, src) {
				levels++
			}
		}
		return levels
	},
	library: pyLibrary,
}

func pyLibrary(callee string) (model.LibraryKind, bool) {
	switch callee {
	case "sorted", "heapq.nsmallest", "heapq.nlargest":
		return model.LibrarySort, true
	case "bisect.bisect", "bisect.bisect_left", "bisect.bisect_right", "bisect_left", "bisect_right":
		return model.LibrarySearch, true
	}
	if strings.HasSuffix(callee, ".sort") {
		return model.LibrarySort, true
	}
	return "", false
}

var pyBuiltins = set(
	"abs", "all", "any", "bool", "bytes", "callable", "chr", "dict", "dir",
	"divmod", "enumerate", "filter", "float", "format", "frozenset", "getattr",
	"hasattr", "hash", "id", "input", "int", "isinstance", "issubclass", "iter",
	"len", "list", "map", "max", "min", "next", "object", "open", "ord", "pow",
	"print", "range", "repr", "reversed", "round", "set", "setattr", "slice",
	"sorted", "str", "sum", "super", "tuple", "type", "vars", "zip",
)

// NewPython returns the Python front end. Module imports resolve against the
// project root and the importing file's directory.
func NewPython() *Frontend {
	return &Frontend{
		lang:    model.LangPython,
		grammar: func(string) *sitter.Language { return python.GetLanguage() },
		newExtr: func(filePath string, src []byte) extractor {
			return &pyExtractor{unitBuilder: newUnitBuilder(filePath, model.LangPython), src: src}
		},
	}
}

// pyBinding is a name bound by an import. modules are the files the name
// denotes when it is a module; owners are the files defining it otherwise.
type pyBinding struct {
	modules []string
	owners  []string
	symbol  string
}

type pyExtractor struct {
	*unitBuilder
	src      []byte
	bindings map[string]pyBinding
	// locals are the top-level functions and classes of the file.
	locals map[string]bool
}

func (x *pyExtractor) extract(root *sitter.Node) {
	x.bindings = make(map[string]pyBinding)
	x.locals = make(map[string]bool)
	for _, n := range namedChildren(root) {
		if def := pyDefinition(n); def != nil {
			x.locals[text(field(def, "name"), x.src)] = true
		}
	}

	walk(root, func(n *sitter.Node) bool {
		switch n.Type() {
		case "import_statement":
			x.importModules(n)
			return false
		case "import_from_statement":
			x.importFrom(n)
			return false
		}
		return true
	})

	x.block(root, "", "")
}

// pyDefinition unwraps decorators.
func pyDefinition(n *sitter.Node) *sitter.Node {
	switch n.Type() {
	case "function_definition", "class_definition":
		return n
	case "decorated_definition":
		return field(n, "definition")
	}
	return nil
}

// block extracts the definitions directly in n and the references of its
// other statements. prefix qualifies nested names; class is the enclosing
// class, if any.
func (x *pyExtractor) block(n *sitter.Node, prefix, class string) {
	for _, c := range namedChildren(n) {
		def := pyDefinition(c)
		if def == nil {
			x.references(c, prefix)
			continue
		}
		name := text(field(def, "name"), x.src)
		qualified := name
		if prefix != "" {
			qualified = prefix + "." + name
		}
		if def.Type() == "class_definition" {
			x.class(def, qualified)
			continue
		}
		receivers := []string{"self", "cls"}
		if class != "" {
			receivers = append(receivers, class)
		}
		shape := pyGrammar.analyzeShape(x.src, shapeInput{
			body:      field(def, "body"),
			selfNames: selfNames(name, receivers...),
			scope:     c,
		})
		qualified = x.addSymbol(qualified, model.SymbolFunction, def, shape)
		x.references(field(def, "parameters"), qualified)
		x.block(field(def, "body"), qualified, "")
	}
}

func (x *pyExtractor) class(def *sitter.Node, name string) {
	name = x.addSymbol(name, model.SymbolType, def, nil)
	for _, base := range namedChildren(field(def, "superclasses")) {
		switch base.Type() {
		case "identifier", "attribute":
			x.use(text(base, x.src), name, model.RefInheritance, base)
		}
	}
	x.block(field(def, "body"), name, text(field(def, "name"), x.src))
}

// references records calls below n, stopping at nested definitions.
func (x *pyExtractor) references(n *sitter.Node, from string) {
	walk(n, func(c *sitter.Node) bool {
		if pyDefinition(c) != nil {
			return false
		}
		if c.Type() == "call" {
			callee := pyGrammar.callee(c, x.src)
			kind := model.RefCall
			if last := callee[strings.LastIndex(callee, ".")+1:]; last != "" && unicode.IsUpper(rune(last[0])) {
				kind = model.RefComposition
			}
			x.use(callee, from, kind, c)
		}
		return true
	})
}

// use records a reference to name if it denotes something in the project.
func (x *pyExtractor) use(name, from string, kind model.ReferenceKind, site *sitter.Node) {
	if name == "" || pyBuiltins[name] {
		return
	}
	if b, ok := x.bindings[name]; ok && len(b.owners) > 0 {
		x.addReference(model.Reference{From: from, Target: name, Kind: kind, Span: spanOf(site)})
		x.resolve(name, model.Resolution{Paths: b.owners, Symbol: b.symbol})
		return
	}
	if x.locals[name] {
		x.addReference(model.Reference{From: from, Target: name, Kind: kind, Span: spanOf(site)})
		x.resolve(name, model.Resolution{Paths: []string{x.u.Path}, Symbol: name})
		return
	}

	// module.attr: find the longest bound module prefix.
	parts := strings.Split(name, ".")
	for i := len(parts) - 1; i > 0; i-- {
		b, ok := x.bindings[strings.Join(parts[:i], ".")]
		if !ok {
			continue
		}
		x.addReference(model.Reference{From: from, Target: name, Kind: kind, Span: spanOf(site)})
		x.resolve(name, model.Resolution{
			Paths:  append(append([]string{}, b.modules...), b.owners...),
			Symbol: parts[i],
		})
		return
	}
}

func (x *pyExtractor) importModules(n *sitter.Node) {
	for _, name := range fieldAll(n, "name") {
		module, alias := x.aliased(name)
		x.addReference(model.Reference{Target: module, Kind: model.RefImport, Span: spanOf(name)})
		candidates := x.moduleCandidates("", module)
		x.resolve(module, model.Resolution{Paths: candidates})
		if alias == "" {
			alias = module
		}
		x.bindings[alias] = pyBinding{modules: candidates}
	}
}

func (x *pyExtractor) importFrom(n *sitter.Node) {
	moduleNode := field(n, "module_name")
	module := text(moduleNode, x.src)
	base, rel := "", module
	if moduleNode != nil && moduleNode.Type() == "relative_import" {
		base, rel = x.relative(moduleNode)
	}

	owners := x.moduleCandidates(base, rel)
	var paths []string
	paths = append(paths, owners...)
	for _, name := range fieldAll(n, "name") {
		imported, alias := x.aliased(name)
		if alias == "" {
			alias = imported
		}
		sub := x.moduleCandidates(base, joinDotted(rel, imported))
		paths = append(paths, sub...)
		x.bindings[alias] = pyBinding{modules: sub, owners: owners, symbol: imported}
	}
	x.addReference(model.Reference{Target: module, Kind: model.RefImport, Span: spanOf(n)})
	x.resolve(module, model.Resolution{Paths: paths})
}

// relative splits ".pkg.mod" into the directory the dots select and the
// dotted remainder.
func (x *pyExtractor) relative(n *sitter.Node) (string, string) {
	raw := text(n, x.src)
	dots := len(raw) - len(strings.TrimLeft(raw, "."))
	dir := x.dir()
	for range dots - 1 {
		dir = path.Dir(dir)
	}
	return dir, strings.TrimSpace(raw[dots:])
}

func (x *pyExtractor) aliased(n *sitter.Node) (string, string) {
	if n.Type() == "aliased_import" {
		return text(field(n, "name"), x.src), text(field(n, "alias"), x.src)
	}
	return text(n, x.src), ""
}

// moduleCandidates lists the files a dotted module may live in. Absolute
// modules (base "") are tried from the project root, then next to the
// importing file.
func (x *pyExtractor) moduleCandidates(base, dotted string) []string {
	bases := []string{base}
	if base == "" {
		bases = []string{".", x.dir()}
	}
	rel := strings.ReplaceAll(dotted, ".", "/")
	var out []string
	seen := make(map[string]bool)
	for _, b := range bases {
		var files []string
		if rel == "" {
			files = []string{path.Join(b, "__init__.py")}
		} else {
			files = []string{path.Join(b, rel+".py"), path.Join(b, rel, "__init__.py")}
		}
		for _, f := range files {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out
}

func joinDotted(a, b string) string {
	if a == "" {
		return b
	}
	return a + "." + b
}

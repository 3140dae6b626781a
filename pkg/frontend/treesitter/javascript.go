package treesitter

import (
	"path"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/ritzau/codegraph/pkg/model"
)

var jsIterators = set("forEach", "map", "filter", "reduce", "reduceRight", "some", "every", "find", "findIndex", "flatMap")

var jsFunctionValues = set("arrow_function", "function", "function_expression", "generator_function")

var jsDeclarations = set("function_declaration", "generator_function_declaration", "class_declaration",
	"abstract_class_declaration", "class", "method_definition")

var jsGrammar = &grammar{
	loops:       set("for_statement", "for_in_statement", "while_statement", "do_statement"),
	branches:    set("if_statement", "ternary_expression", "switch_statement"),
	armWrappers: set("switch_body"),
	calls:       set("call_expression"),
	numbers:     set("number"),
	idents:      set("identifier"),
	declParents: set("variable_declarator", "assignment_expression", "for_in_statement"),
	boundaries:  jsDeclarations,
	assignments: map[string][2]string{
		"variable_declarator":   {"name", "value"},
		"assignment_expression": {"left", "right"},
	},
	// items.map(x => ...) iterates the receiver once per element.
	extraLevels: func(_ *grammar, n *sitter.Node, src []byte) int {
		if n.Type() != "call_expression" {
			return 0
		}
		fn := field(n, "function")
		if fn == nil || fn.Type() != "member_expression" || !jsIterators[text(field(fn, "property"), src)] {
			return 0
		}
		for _, arg := range namedChildren(field(n, "arguments")) {
			if jsFunctionValues[arg.Type()] {
				return 1
			}
		}
		return 0
	},
	library: jsLibrary,
}

func jsLibrary(callee string) (model.LibraryKind, bool) {
	switch {
	case callee == "_.sortBy", callee == "_.orderBy",
		strings.HasSuffix(callee, ".sort"), strings.HasSuffix(callee, ".toSorted"):
		return model.LibrarySort, true
	case callee == "_.sortedIndex", callee == "_.sortedIndexOf", callee == "_.sortedIndexBy":
		return model.LibrarySearch, true
	}
	return "", false
}

var jsExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"}

// NewJavaScript returns the JavaScript front end, JSX included.
func NewJavaScript() *Frontend {
	return &Frontend{
		lang:    model.LangJavaScript,
		grammar: func(string) *sitter.Language { return javascript.GetLanguage() },
		newExtr: func(filePath string, src []byte) extractor {
			return newJSExtractor(filePath, model.LangJavaScript, src)
		},
	}
}

// NewTypeScript returns the TypeScript front end. Files ending in .tsx are
// parsed with the TSX grammar.
func NewTypeScript() *Frontend {
	return &Frontend{
		lang: model.LangTypeScript,
		grammar: func(filePath string) *sitter.Language {
			if strings.EqualFold(path.Ext(filePath), ".tsx") {
				return tsx.GetLanguage()
			}
			return typescript.GetLanguage()
		},
		newExtr: func(filePath string, src []byte) extractor {
			return newJSExtractor(filePath, model.LangTypeScript, src)
		},
	}
}

// jsBinding is a name bound by an import or require. A namespace binding
// stands for the whole module.
type jsBinding struct {
	paths     []string
	symbol    string
	namespace bool
}

type jsExtractor struct {
	*unitBuilder
	src      []byte
	bindings map[string]jsBinding
	locals   map[string]bool
}

func newJSExtractor(filePath string, lang model.Language, src []byte) *jsExtractor {
	return &jsExtractor{
		unitBuilder: newUnitBuilder(filePath, lang),
		src:         src,
		bindings:    make(map[string]jsBinding),
		locals:      make(map[string]bool),
	}
}

func (x *jsExtractor) extract(root *sitter.Node) {
	for _, n := range namedChildren(root) {
		for _, name := range x.declaredNames(n) {
			x.locals[name] = true
		}
	}
	x.modules(root)
	x.block(root, "")
}

// declaredNames lists the top-level names a statement declares.
func (x *jsExtractor) declaredNames(n *sitter.Node) []string {
	switch n.Type() {
	case "export_statement":
		if d := field(n, "declaration"); d != nil {
			return x.declaredNames(d)
		}
	case "function_declaration", "generator_function_declaration", "class_declaration",
		"abstract_class_declaration", "interface_declaration", "type_alias_declaration", "enum_declaration":
		return []string{text(field(n, "name"), x.src)}
	case "lexical_declaration", "variable_declaration":
		var names []string
		for _, d := range namedChildren(n) {
			if name := field(d, "name"); name != nil && name.Type() == "identifier" {
				names = append(names, text(name, x.src))
			}
		}
		return names
	}
	return nil
}

// modules records static imports, re-exports, require calls and dynamic
// imports anywhere in the file.
func (x *jsExtractor) modules(root *sitter.Node) {
	walk(root, func(n *sitter.Node) bool {
		switch n.Type() {
		case "import_statement":
			x.importStatement(n)
			return false
		case "export_statement":
			if src := field(n, "source"); src != nil {
				x.module(unquote(text(src, x.src)), n)
			}
		case "call_expression":
			fn := field(n, "function")
			if fn == nil || (fn.Type() != "import" && text(fn, x.src) != "require") {
				return true
			}
			args := namedChildren(field(n, "arguments"))
			if len(args) == 0 || args[0].Type() != "string" {
				return true
			}
			paths := x.module(unquote(text(args[0], x.src)), n)
			if decl := n.Parent(); decl != nil && decl.Type() == "variable_declarator" {
				x.bindRequire(field(decl, "name"), paths)
			}
		}
		return true
	})
}

func (x *jsExtractor) importStatement(n *sitter.Node) {
	paths := x.module(unquote(text(field(n, "source"), x.src)), n)
	for _, clause := range namedChildren(n) {
		if clause.Type() != "import_clause" {
			continue
		}
		for _, c := range namedChildren(clause) {
			switch c.Type() {
			case "identifier":
				x.bindings[text(c, x.src)] = jsBinding{paths: paths}
			case "namespace_import":
				for _, id := range namedChildren(c) {
					x.bindings[text(id, x.src)] = jsBinding{paths: paths, namespace: true}
				}
			case "named_imports":
				for _, spec := range namedChildren(c) {
					if spec.Type() != "import_specifier" {
						continue
					}
					name := text(field(spec, "name"), x.src)
					alias := text(field(spec, "alias"), x.src)
					if alias == "" {
						alias = name
					}
					x.bindings[alias] = jsBinding{paths: paths, symbol: name}
				}
			}
		}
	}
}

// bindRequire binds const m = require(...) and const {a, b: c} = require(...).
func (x *jsExtractor) bindRequire(target *sitter.Node, paths []string) {
	if target == nil {
		return
	}
	switch target.Type() {
	case "identifier":
		x.bindings[text(target, x.src)] = jsBinding{paths: paths, namespace: true}
	case "object_pattern":
		for _, p := range namedChildren(target) {
			switch p.Type() {
			case "shorthand_property_identifier_pattern":
				name := text(p, x.src)
				x.bindings[name] = jsBinding{paths: paths, symbol: name}
			case "pair_pattern":
				x.bindings[text(field(p, "value"), x.src)] = jsBinding{paths: paths, symbol: text(field(p, "key"), x.src)}
			}
		}
	}
}

// module records an import of spec and returns its candidate files.
// Package specifiers have none and stay external.
func (x *jsExtractor) module(spec string, site *sitter.Node) []string {
	if spec == "" {
		return nil
	}
	x.addReference(model.Reference{Target: spec, Kind: model.RefImport, Span: spanOf(site)})
	if !strings.HasPrefix(spec, "./") && !strings.HasPrefix(spec, "../") && spec != "." && spec != ".." {
		return nil
	}
	paths := jsCandidates(path.Join(x.dir(), spec))
	x.resolve(spec, model.Resolution{Paths: paths})
	return paths
}

// jsCandidates lists the files a relative specifier may name: the path as
// written, with each extension, then as a directory index. A ".js"
// specifier also matches its TypeScript source.
func jsCandidates(base string) []string {
	out := []string{base}
	if ext := path.Ext(base); ext == ".js" || ext == ".jsx" || ext == ".mjs" || ext == ".cjs" {
		stem := strings.TrimSuffix(base, ext)
		out = append(out, stem+".ts", stem+".tsx")
	}
	for _, ext := range jsExtensions {
		out = append(out, base+ext)
	}
	for _, ext := range jsExtensions {
		out = append(out, path.Join(base, "index"+ext))
	}
	return out
}

// block extracts the declarations directly in n. Other statements only
// contribute references.
func (x *jsExtractor) block(n *sitter.Node, prefix string) {
	for _, c := range namedChildren(n) {
		x.statement(c, prefix)
	}
}

func (x *jsExtractor) statement(n *sitter.Node, prefix string) {
	switch n.Type() {
	case "export_statement":
		if d := field(n, "declaration"); d != nil {
			x.statement(d, prefix)
			return
		}
		if v := field(n, "value"); v != nil && jsFunctionValues[v.Type()] {
			x.function(v, qualify(prefix, "default"), "default", "")
			return
		}
		x.references(n, prefix)
	case "function_declaration", "generator_function_declaration":
		name := text(field(n, "name"), x.src)
		x.function(n, qualify(prefix, name), name, "")
	case "class_declaration", "abstract_class_declaration":
		x.class(n, qualify(prefix, text(field(n, "name"), x.src)))
	case "interface_declaration":
		name := x.addSymbol(qualify(prefix, text(field(n, "name"), x.src)), model.SymbolType, n, nil)
		for _, c := range namedChildren(n) {
			if c.Type() == "extends_type_clause" {
				x.heritage(c, name)
			}
		}
	case "type_alias_declaration", "enum_declaration":
		x.addSymbol(qualify(prefix, text(field(n, "name"), x.src)), model.SymbolType, n, nil)
	case "lexical_declaration", "variable_declaration":
		for _, d := range namedChildren(n) {
			value := field(d, "value")
			nameNode := field(d, "name")
			if d.Type() == "variable_declarator" && value != nil && jsFunctionValues[value.Type()] &&
				nameNode != nil && nameNode.Type() == "identifier" {
				name := text(nameNode, x.src)
				x.function(value, qualify(prefix, name), name, "")
				continue
			}
			x.references(d, prefix)
		}
	default:
		x.references(n, prefix)
	}
}

func qualify(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// function records a function symbol. class is set for methods.
func (x *jsExtractor) function(n *sitter.Node, qualified, name, class string) {
	receivers := []string{"this"}
	if class != "" {
		receivers = append(receivers, class)
	}
	self := selfNames(name, receivers...)
	if class != "" {
		delete(self, name)
	}
	body := field(n, "body")
	shape := jsGrammar.analyzeShape(x.src, shapeInput{body: body, selfNames: self})
	qualified = x.addSymbol(qualified, model.SymbolFunction, n, shape)
	x.references(field(n, "parameters"), qualified)
	if body != nil && body.Type() == "statement_block" {
		x.block(body, qualified)
		return
	}
	x.references(body, qualified)
}

func (x *jsExtractor) class(n *sitter.Node, qualified string) {
	short := text(field(n, "name"), x.src)
	qualified = x.addSymbol(qualified, model.SymbolType, n, nil)
	for _, c := range namedChildren(n) {
		if c.Type() == "class_heritage" {
			x.heritage(c, qualified)
		}
	}
	for _, m := range namedChildren(field(n, "body")) {
		switch m.Type() {
		case "method_definition", "abstract_method_signature":
			name := text(field(m, "name"), x.src)
			x.function(m, qualified+"."+name, name, short)
		case "field_definition", "public_field_definition":
			value := field(m, "value")
			if value != nil && jsFunctionValues[value.Type()] {
				name := text(field(m, "property"), x.src)
				if name == "" {
					name = text(field(m, "name"), x.src)
				}
				x.function(value, qualified+"."+name, name, short)
				continue
			}
			x.references(m, qualified)
		}
	}
}

// heritage records extends and implements clauses as inheritance.
func (x *jsExtractor) heritage(n *sitter.Node, from string) {
	walk(n, func(c *sitter.Node) bool {
		switch c.Type() {
		case "identifier", "type_identifier", "member_expression", "nested_type_identifier":
			x.use(strings.Join(strings.Fields(text(c, x.src)), ""), from, model.RefInheritance, c)
			return false
		case "type_arguments", "arguments":
			return false
		}
		return true
	})
}

// references records calls and instantiations below n, stopping at nested
// declarations.
func (x *jsExtractor) references(n *sitter.Node, from string) {
	walk(n, func(c *sitter.Node) bool {
		switch c.Type() {
		case "function_declaration", "generator_function_declaration", "class_declaration", "abstract_class_declaration":
			x.statement(c, from)
			return false
		case "class":
			return false
		case "call_expression":
			x.use(jsGrammar.callee(c, x.src), from, model.RefCall, c)
		case "new_expression":
			x.use(jsGrammar.callee(c, x.src), from, model.RefComposition, c)
		}
		return true
	})
}

// use records a reference to name if an import or a top-level declaration
// binds it.
func (x *jsExtractor) use(name, from string, kind model.ReferenceKind, site *sitter.Node) {
	if name == "" {
		return
	}
	if b, ok := x.bindings[name]; ok && !b.namespace {
		if len(b.paths) > 0 {
			x.addReference(model.Reference{From: from, Target: name, Kind: kind, Span: spanOf(site)})
			x.resolve(name, model.Resolution{Paths: b.paths, Symbol: b.symbol})
		}
		return
	}
	if x.locals[name] {
		x.addReference(model.Reference{From: from, Target: name, Kind: kind, Span: spanOf(site)})
		x.resolve(name, model.Resolution{Paths: []string{x.u.Path}, Symbol: name})
		return
	}
	head, rest, ok := strings.Cut(name, ".")
	if !ok {
		return
	}
	b, bound := x.bindings[head]
	if !bound || len(b.paths) == 0 {
		return
	}
	symbol, _, _ := strings.Cut(rest, ".")
	if !b.namespace && b.symbol != "" {
		symbol = b.symbol
	}
	x.addReference(model.Reference{From: from, Target: name, Kind: kind, Span: spanOf(site)})
	x.resolve(name, model.Resolution{Paths: b.paths, Symbol: symbol})
}

package irlink

import (
	"fmt"
	"strconv"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/metadata"
	"github.com/llir/llvm/ir/types"
)

// LinkError reports two modules that cannot be merged.
type LinkError struct {
	File   string
	Symbol string
	Msg    string
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("linking %s failed: @%s: %s", e.File, e.Symbol, e.Msg)
}

type symKind uint8

const (
	symGlobal symKind = iota + 1
	symFunc
	symAlias
)

func (k symKind) String() string {
	switch k {
	case symGlobal:
		return "global variable"
	case symFunc:
		return "function"
	case symAlias:
		return "alias"
	default:
		return "symbol"
	}
}

type symbol struct {
	kind symKind
	idx  int
}

// Linker merges modules into one destination module. Later modules override
// earlier definitions of the same non-local symbol; definitions replace
// declarations; clashing local symbols are renamed.
type Linker struct {
	dst     *ir.Module
	syms    map[string]symbol
	typeDef map[string]types.Type
	comdats map[string]bool
}

// NewLinker returns a Linker producing a module named name.
func NewLinker(name string) *Linker {
	m := ir.NewModule()
	m.SourceFilename = name
	return &Linker{
		dst:     m,
		syms:    make(map[string]symbol),
		typeDef: make(map[string]types.Type),
		comdats: make(map[string]bool),
	}
}

// Link loads every path and links the modules into one.
func Link(name string, paths []string) (*ir.Module, error) {
	l := NewLinker(name)
	for _, p := range paths {
		m, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		if err := l.LinkIn(m, p); err != nil {
			return nil, err
		}
	}
	return l.Module(), nil
}

// LinkIn moves the contents of src into the destination. src must not be used
// afterwards. origin names src in errors.
func (l *Linker) LinkIn(src *ir.Module, origin string) error {
	if l.dst.TargetTriple == "" {
		l.dst.TargetTriple = src.TargetTriple
	}
	if l.dst.DataLayout == "" {
		l.dst.DataLayout = src.DataLayout
	}
	l.dst.ModuleAsms = append(l.dst.ModuleAsms, src.ModuleAsms...)
	for _, c := range src.ComdatDefs {
		if l.comdats[c.Name] {
			continue
		}
		l.comdats[c.Name] = true
		l.dst.ComdatDefs = append(l.dst.ComdatDefs, c)
	}
	for _, t := range src.TypeDefs {
		l.linkTypeDef(t)
	}
	for _, g := range src.Globals {
		if err := l.linkGlobal(g, origin); err != nil {
			return err
		}
	}
	for _, a := range src.Aliases {
		if err := l.linkAlias(a, origin); err != nil {
			return err
		}
	}
	l.dst.IFuncs = append(l.dst.IFuncs, src.IFuncs...)
	for _, f := range src.Funcs {
		if err := l.linkFunc(f, origin); err != nil {
			return err
		}
	}
	l.dst.AttrGroupDefs = append(l.dst.AttrGroupDefs, src.AttrGroupDefs...)
	l.dst.MetadataDefs = append(l.dst.MetadataDefs, src.MetadataDefs...)
	if l.dst.NamedMetadataDefs == nil {
		l.dst.NamedMetadataDefs = make(map[string]*metadata.NamedDef)
	}
	for name, def := range src.NamedMetadataDefs {
		prev, ok := l.dst.NamedMetadataDefs[name]
		switch {
		case !ok:
			l.dst.NamedMetadataDefs[name] = def
		case name == "llvm.module.flags" || name == "llvm.ident":
			// first module wins
		default:
			prev.Nodes = append(prev.Nodes, def.Nodes...)
		}
	}
	return nil
}

// Module renumbers the unnamed entities of the merged module and returns it.
func (l *Linker) Module() *ir.Module {
	var id int64
	for _, g := range l.dst.Globals {
		if g.GlobalName == "" {
			g.SetID(id)
			id++
		}
	}
	for _, f := range l.dst.Funcs {
		if f.GlobalName == "" {
			f.SetID(id)
			id++
		}
	}
	for i, a := range l.dst.AttrGroupDefs {
		a.ID = int64(i)
	}
	for i, md := range l.dst.MetadataDefs {
		md.SetID(int64(i))
	}
	return l.dst
}

func isLocal(linkage enum.Linkage) bool {
	return linkage == enum.LinkagePrivate || linkage == enum.LinkageInternal
}

// linkTypeDef adds the named type t. A type already defined with the same
// body is shared; an opaque definition takes the body of the other side; a
// different body keeps src's meaning under a fresh name.
func (l *Linker) linkTypeDef(t types.Type) {
	name := t.Name()
	have, ok := l.typeDef[name]
	if !ok {
		l.typeDef[name] = t
		l.dst.TypeDefs = append(l.dst.TypeDefs, t)
		return
	}
	if have.LLString() == t.LLString() || isOpaque(t) {
		return
	}
	if hs, ok := have.(*types.StructType); ok && hs.Opaque {
		if ts, ok := t.(*types.StructType); ok {
			hs.Opaque, hs.Packed, hs.Fields = false, ts.Packed, ts.Fields
			return
		}
	}
	fresh := name
	for n := 1; l.typeDef[fresh] != nil; n++ {
		fresh = name + "." + strconv.Itoa(n)
	}
	t.SetName(fresh)
	l.typeDef[fresh] = t
	l.dst.TypeDefs = append(l.dst.TypeDefs, t)
}

func isOpaque(t types.Type) bool {
	st, ok := t.(*types.StructType)
	return ok && st.Opaque
}

// freshName picks name.N not yet bound in the destination.
func (l *Linker) freshName(name string) string {
	for n := 1; ; n++ {
		candidate := name + "." + strconv.Itoa(n)
		if _, taken := l.syms[candidate]; !taken {
			return candidate
		}
	}
}

func (l *Linker) linkGlobal(g *ir.Global, origin string) error {
	if g.GlobalName == "" {
		l.dst.Globals = append(l.dst.Globals, g)
		return nil
	}
	name := g.Name()
	prev, ok := l.syms[name]
	if !ok {
		l.addGlobal(g)
		return nil
	}
	if prev.kind != symGlobal {
		return &LinkError{File: origin, Symbol: name, Msg: fmt.Sprintf("global variable clashes with %s", prev.kind)}
	}
	old := l.dst.Globals[prev.idx]
	switch {
	case isLocal(g.Linkage):
		g.SetName(l.freshName(name))
		l.addGlobal(g)
	case isLocal(old.Linkage):
		l.rename(name, old.SetName)
		l.addGlobal(g)
	case g.Init == nil:
		// declaration of something already present
	default:
		l.dst.Globals[prev.idx] = g
	}
	return nil
}

func (l *Linker) linkAlias(a *ir.Alias, origin string) error {
	if a.GlobalName == "" {
		l.dst.Aliases = append(l.dst.Aliases, a)
		return nil
	}
	name := a.Name()
	prev, ok := l.syms[name]
	if !ok {
		l.syms[name] = symbol{kind: symAlias, idx: len(l.dst.Aliases)}
		l.dst.Aliases = append(l.dst.Aliases, a)
		return nil
	}
	if prev.kind != symAlias {
		return &LinkError{File: origin, Symbol: name, Msg: fmt.Sprintf("alias clashes with %s", prev.kind)}
	}
	if isLocal(a.Linkage) {
		a.SetName(l.freshName(name))
		l.syms[a.Name()] = symbol{kind: symAlias, idx: len(l.dst.Aliases)}
		l.dst.Aliases = append(l.dst.Aliases, a)
		return nil
	}
	l.dst.Aliases[prev.idx] = a
	return nil
}

func (l *Linker) linkFunc(f *ir.Func, origin string) error {
	if f.GlobalName == "" {
		l.dst.Funcs = append(l.dst.Funcs, f)
		return nil
	}
	name := f.Name()
	prev, ok := l.syms[name]
	if !ok {
		l.addFunc(f)
		return nil
	}
	if prev.kind != symFunc {
		return &LinkError{File: origin, Symbol: name, Msg: fmt.Sprintf("function clashes with %s", prev.kind)}
	}
	old := l.dst.Funcs[prev.idx]
	switch {
	case isLocal(f.Linkage):
		f.SetName(l.freshName(name))
		l.addFunc(f)
	case isLocal(old.Linkage):
		l.rename(name, old.SetName)
		l.addFunc(f)
	case len(f.Blocks) == 0:
		// declaration of something already present
	default:
		l.dst.Funcs[prev.idx] = f
	}
	return nil
}

func (l *Linker) addGlobal(g *ir.Global) {
	l.syms[g.Name()] = symbol{kind: symGlobal, idx: len(l.dst.Globals)}
	l.dst.Globals = append(l.dst.Globals, g)
}

func (l *Linker) addFunc(f *ir.Func) {
	l.syms[f.Name()] = symbol{kind: symFunc, idx: len(l.dst.Funcs)}
	l.dst.Funcs = append(l.dst.Funcs, f)
}

// rename moves the local symbol bound to name out of the way so a non-local
// symbol can take the name.
func (l *Linker) rename(name string, setName func(string)) {
	sym := l.syms[name]
	fresh := l.freshName(name)
	setName(fresh)
	l.syms[fresh] = sym
	delete(l.syms, name)
}

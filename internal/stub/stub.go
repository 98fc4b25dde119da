// Package stub synthesizes the start-up function that registers every
// AOT-compiled assembly with the managed runtime.
//
// The generated function is equivalent to
//
//	void mono_wasm_register_modules(void) {
//		mono_aot_register_module(mono_aot_module_App_info);
//		mono_aot_register_module(mono_aot_module_mscorlib_info);
//	}
//
// with one call per assembly in input order.
package stub

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"monowasm/internal/assembly"
)

const (
	// RegisterFunc is the runtime routine that records one AOT module.
	RegisterFunc = "mono_aot_register_module"
	// EntryFunc is the synthesized function the loader calls at start-up.
	EntryFunc = "mono_wasm_register_modules"
	// ModuleName names the standalone stub module in incremental builds.
	ModuleName = "stub"
)

// Mode selects how metadata globals are resolved.
type Mode uint8

const (
	// Declare adds declarations for missing metadata globals. The object
	// linker resolves them later.
	Declare Mode = iota
	// Strict requires every metadata global to be defined in the module.
	Strict
)

func (m Mode) String() string {
	if m == Strict {
		return "strict"
	}
	return "declare"
}

// UnresolvedError reports a metadata global that is not defined where the
// stub needs it.
type UnresolvedError struct {
	Symbol   string
	Assembly string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("AOT metadata symbol @%s for %s is not defined in the linked module", e.Symbol, e.Assembly)
}

// NewModule builds a standalone stub module that only declares the metadata
// globals of asms.
func NewModule(asms []string, triple string) (*ir.Module, error) {
	m := ir.NewModule()
	m.SourceFilename = ModuleName
	m.TargetTriple = triple
	if _, err := AppendTo(m, asms, Declare); err != nil {
		return nil, err
	}
	return m, nil
}

// AppendTo adds the registration function to m, calling the registration
// routine once per assembly in asms order. An existing entry function is
// reused and its body replaced.
func AppendTo(m *ir.Module, asms []string, mode Mode) (*ir.Func, error) {
	register, err := registerFunc(m)
	if err != nil {
		return nil, err
	}
	entry, err := entryFunc(m)
	if err != nil {
		return nil, err
	}
	block := entry.NewBlock("entry")

	globals := make(map[string]*ir.Global, len(m.Globals))
	for _, g := range m.Globals {
		globals[g.Name()] = g
	}
	for _, asm := range asms {
		sym := assembly.MetadataSymbol(asm)
		g, ok := globals[sym]
		if !ok {
			if mode == Strict {
				return nil, &UnresolvedError{Symbol: sym, Assembly: asm}
			}
			g = m.NewGlobal(sym, types.I8Ptr)
			globals[sym] = g
		} else if mode == Strict && g.Init == nil {
			return nil, &UnresolvedError{Symbol: sym, Assembly: asm}
		}
		handle, err := loadHandle(block, g)
		if err != nil {
			return nil, err
		}
		block.NewCall(register, handle)
	}
	block.NewRet(nil)
	return entry, nil
}

func loadHandle(block *ir.Block, g *ir.Global) (value.Value, error) {
	if _, ok := g.ContentType.(*types.PointerType); !ok {
		return nil, fmt.Errorf("metadata symbol @%s has type %s, want a pointer", g.Name(), g.ContentType)
	}
	var v value.Value = block.NewLoad(g.ContentType, g)
	if !types.Equal(g.ContentType, types.I8Ptr) {
		v = block.NewBitCast(v, types.I8Ptr)
	}
	return v, nil
}

func registerFunc(m *ir.Module) (*ir.Func, error) {
	for _, f := range m.Funcs {
		if f.Name() != RegisterFunc {
			continue
		}
		sig := f.Sig
		if sig == nil || len(sig.Params) != 1 || !types.IsPointer(sig.Params[0]) || !types.Equal(sig.RetType, types.Void) {
			return nil, fmt.Errorf("@%s already exists with signature %s, want void (i8*)", RegisterFunc, f.Sig)
		}
		return f, nil
	}
	return m.NewFunc(RegisterFunc, types.Void, ir.NewParam("module", types.I8Ptr)), nil
}

func entryFunc(m *ir.Module) (*ir.Func, error) {
	for _, f := range m.Funcs {
		if f.Name() != EntryFunc {
			continue
		}
		if len(f.Params) != 0 || !types.Equal(f.Sig.RetType, types.Void) {
			return nil, fmt.Errorf("@%s already exists with signature %s, want void ()", EntryFunc, f.Sig)
		}
		f.Blocks = nil
		return f, nil
	}
	return m.NewFunc(EntryFunc, types.Void), nil
}

// CallSequence returns the metadata symbols the entry function of m passes to
// the registration routine, in call order.
func CallSequence(m *ir.Module) ([]string, error) {
	var entry *ir.Func
	for _, f := range m.Funcs {
		if f.Name() == EntryFunc {
			entry = f
			break
		}
	}
	if entry == nil || len(entry.Blocks) == 0 {
		return nil, fmt.Errorf("module has no @%s definition", EntryFunc)
	}
	var seq []string
	for _, block := range entry.Blocks {
		for _, inst := range block.Insts {
			call, ok := inst.(*ir.InstCall)
			if !ok || !isNamed(call.Callee, RegisterFunc) || len(call.Args) != 1 {
				continue
			}
			if g := handleGlobal(call.Args[0]); g != nil {
				seq = append(seq, g.Name())
			}
		}
	}
	return seq, nil
}

func isNamed(v value.Value, name string) bool {
	f, ok := v.(*ir.Func)
	return ok && f.Name() == name
}

// handleGlobal follows bitcasts and loads back to the metadata global.
func handleGlobal(v value.Value) *ir.Global {
	for {
		switch x := v.(type) {
		case *ir.InstBitCast:
			v = x.From
		case *ir.InstLoad:
			v = x.Src
		case *ir.Global:
			return x
		default:
			return nil
		}
	}
}

package stages

import (
	"context"
	"os"
	"strings"
	"sync/atomic"

	"monowasm/internal/assembly"
	"monowasm/internal/toolchain"
)

// AOTResult lists the bitcode modules in assembly order.
type AOTResult struct {
	Bitcode  []string
	Compiled int
}

// AOTCompile compiles each linked assembly whose bitcode is stale into
// exactly one bitcode module.
func (inv *Invoker) AOTCompile(ctx context.Context, linked []string) (AOTResult, error) {
	res := AOTResult{Bitcode: make([]string, len(linked))}
	var compiled atomic.Int64
	err := forEach(ctx, inv.Config.Jobs, len(linked), func(ctx context.Context, i int) error {
		asm := assembly.New(inv.Config.BuildDir, linked[i])
		res.Bitcode[i] = asm.Bitcode
		need := inv.ManagedStale
		if !need {
			var err error
			if need, err = inv.needsBuild(asm.Source, asm.Bitcode); err != nil {
				return err
			}
		}
		if !need {
			return nil
		}
		if err := inv.aotOne(ctx, asm.Source, asm.Bitcode); err != nil {
			return err
		}
		compiled.Add(1)
		return nil
	})
	res.Compiled = int(compiled.Load())
	return res, err
}

func (inv *Invoker) aotOne(ctx context.Context, src, bc string) error {
	args := []string{"--aot=llvmonly,asmonly,static,llvm-outfile=" + bc}
	if inv.Config.Debug {
		args = append([]string{"--debug"}, args...)
	}
	args = append(args, src)
	searchPath := strings.Join([]string{inv.LinkedDir(), inv.Config.LibDir}, string(os.PathListSeparator))
	cmd := toolchain.Command{
		Name: inv.Config.Tools.AOT,
		Args: args,
		Env:  []string{"MONO_PATH=" + searchPath},
		Dir:  inv.Config.BuildDir,
	}
	if err := inv.run(ctx, cmd); err != nil {
		return err
	}
	return requireOutput(inv.Config.Tools.AOT, bc)
}

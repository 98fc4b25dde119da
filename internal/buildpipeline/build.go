// Package buildpipeline orchestrates the compilation process.
package buildpipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/llir/llvm/ir"

	"monowasm/internal/assembly"
	"monowasm/internal/buildstate"
	"monowasm/internal/config"
	"monowasm/internal/ctxlog"
	"monowasm/internal/irlink"
	"monowasm/internal/observ"
	"monowasm/internal/stages"
	"monowasm/internal/stub"
	"monowasm/internal/toolchain"
)

// Files the driver writes into the build directory. Assemblies may not use
// these stems, since their bitcode and objects share the directory.
const (
	ProgramModule = "index.ll"
	ProgramObject = "index.o"
	StubModule    = stub.ModuleName + ".ll"
	StubObject    = stub.ModuleName + ".o"
)

var reservedStems = map[string]bool{"index": true, stub.ModuleName: true, "runtime": true}

// BuildRequest configures one build.
type BuildRequest struct {
	Config config.Context
	// Inputs are the assemblies to build; Inputs[0] is the entry assembly
	// unless Entry names another one.
	Inputs []string
	// Entry optionally names the entry assembly by path or file name.
	Entry string
	// Runner executes the external tools; nil runs real subprocesses.
	Runner   toolchain.Runner
	Progress ProgressSink
}

// BuildResult captures build artefacts and timings.
type BuildResult struct {
	OutputPath string
	LoaderPath string
	BuildID    string
	Mode       string
	// Assemblies are the linked assemblies, entry first.
	Assemblies []string
	Deployed   []string
	// StubCalls lists the metadata symbols the registration function
	// passes to the runtime, in call order.
	StubCalls []string

	ILLinked       bool
	AOTCompiled    int
	CodegenModules int
	ObjectsStale   bool
	InputsChanged  bool
	ManagedStale   bool

	Timings Timings
	Report  observ.Report
}

type buildRun struct {
	req   *BuildRequest
	inv   *stages.Invoker
	files []string
	timer *observ.Timer
	res   *BuildResult
}

// Build runs every stage in order. Each stage starts only after the previous
// one finished for all units; the first failure ends the build.
func Build(ctx context.Context, req *BuildRequest) (BuildResult, error) {
	var result BuildResult
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil {
		return result, fmt.Errorf("missing build request")
	}
	cfg := req.Config
	log := ctxlog.FromContext(ctx)

	inputs, err := planInputs(req.Inputs, req.Entry)
	if err != nil {
		return result, err
	}
	if err := stages.ValidateTriple(cfg.Triple); err != nil {
		return result, err
	}

	prev, havePrev, err := buildstate.Load(cfg.BuildDir)
	if err != nil {
		log.Warn("ignoring unreadable build state", "err", err)
		havePrev = false
	}
	state := buildstate.New(cfg, assembly.Names(inputs))
	result.BuildID = state.BuildID
	result.Mode = cfg.Mode()
	if havePrev {
		changes := state.Diff(prev)
		result.ObjectsStale = changes.Objects
		result.InputsChanged = changes.Inputs
		result.ManagedStale = changes.Managed
	}
	log = log.With("build", state.BuildID)
	ctx = ctxlog.WithLogger(ctx, log)
	log.Info("build started", "mode", result.Mode, "opt", cfg.Opt.String(), "inputs", len(inputs))
	if result.InputsChanged {
		log.Info("input set changed; relinking", "was", prev.Inputs, "now", state.Inputs)
	}
	if result.ManagedStale {
		log.Info("managed settings changed; relinking and recompiling", "was", prev.ManagedFingerprint, "now", state.ManagedFingerprint)
	}
	if result.ObjectsStale {
		log.Info("code generation settings changed; regenerating objects", "was", prev.Fingerprint, "now", state.Fingerprint)
	}

	inv := stages.New(cfg, req.Runner)
	inv.ObjectsStale = result.ObjectsStale
	inv.InputsChanged = result.InputsChanged
	inv.ManagedStale = result.ManagedStale
	r := &buildRun{
		req:   req,
		inv:   inv,
		files: assembly.Names(inputs),
		timer: observ.NewTimer(),
		res:   &result,
	}
	emitQueued(req.Progress, r.files)

	if err := os.MkdirAll(cfg.BuildDir, 0o750); err != nil {
		return result, fmt.Errorf("failed to create build dir: %w", err)
	}

	if err := r.stage(ctx, StageILLink, func() (string, error) {
		res, err := inv.ILLink(ctx, inputs)
		if err != nil {
			return "", err
		}
		result.ILLinked = res.Ran
		result.Assemblies = res.Assemblies
		if !res.Ran {
			return "up to date", nil
		}
		return fmt.Sprintf("%d assemblies", len(res.Assemblies)), nil
	}); err != nil {
		return result, err
	}
	if err := checkNames(result.Assemblies); err != nil {
		return result, err
	}
	r.files = assembly.Names(result.Assemblies)
	emitQueued(req.Progress, r.files)

	var bitcode []string
	if err := r.stage(ctx, StageAOT, func() (string, error) {
		res, err := inv.AOTCompile(ctx, result.Assemblies)
		bitcode = res.Bitcode
		result.AOTCompiled = res.Compiled
		return fmt.Sprintf("%d compiled, %d fresh", res.Compiled, len(res.Bitcode)-res.Compiled), err
	}); err != nil {
		return result, err
	}

	var objects []string
	if cfg.Incremental {
		objects, err = r.incremental(ctx, bitcode)
	} else {
		objects, err = r.wholeProgram(ctx, bitcode)
	}
	if err != nil {
		return result, err
	}

	if err := r.stage(ctx, StageLink, func() (string, error) {
		return fmt.Sprintf("%d objects", len(objects)), inv.ObjectLink(ctx, objects, cfg.OutputBinary())
	}); err != nil {
		return result, err
	}
	result.OutputPath = cfg.OutputBinary()

	if err := r.stage(ctx, StageStrip, func() (string, error) {
		deployed, err := inv.Strip(ctx, result.Assemblies)
		result.Deployed = deployed
		return "", err
	}); err != nil {
		return result, err
	}

	if err := r.stage(ctx, StageLoader, func() (string, error) {
		loader, err := inv.LoaderGen(ctx, result.Deployed)
		result.LoaderPath = loader
		return "", err
	}); err != nil {
		return result, err
	}

	state.Assemblies = assembly.Names(result.Assemblies)
	if err := buildstate.Save(cfg.BuildDir, state); err != nil {
		log.Warn("failed to save build state", "err", err)
	}
	log.Info("build finished", "output", result.OutputPath, "aot", result.AOTCompiled, "codegen", result.CodegenModules,
		"elapsed", result.Timings.Sum(Stages(cfg.Incremental)...))
	return result, nil
}

// wholeProgram links all bitcode and the runtime module into one IR module,
// appends the registration function and lowers the result to one object.
func (r *buildRun) wholeProgram(ctx context.Context, bitcode []string) ([]string, error) {
	cfg := r.req.Config
	var program *ir.Module
	if err := r.stage(ctx, StageIRLink, func() (string, error) {
		modules := append([]string{cfg.RuntimeModule()}, bitcode...)
		texts, err := r.inv.TextualIR(ctx, modules)
		if err != nil {
			return "", err
		}
		linker := irlink.NewLinker("index.bc")
		for i, path := range texts {
			m, err := irlink.LoadFile(path)
			if err != nil {
				return "", err
			}
			if err := linker.LinkIn(m, modules[i]); err != nil {
				return "", err
			}
		}
		program = linker.Module()
		return fmt.Sprintf("%d modules", len(modules)), nil
	}); err != nil {
		return nil, err
	}

	programPath := filepath.Join(cfg.BuildDir, ProgramModule)
	if err := r.stage(ctx, StageStub, func() (string, error) {
		if _, err := stub.AppendTo(program, r.res.Assemblies, stub.Strict); err != nil {
			return "", err
		}
		if program.TargetTriple == "" {
			program.TargetTriple = cfg.Triple
		}
		calls, err := stub.CallSequence(program)
		if err != nil {
			return "", err
		}
		r.res.StubCalls = calls
		return fmt.Sprintf("%d registrations", len(calls)), writeModule(programPath, program)
	}); err != nil {
		return nil, err
	}

	object := filepath.Join(cfg.BuildDir, ProgramObject)
	if err := r.stage(ctx, StageCodegen, func() (string, error) {
		return cfg.Opt.Flag(), r.inv.Codegen(ctx, programPath, object)
	}); err != nil {
		return nil, err
	}
	return []string{object}, nil
}

// incremental lowers the runtime module and every bitcode module to its own
// object, then builds a standalone stub module that only declares the
// metadata globals. The object linker resolves them.
func (r *buildRun) incremental(ctx context.Context, bitcode []string) ([]string, error) {
	cfg := r.req.Config
	var objects []string
	if err := r.stage(ctx, StageCodegenModules, func() (string, error) {
		modules := append([]string{cfg.RuntimeModule()}, bitcode...)
		res, err := r.inv.CodegenModules(ctx, modules)
		objects = res.Objects
		r.res.CodegenModules = res.Generated
		return fmt.Sprintf("%d generated, %d fresh", res.Generated, len(res.Objects)-res.Generated), err
	}); err != nil {
		return nil, err
	}

	stubPath := filepath.Join(cfg.BuildDir, StubModule)
	if err := r.stage(ctx, StageStub, func() (string, error) {
		m, err := stub.NewModule(r.res.Assemblies, cfg.Triple)
		if err != nil {
			return "", err
		}
		calls, err := stub.CallSequence(m)
		if err != nil {
			return "", err
		}
		r.res.StubCalls = calls
		return fmt.Sprintf("%d registrations", len(calls)), writeModule(stubPath, m)
	}); err != nil {
		return nil, err
	}

	stubObject := filepath.Join(cfg.BuildDir, StubObject)
	if err := r.stage(ctx, StageCodegen, func() (string, error) {
		return cfg.Opt.Flag(), r.inv.Codegen(ctx, stubPath, stubObject)
	}); err != nil {
		return nil, err
	}
	return append(objects, stubObject), nil
}

func (r *buildRun) stage(ctx context.Context, stage Stage, fn func() (string, error)) error {
	log := ctxlog.FromContext(ctx)
	start := time.Now()
	idx := r.timer.Begin(string(stage))
	emitStage(r.req.Progress, r.files, stage, StatusWorking, nil, 0)
	note, err := fn()
	elapsed := time.Since(start)
	r.timer.End(idx, note)
	r.res.Timings.Set(stage, elapsed)
	r.res.Report = r.timer.Report()
	if err != nil {
		emitStage(r.req.Progress, r.files, stage, StatusError, err, elapsed)
		log.Error("stage failed", "stage", stage, "err", err)
		return fmt.Errorf("%s: %w", stage, err)
	}
	emitStage(r.req.Progress, r.files, stage, StatusDone, nil, elapsed)
	log.Debug("stage finished", "stage", stage, "elapsed", elapsed, "note", note)
	return nil
}

// planInputs validates the inputs and moves the entry assembly to the front.
// The inputs must exist: staleness checks treat a missing source as a bug.
func planInputs(inputs []string, entry string) ([]string, error) {
	if err := assembly.Validate(inputs); err != nil {
		return nil, err
	}
	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil {
			return nil, fmt.Errorf("input assembly: %w", err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("input assembly %s is a directory", in)
		}
	}
	if err := checkNames(inputs); err != nil {
		return nil, err
	}
	if entry == "" {
		return append([]string(nil), inputs...), nil
	}
	return assembly.EntryFirst(inputs, entry)
}

// checkNames rejects assemblies whose stems collide with build outputs or
// with each other. The linker can pull in framework assemblies, so it runs
// again on the linked set.
func checkNames(paths []string) error {
	for _, p := range paths {
		if reservedStems[assembly.Stem(p)] {
			return fmt.Errorf("assembly %s: the name %q is reserved for build outputs", p, assembly.Stem(p))
		}
	}
	return assembly.UniqueStems(paths)
}

func writeModule(path string, m *ir.Module) error {
	if err := os.WriteFile(path, []byte(m.String()), 0o600); err != nil {
		return fmt.Errorf("failed to write IR module: %w", err)
	}
	return nil
}

package buildpipeline

import "time"

// Stage describes a high-level pipeline phase.
type Stage string

const (
	// StageILLink trims and merges the input assemblies.
	StageILLink Stage = "il-link"
	// StageAOT compiles each linked assembly to bitcode.
	StageAOT Stage = "aot"
	// StageIRLink links all bitcode into one module (whole-program).
	StageIRLink Stage = "ir-link"
	// StageCodegenModules lowers each bitcode module on its own (incremental).
	StageCodegenModules Stage = "codegen-modules"
	// StageStub synthesizes the module registration function.
	StageStub Stage = "stub"
	// StageCodegen lowers the program or stub module to an object file.
	StageCodegen Stage = "codegen"
	// StageLink links objects into the WebAssembly binary.
	StageLink Stage = "link"
	// StageStrip deploys stripped assemblies.
	StageStrip Stage = "strip"
	// StageLoader renders the loader script.
	StageLoader Stage = "loader"
)

// Stages returns the stages a build runs, in order.
func Stages(incremental bool) []Stage {
	if incremental {
		return []Stage{StageILLink, StageAOT, StageCodegenModules, StageStub, StageCodegen, StageLink, StageStrip, StageLoader}
	}
	return []Stage{StageILLink, StageAOT, StageIRLink, StageStub, StageCodegen, StageLink, StageStrip, StageLoader}
}

// Status captures progress state within a stage.
type Status string

const (
	// StatusQueued indicates the task is waiting to start.
	StatusQueued Status = "queued"
	// StatusWorking indicates the task is currently working.
	StatusWorking Status = "working"
	// StatusDone indicates the task is done.
	StatusDone Status = "done"
	// StatusError indicates the task encountered an error.
	StatusError Status = "error"
)

// Event reports progress for an assembly (or for the overall pipeline when File is empty).
type Event struct {
	File    string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events.
type ProgressSink interface {
	OnEvent(Event)
}

// Timings holds stage durations.
type Timings struct {
	stages map[Stage]time.Duration
}

func (t *Timings) ensure() {
	if t.stages == nil {
		t.stages = make(map[Stage]time.Duration)
	}
}

// Set stores a duration for the given stage.
func (t *Timings) Set(stage Stage, dur time.Duration) {
	if t == nil {
		return
	}
	t.ensure()
	t.stages[stage] = dur
}

// Has reports whether a duration for stage is recorded.
func (t Timings) Has(stage Stage) bool {
	if t.stages == nil {
		return false
	}
	_, ok := t.stages[stage]
	return ok
}

// Duration returns the recorded duration for stage.
func (t Timings) Duration(stage Stage) time.Duration {
	if t.stages == nil {
		return 0
	}
	return t.stages[stage]
}

// Sum returns the sum of durations across the provided stages.
func (t Timings) Sum(stages ...Stage) time.Duration {
	if t.stages == nil {
		return 0
	}
	var total time.Duration
	for _, stage := range stages {
		total += t.stages[stage]
	}
	return total
}

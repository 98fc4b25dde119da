package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"monowasm/internal/buildpipeline"
	"monowasm/internal/ui"
)

type buildOutcome struct {
	result buildpipeline.BuildResult
	err    error
}

// runBuildWithUI runs the build in the background and renders its events.
// Leaving the UI early cancels the build.
func runBuildWithUI(ctx context.Context, title string, files []string, req *buildpipeline.BuildRequest) (buildpipeline.BuildResult, error) {
	if req == nil {
		return buildpipeline.BuildResult{}, fmt.Errorf("missing build request")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	events := make(chan buildpipeline.Event, 256)
	uiDone := make(chan struct{})
	outcomeCh := make(chan buildOutcome, 1)

	reqCopy := *req
	reqCopy.Progress = buildpipeline.ChannelSink{Ch: events, Done: uiDone}
	go func() {
		res, err := buildpipeline.Build(ctx, &reqCopy)
		outcomeCh <- buildOutcome{result: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, req.Config.Incremental, files, events)
	_, uiErr := tea.NewProgram(model, tea.WithOutput(os.Stdout)).Run()
	close(uiDone)
	cancel()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}

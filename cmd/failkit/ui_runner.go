package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"failkit/internal/driver"
	"failkit/internal/ui"
)

type checkOutcome struct {
	result *driver.CheckResult
	err    error
}

// runCheckWithUI drives one Check under the progress TUI. The check runs in
// a goroutine feeding the event channel; closing the channel after Check
// returns is what lets the model quit on its own.
func runCheckWithUI(ctx context.Context, title string, req driver.CheckRequest) (*driver.CheckResult, error) {
	events := make(chan driver.Event, 256)
	outcomeCh := make(chan checkOutcome, 1)

	go func() {
		reqCopy := req
		reqCopy.Progress = driver.ChannelSink{Ch: events}
		res, err := driver.Check(ctx, reqCopy)
		outcomeCh <- checkOutcome{result: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, nil, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	if uiErr != nil {
		// The model stopped reading; drain so the worker can finish.
		go func() {
			for range events {
			}
		}()
	}
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianDraft/services/draft/datatypes"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// MESSAGES
// =============================================================================

// trackEventMsg carries one status event from the tracking stream.
type trackEventMsg datatypes.TaskStatusEvent

// trackClosedMsg signals that the stream closed without a terminal
// event.
type trackClosedMsg struct{}

// cancelSentMsg reports the outcome of a cancel request.
type cancelSentMsg struct {
	err error
}

// =============================================================================
// MODEL
// =============================================================================

// watchModel is the live tracking display: a spinner, the latest status
// line, and a progress bar, updated as events arrive.
type watchModel struct {
	taskID string
	client *DraftClient
	events <-chan datatypes.TaskStatusEvent

	spinner  spinner.Model
	progress progress.Model
	width    int

	percent    float64
	message    string
	received   int
	cancelling bool
	cancelErr  error

	final  *datatypes.TaskStatusEvent
	closed bool
}

func newWatchModel(client *DraftClient, taskID string, events <-chan datatypes.TaskStatusEvent) watchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 40

	return watchModel{
		taskID:   taskID,
		client:   client,
		events:   events,
		spinner:  sp,
		progress: bar,
		message:  "waiting for the first status event",
	}
}

// waitForTrackEvent blocks on the event channel and converts the result
// into a message. Re-issued after every received event.
func waitForTrackEvent(events <-chan datatypes.TaskStatusEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return trackClosedMsg{}
		}
		return trackEventMsg(ev)
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForTrackEvent(m.events))
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		if w := msg.Width - 8; w > 10 && w < 60 {
			m.progress.Width = w
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if m.cancelling {
				// Second press abandons the stream entirely.
				return m, tea.Quit
			}
			m.cancelling = true
			client := m.client
			taskID := m.taskID
			return m, func() tea.Msg {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return cancelSentMsg{err: client.CancelTask(ctx, taskID)}
			}
		}
		return m, nil

	case cancelSentMsg:
		m.cancelErr = msg.err
		return m, nil

	case trackEventMsg:
		ev := datatypes.TaskStatusEvent(msg)
		if ev.ProgressPercent > 0 {
			m.percent = ev.ProgressPercent
		}
		if ev.Message != "" {
			m.message = ev.Message
		}
		m.received += len(ev.Content)
		if ev.Kind.Terminal() {
			m.final = &ev
			return m, tea.Quit
		}
		return m, waitForTrackEvent(m.events)

	case trackClosedMsg:
		m.closed = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m watchModel) View() string {
	if m.final != nil || m.closed {
		// The terminal output is printed by the caller after the
		// program exits; leave the screen clean.
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString("  " + watchTitleStyle.Render("Tracking "+m.taskID) + "\n\n")
	b.WriteString(fmt.Sprintf("  %s %s\n", m.spinner.View(), watchStatusStyle.Render(m.message)))
	b.WriteString("  " + m.progress.ViewAs(m.percent/100) + "\n")
	if m.received > 0 {
		b.WriteString("  " + watchDimStyle.Render(fmt.Sprintf("%d bytes received", m.received)) + "\n")
	}
	if m.cancelling {
		line := "Cancel requested; waiting for the service to confirm"
		if m.cancelErr != nil {
			line = fmt.Sprintf("Cancel request failed: %v", m.cancelErr)
		}
		b.WriteString("  " + watchWarnStyle.Render(line) + "\n")
	}
	b.WriteString("\n  " + watchHelpStyle.Render("q or ctrl+c to cancel the task") + "\n")
	return b.String()
}

// runWatchTUI drives the live display and returns the terminal event.
// Output goes to stderr so stdout stays clean for the generated
// content.
func runWatchTUI(client *DraftClient, taskID string, events <-chan datatypes.TaskStatusEvent) datatypes.TaskStatusEvent {
	model := newWatchModel(client, taskID, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stderr))

	finalModel, err := program.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Display error: %v\n", err)
		os.Exit(1)
	}

	final, ok := finalModel.(watchModel)
	if !ok || final.final == nil {
		return datatypes.TaskStatusEvent{
			TaskID:  taskID,
			Kind:    datatypes.EventFailed,
			Message: "track stream closed before the task finished",
		}
	}
	return *final.final
}

// =============================================================================
// STYLES
// =============================================================================

var (
	watchTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	watchStatusStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252"))

	watchDimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	watchWarnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	watchHelpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("69"))
)

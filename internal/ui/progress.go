package ui

import (
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Progress shows a sampling gauge while a snapshot is collected. It never
// reads input and writes only to its own output, normally stderr.
type Progress struct {
	prog *tea.Program
	done chan struct{}
	err  error
}

// Messages
type (
	tickMsg time.Time
	doneMsg struct{}
)

const progressTick = time.Second / 10

func tickCmd() tea.Cmd {
	return tea.Tick(progressTick, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// progressModel fills a gauge over the sampling interval.
type progressModel struct {
	label    string
	interval time.Duration
	started  time.Time
	now      time.Time
	finished bool
}

func newProgressModel(label string, interval time.Duration, started time.Time) progressModel {
	return progressModel{
		label:    label,
		interval: interval,
		started:  started,
		now:      started,
	}
}

func (m progressModel) Init() tea.Cmd { return tickCmd() }

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		if m.finished {
			return m, nil
		}
		m.now = time.Time(msg)
		return m, tickCmd()
	case doneMsg:
		m.finished = true
		return m, tea.Quit
	}
	return m, nil
}

func (m progressModel) View() string {
	if m.finished {
		return ""
	}
	return fmt.Sprintf("%s %s\n", m.label, gaugeBar(m.percent(), gaugeWidth))
}

func (m progressModel) percent() float64 {
	if m.interval <= 0 {
		return 100
	}
	return float64(m.now.Sub(m.started)) * 100 / float64(m.interval)
}

// StartProgress runs the gauge on out until Stop is called.
func StartProgress(out io.Writer, label string, interval time.Duration) *Progress {
	prog := tea.NewProgram(
		newProgressModel(label, interval, time.Now()),
		tea.WithOutput(out),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)
	p := &Progress{prog: prog, done: make(chan struct{})}
	go func() {
		defer close(p.done)
		_, p.err = prog.Run()
	}()
	return p
}

// Stop clears the gauge and waits for the program to exit.
func (p *Progress) Stop() error {
	p.prog.Send(doneMsg{})
	<-p.done
	return p.err
}

package main

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.starlark.net/syntax"

	"github.com/wippyai/hostbridge/convert"
	"github.com/wippyai/hostbridge/runtime"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	printStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#DDDDDD"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const historySize = 12

// printBuffer collects guest print output between evaluations.
type printBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (p *printBuffer) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.Write(b)
}

func (p *printBuffer) drain() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := strings.TrimRight(p.buf.String(), "\n")
	p.buf.Reset()
	return s
}

type entry struct {
	err    error
	expr   string
	result string
	output string
}

type interactiveModel struct {
	err       error
	rt        *runtime.Runtime
	cfg       *bridgeConfig
	out       *printBuffer
	history   []entry
	input     textinput.Model
	recall    int
	overloads bool
	busy      bool
}

func newInteractiveModel(cfg *bridgeConfig) *interactiveModel {
	ti := textinput.New()
	ti.Prompt = ">>> "
	ti.Placeholder = `max(1, 2, 3)`
	ti.Width = 60
	ti.Focus()
	return &interactiveModel{
		cfg:   cfg,
		out:   &printBuffer{},
		input: ti,
	}
}

type loadedMsg struct {
	err error
	rt  *runtime.Runtime
}

type evalResultMsg struct {
	entry entry
}

func (m *interactiveModel) Init() tea.Cmd {
	return tea.Batch(m.loadRuntime, textinput.Blink)
}

func (m *interactiveModel) loadRuntime() tea.Msg {
	rt, err := newRuntime(context.Background(), m.cfg, m.out)
	return loadedMsg{rt: rt, err: err}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			if m.rt != nil {
				m.rt.Close(context.Background())
			}
			return m, tea.Quit

		case "tab":
			m.overloads = !m.overloads
			return m, nil

		case "up":
			if m.recall < len(m.history) {
				m.recall++
				m.input.SetValue(m.history[len(m.history)-m.recall].expr)
				m.input.CursorEnd()
			}
			return m, nil

		case "down":
			if m.recall > 1 {
				m.recall--
				m.input.SetValue(m.history[len(m.history)-m.recall].expr)
			} else {
				m.recall = 0
				m.input.SetValue("")
			}
			return m, nil

		case "enter":
			expr := strings.TrimSpace(m.input.Value())
			if expr == "" || m.rt == nil || m.busy {
				return m, nil
			}
			m.busy = true
			m.recall = 0
			m.input.SetValue("")
			return m, m.evaluate(expr)
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.rt = msg.rt

	case evalResultMsg:
		m.busy = false
		m.history = append(m.history, msg.entry)
		if len(m.history) > historySize {
			m.history = m.history[len(m.history)-historySize:]
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// evaluate runs expr as an expression, or as a statement when it does
// not parse as one.
func (m *interactiveModel) evaluate(expr string) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		e := entry{expr: expr}

		result, err := m.rt.Eval(ctx, expr, nil)
		if err != nil && isSyntaxError(err) {
			var globals map[string]any
			globals, err = m.rt.Exec(ctx, "<input>", expr)
			for _, v := range globals {
				convert.CloseObjects(reflect.ValueOf(v))
			}
			result = nil
		}
		e.err = err
		if err == nil && result != nil {
			e.result = fmt.Sprintf("%v", result)
			convert.CloseObjects(reflect.ValueOf(result))
		}
		e.output = m.out.drain()
		return evalResultMsg{entry: e}
	}
}

func isSyntaxError(err error) bool {
	var serr syntax.Error
	return stderrors.As(err, &serr)
}

func (m *interactiveModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress esc to quit.", m.err))
	}
	if m.rt == nil {
		return "Starting runtime..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Host Bridge"))
	b.WriteString(" Starlark with Go overloads\n\n")

	if m.overloads {
		m.writeOverloads(&b)
		b.WriteString("\n")
	}

	for _, e := range m.history {
		b.WriteString(helpStyle.Render(">>> "))
		b.WriteString(e.expr)
		b.WriteString("\n")
		if e.output != "" {
			b.WriteString(printStyle.Render(e.output))
			b.WriteString("\n")
		}
		switch {
		case e.err != nil:
			b.WriteString(errorStyle.Render(e.err.Error()))
			b.WriteString("\n")
		case e.result != "":
			b.WriteString(resultStyle.Render(e.result))
			b.WriteString("\n")
		}
	}

	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("enter eval • ↑/↓ history • tab overloads • esc quit"))
	return b.String()
}

func (m *interactiveModel) writeOverloads(b *strings.Builder) {
	bd := m.rt.Binder()
	for _, name := range bd.Names() {
		o, _ := bd.Lookup(name)
		b.WriteString(funcStyle.Render(name))
		b.WriteString("\n")
		for _, c := range o.Candidates() {
			b.WriteString("  ")
			b.WriteString(typeStyle.Render(fmt.Sprintf("%5d", c.Score())))
			b.WriteString("  ")
			b.WriteString(c.String())
			b.WriteString("\n")
		}
	}
}

func runInteractive(cfg *bridgeConfig) error {
	p := tea.NewProgram(newInteractiveModel(cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

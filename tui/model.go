package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-sostenuto/engine"
	"go-sostenuto/midi"
	"go-sostenuto/theme"
	"go-sostenuto/widgets"
)

// noteKeys maps the home rows to a chromatic octave plus one, piano style.
var noteKeys = map[string]int{
	"a": 0, "w": 1, "s": 2, "e": 3, "d": 4, "f": 5, "t": 6,
	"g": 7, "y": 8, "h": 9, "u": 10, "j": 11, "k": 12,
}

const (
	headerHeight = 8 // header, keyboard rows, status lines
	minLogHeight = 3
)

type keyMap struct {
	Play       key.Binding
	Pedal      key.Binding
	OctaveDown key.Binding
	OctaveUp   key.Binding
	Logging    key.Binding
	ClearLog   key.Binding
	Quit       key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Play, k.Pedal, k.OctaveDown, k.OctaveUp, k.Logging, k.ClearLog, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

func newKeyMap() keyMap {
	return keyMap{
		Play:       key.NewBinding(key.WithKeys("a", "w", "s", "e", "d", "f", "t", "g", "y", "h", "u", "j", "k"), key.WithHelp("a-k", "toggle note")),
		Pedal:      key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "pedal")),
		OctaveDown: key.NewBinding(key.WithKeys("z"), key.WithHelp("z", "octave-")),
		OctaveUp:   key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "octave+")),
		Logging:    key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "logging")),
		ClearLog:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear log")),
		Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// Ports names what the router is connected to, for the header.
type Ports struct {
	Input  string
	Output string
}

type Model struct {
	Engine   *engine.Engine
	Keyboard *engine.VirtualKeyboard
	Theme    *theme.Theme
	Ports    Ports
	Watcher  *midi.Watcher // optional

	// OnPort reconnects devices after a port change. It runs off the UI
	// loop and may block on a port scan.
	OnPort func(midi.PortEvent) (Ports, string)

	keys     keyMap
	help     help.Model
	log      viewport.Model
	buf      *engine.LogBuffer
	pedal    bool
	base     int // note for the "a" key
	status   string
	quitting bool
}

// LogMsg carries one drained log batch.
type LogMsg engine.LogUpdate

// ChangedMsg says the pedal or key state moved.
type ChangedMsg struct{}

// PortMsg reports a port appearing or vanishing.
type PortMsg midi.PortEvent

// ConnMsg carries the connection state after OnPort ran.
type ConnMsg struct {
	Ports  Ports
	Status string
}

func NewModel(eng *engine.Engine, kb *engine.VirtualKeyboard, th *theme.Theme, ports Ports) Model {
	return Model{
		Engine:   eng,
		Keyboard: kb,
		Theme:    th,
		Ports:    ports,
		keys:     newKeyMap(),
		help:     help.New(),
		log:      viewport.New(80, 10),
		buf:      &engine.LogBuffer{},
		base:     60,
	}
}

func ListenForLogs(eng *engine.Engine) tea.Cmd {
	return func() tea.Msg {
		return LogMsg(<-eng.LogUpdates())
	}
}

func ListenForChanges(eng *engine.Engine) tea.Cmd {
	return func() tea.Msg {
		<-eng.Changes()
		return ChangedMsg{}
	}
}

func ListenForPorts(w *midi.Watcher) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-w.Events()
		if !ok {
			return nil
		}
		return PortMsg(ev)
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{ListenForLogs(m.Engine), ListenForChanges(m.Engine)}
	if m.Watcher != nil {
		cmds = append(cmds, ListenForPorts(m.Watcher))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		m.log.Width = msg.Width
		m.log.Height = max(msg.Height-headerHeight-2, minLogHeight)
		return m, nil

	case LogMsg:
		atBottom := m.log.AtBottom()
		m.buf.Apply(engine.LogUpdate(msg))
		m.log.SetContent(m.buf.String())
		if atBottom {
			m.log.GotoBottom()
		}
		return m, ListenForLogs(m.Engine)

	case ChangedMsg:
		m.pedal = m.Engine.Snapshot().PedalDown
		return m, ListenForChanges(m.Engine)

	case PortMsg:
		if m.OnPort == nil {
			kind := "output"
			if msg.Input {
				kind = "input"
			}
			m.status = fmt.Sprintf("%s %s %s", kind, msg.Name, msg.Type)
			return m, ListenForPorts(m.Watcher)
		}
		ev, onPort := midi.PortEvent(msg), m.OnPort
		return m, tea.Batch(ListenForPorts(m.Watcher), func() tea.Msg {
			ports, status := onPort(ev)
			return ConnMsg{Ports: ports, Status: status}
		})

	case ConnMsg:
		m.Ports = msg.Ports
		m.status = msg.Status
		return m, nil
	}

	var cmd tea.Cmd
	m.log, cmd = m.log.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Play):
		m.toggleNote(m.base + noteKeys[msg.String()])

	case key.Matches(msg, m.keys.Pedal):
		m.pedal = !m.pedal
		m.Keyboard.Pedal(m.pedal)

	case key.Matches(msg, m.keys.OctaveDown):
		if m.base-12 >= 0 {
			m.base -= 12
		}

	case key.Matches(msg, m.keys.OctaveUp):
		if m.base+12 < midi.NumNotes {
			m.base += 12
		}

	case key.Matches(msg, m.keys.Logging):
		on := !m.Engine.LoggingEnabled()
		m.Engine.SetLoggingEnabled(on)
		if !on {
			m.buf.Reset()
			m.log.SetContent("")
		}

	case key.Matches(msg, m.keys.ClearLog):
		m.buf.Reset()
		m.log.SetContent("")

	default:
		var cmd tea.Cmd
		m.log, cmd = m.log.Update(msg)
		return m, cmd
	}
	return m, nil
}

// toggleNote presses a key that is up and releases one that is down;
// terminals do not report key release. Up or down is the engine's view,
// so a key released on the hardware is pressed again here.
func (m *Model) toggleNote(note int) {
	if note < 0 || note >= midi.NumNotes {
		m.status = fmt.Sprintf("note %d out of range", note)
		return
	}
	snap := m.Engine.Snapshot()
	var err error
	if snap.Live.IsHeld(uint8(note)) {
		err = m.Keyboard.NoteOff(note)
	} else {
		err = m.Keyboard.NoteOn(note)
	}
	if err != nil {
		m.status = err.Error()
	}
}

func (m Model) keyState(snap engine.Snapshot) func(int) widgets.KeyState {
	return func(note int) widgets.KeyState {
		n := uint8(note)
		live, held := snap.Live.IsHeld(n), snap.Held.IsHeld(n)
		switch {
		case live && held:
			return widgets.KeyLiveHeld
		case held:
			return widgets.KeyHeld
		case live:
			return widgets.KeyLive
		}
		return widgets.KeyUp
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	snap := m.Engine.Snapshot()
	st := m.Engine.Stats()

	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	pedalStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())

	pedal := fmt.Sprintf("%c sostenuto", m.Theme.Symbols.PedalUp)
	if snap.PedalDown {
		pedalStyle = pedalStyle.Foreground(m.Theme.Success()).Bold(true)
		pedal = fmt.Sprintf("%c SOSTENUTO", m.Theme.Symbols.PedalDown)
	}

	logState := "log:on"
	if !m.Engine.LoggingEnabled() {
		logState = "log:off"
	}

	header := headerStyle.Render(fmt.Sprintf("go-sostenuto  in:%s  out:%s  %s",
		orNone(m.Ports.Input), orNone(m.Ports.Output), logState))

	style := widgets.KeyStyle{
		Up:        m.Theme.Muted(),
		Live:      m.Theme.Live(),
		Held:      m.Theme.Held(),
		UpGlyph:   m.Theme.Symbols.KeyUp,
		DownGlyph: m.Theme.Symbols.KeyDown,
	}
	keyboard := widgets.RenderKeyboard(m.base-12, 3, m.keyState(snap), style, func(note int) string {
		return midi.NoteName(uint8(note))
	})

	held := "held: -"
	if !snap.Held.Empty() {
		names := make([]string, 0, snap.Held.Len())
		for _, n := range snap.Held.Notes() {
			names = append(names, midi.NoteName(n))
		}
		held = "held: " + strings.Join(names, " ")
	}

	stats := dimStyle.Render(fmt.Sprintf("fwd:%d  suppressed:%d  released:%d  deferred:%d  drops:%d/%d  octave:%s",
		st.Forwarded, st.Suppressed, st.Synthetic, st.Deferred, st.LogDrops, st.OffloadDrops,
		midi.NoteName(uint8(m.base))))

	var out strings.Builder
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(keyboard)
	out.WriteString("\n")
	out.WriteString(pedalStyle.Render(pedal))
	out.WriteString("  ")
	out.WriteString(held)
	out.WriteString("\n")
	out.WriteString(stats)
	if m.status != "" {
		out.WriteString("  ")
		out.WriteString(dimStyle.Render(m.status))
	}
	out.WriteString("\n")
	out.WriteString(m.log.View())
	out.WriteString("\n")
	out.WriteString(m.help.View(m.keys))

	return out.String()
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

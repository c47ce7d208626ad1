package tui

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/multicontroller/internal/coordinator"
	"github.com/muurk/multicontroller/internal/entity"
	"github.com/muurk/multicontroller/internal/ui"
)

// setpointStep is the climate target change per key press
const setpointStep = 0.5

// Source is the refresh side of a coordinator
type Source interface {
	Subscribe() (<-chan coordinator.Update, func())
	RequestRefresh(ctx context.Context)
	LastUpdate() time.Time
	LastUpdateSuccess() bool
	LastError() error
}

type updateMsg coordinator.Update

type subscriptionClosedMsg struct{}

type actionDoneMsg struct {
	label string
	err   error
}

// Model is the watch dashboard. It lists every entity, follows refresh
// cycles and sends commands for the entity under the cursor.
type Model struct {
	ctx      context.Context
	title    string
	entities *entity.Set
	source   Source

	updates     <-chan coordinator.Update
	unsubscribe func()

	states     []entity.State
	cursor     int
	busy       bool
	notice     string
	ok         bool
	lastErr    error
	lastUpdate time.Time

	spinner spinner.Model
	help    help.Model
	keys    keyMap

	width  int
	height int
}

// New creates a dashboard and subscribes it to source. The subscription is
// released when the user quits.
func New(ctx context.Context, title string, entities *entity.Set, source Source) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	updates, unsubscribe := source.Subscribe()

	return Model{
		ctx:         ctx,
		title:       title,
		entities:    entities,
		source:      source,
		updates:     updates,
		unsubscribe: unsubscribe,
		states:      entities.Describe(),
		ok:          source.LastUpdateSuccess(),
		lastErr:     source.LastError(),
		lastUpdate:  source.LastUpdate(),
		spinner:     s,
		help:        help.New(),
		keys:        newKeyMap(),
		width:       ui.GetTerminalWidth(),
	}
}

// Run shows the dashboard until the user quits or ctx is cancelled
func Run(ctx context.Context, title string, entities *entity.Set, source Source) error {
	m := New(ctx, title, entities, source)
	defer m.unsubscribe()

	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

func waitForUpdate(updates <-chan coordinator.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-updates
		if !ok {
			return subscriptionClosedMsg{}
		}
		return updateMsg(u)
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForUpdate(m.updates))
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case updateMsg:
		m.states = m.entities.Describe()
		m.ok = msg.Success
		m.lastErr = msg.Err
		m.lastUpdate = msg.At
		return m, waitForUpdate(m.updates)

	case subscriptionClosedMsg:
		m.notice = "coordinator stopped"
		return m, nil

	case actionDoneMsg:
		m.busy = false
		m.states = m.entities.Describe()
		if msg.err != nil {
			m.notice = msg.label + " failed: " + msg.err.Error()
		} else {
			m.notice = msg.label + " sent"
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.unsubscribe()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.states)-1 {
			m.cursor++
		}
		return m, nil
	}

	if m.busy {
		return m, nil
	}

	label, action := m.actionFor(msg)
	if action == nil {
		return m, nil
	}

	m.busy = true
	m.notice = ""
	ctx := m.ctx
	return m, func() tea.Msg {
		return actionDoneMsg{label: label, err: action(ctx)}
	}
}

// actionFor maps a key press to a command on the selected entity. A nil
// action means the key does nothing for it.
func (m Model) actionFor(msg tea.KeyMsg) (string, func(context.Context) error) {
	if key.Matches(msg, m.keys.Refresh) {
		return "refresh", func(ctx context.Context) error {
			m.source.RequestRefresh(ctx)
			return nil
		}
	}

	selected, ok := m.selected()
	if !ok {
		return "", nil
	}

	switch e := selected.(type) {
	case *entity.Switch:
		if key.Matches(msg, m.keys.Toggle) {
			if on := e.IsOn(); on != nil && *on {
				return "turn off " + e.Name(), func(ctx context.Context) error { e.TurnOff(ctx); return nil }
			}
			return "turn on " + e.Name(), func(ctx context.Context) error { e.TurnOn(ctx); return nil }
		}

	case *entity.Climate:
		return m.climateAction(msg, e)

	case *entity.Number:
		var delta float64
		switch {
		case key.Matches(msg, m.keys.Warmer):
			delta = e.Step()
		case key.Matches(msg, m.keys.Cooler):
			delta = -e.Step()
		default:
			return "", nil
		}
		current, ok := e.NativeValue()
		if !ok {
			current = e.Min()
		}
		target := current + delta
		return fmt.Sprintf("set %s to %s", e.Name(), ui.FormatValue(target)), func(ctx context.Context) error {
			return e.SetNativeValue(ctx, target)
		}
	}
	return "", nil
}

func (m Model) climateAction(msg tea.KeyMsg, c *entity.Climate) (string, func(context.Context) error) {
	setMode := func(mode entity.HVACMode) (string, func(context.Context) error) {
		return "set " + c.Name() + " " + string(mode), func(ctx context.Context) error {
			return c.SetHVACMode(ctx, mode)
		}
	}

	switch {
	case key.Matches(msg, m.keys.Heat):
		return setMode(entity.HVACModeHeat)
	case key.Matches(msg, m.keys.Cool):
		return setMode(entity.HVACModeCool)
	case key.Matches(msg, m.keys.Off):
		return setMode(entity.HVACModeOff)

	case key.Matches(msg, m.keys.Warmer), key.Matches(msg, m.keys.Cooler):
		if !c.SupportedFeatures().Has(entity.FeatureTargetTemperature) {
			return "", nil
		}
		target, ok := c.TargetTemperature()
		if !ok {
			return "", nil
		}
		if key.Matches(msg, m.keys.Warmer) {
			target += setpointStep
		} else {
			target -= setpointStep
		}
		return fmt.Sprintf("set %s to %s%s", c.Name(), ui.FormatValue(target), c.TemperatureUnit()), func(ctx context.Context) error {
			return c.SetTemperature(ctx, target)
		}

	case key.Matches(msg, m.keys.Fan):
		modes := c.FanModes()
		if len(modes) == 0 || !c.SupportedFeatures().Has(entity.FeatureFanMode) {
			return "", nil
		}
		next := modes[(slices.Index(modes, c.FanMode())+1)%len(modes)]
		return "set " + c.Name() + " fan " + next, func(ctx context.Context) error {
			return c.SetFanMode(ctx, next)
		}
	}
	return "", nil
}

func (m Model) selected() (entity.Entity, bool) {
	if m.cursor < 0 || m.cursor >= len(m.states) {
		return nil, false
	}
	e, err := m.entities.Get(m.states[m.cursor].UniqueID)
	return e, err == nil
}

// View implements tea.Model
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render(AppName + "  " + m.title))
	b.WriteString("\n")
	b.WriteString(SubtitleStyle.Render("v" + AppVersion()))
	b.WriteString("\n\n")

	nameWidth := 0
	for _, st := range m.states {
		nameWidth = max(nameWidth, lipgloss.Width(st.Name))
	}

	var rows []string
	for i, st := range m.states {
		line := fmt.Sprintf("%s %-13s %-*s  %s",
			ui.AvailabilityMarker(st.Available), st.Platform, nameWidth, st.Name, ui.Summary(st))
		if !st.Available {
			line = UnavailableStyle.Render(line)
		}
		if i == m.cursor {
			rows = append(rows, SelectedRowStyle.Render("> "+line))
		} else {
			rows = append(rows, RowStyle.Render(line))
		}
	}
	if len(rows) == 0 {
		rows = append(rows, SubtitleStyle.Render("no entities"))
	}
	b.WriteString(BoxStyle.Width(max(m.width-2, 40)).Render(strings.Join(rows, "\n")))
	b.WriteString("\n")

	b.WriteString(m.statusLine())
	b.WriteString("\n")
	if m.notice != "" {
		b.WriteString(NoticeStyle.Render(m.notice))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) statusLine() string {
	var parts []string
	if m.busy {
		parts = append(parts, m.spinner.View()+" working")
	}

	when := "never"
	if !m.lastUpdate.IsZero() {
		when = m.lastUpdate.Format("15:04:05")
	}
	if m.ok {
		parts = append(parts, StatusOKStyle.Render(ui.SuccessMarker+" updated "+when))
	} else {
		status := ui.FailureMarker + " update failed " + when
		if m.lastErr != nil {
			status += ": " + m.lastErr.Error()
		}
		parts = append(parts, StatusErrorStyle.Render(status))
	}
	return strings.Join(parts, "  ")
}

package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/muurk/multicontroller/internal/discovery"
	"github.com/muurk/multicontroller/internal/entity"
	"github.com/muurk/multicontroller/internal/params"
)

// FormatValue renders an entity or parameter value for display
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "unknown"
	case bool:
		if t {
			return "on"
		}
		return "off"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case string:
		if t == "" {
			return "unknown"
		}
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

func newTable(width int, headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(PrimaryColor)).
		Width(max(width, MinTerminalWidth)).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle.Padding(0, 1)
			}
			return TableCellStyle.Padding(0, 1)
		})
}

// EntityTable renders entity states, one per row
func EntityTable(states []entity.State, width int) string {
	t := newTable(width, "", "PLATFORM", "NAME", "VALUE", "UNIQUE ID")
	for _, st := range states {
		t.Row(AvailabilityMarker(st.Available), string(st.Platform), st.Name, Summary(st), TableMutedStyle.Render(st.UniqueID))
	}
	return t.Render()
}

// Summary renders an entity's value with its unit. Climate entities show
// mode, temperatures and fan mode.
func Summary(st entity.State) string {
	if st.Platform == entity.PlatformClimate {
		return climateSummary(st)
	}
	value := FormatValue(st.Value)
	if st.Unit != "" && st.Value != nil {
		value += " " + st.Unit
	}
	return value
}

func climateSummary(st entity.State) string {
	mode, _ := st.Value.(string)
	parts := []string{HVACModeStyle(entity.HVACMode(mode)).Render(FormatValue(mode))}
	if cur, ok := st.Attributes["current_temperature"]; ok && cur != nil {
		parts = append(parts, FormatValue(cur)+st.Unit)
	}
	if target, ok := st.Attributes["target_temperature"]; ok && target != nil {
		parts = append(parts, "→ "+FormatValue(target)+st.Unit)
	}
	if fan, ok := st.Attributes["fan_mode"]; ok && fan != nil {
		parts = append(parts, "fan "+FormatValue(fan))
	}
	return strings.Join(parts, " ")
}

// NodeTable renders every parameter of every node in the snapshot
func NodeTable(snap *params.Snapshot, width int) string {
	t := newTable(width, "NODE", "PARAM", "VALUE", "TYPE", "PROPERTIES", "BOUNDS")
	for _, id := range snap.NodeIDs() {
		node := snap.Node(id)
		for _, name := range node.Names() {
			p := node.Get(name)
			bounds := ""
			if p.Bounds != nil {
				bounds = fmt.Sprintf("%s..%s", FormatValue(p.Bounds.Min), FormatValue(p.Bounds.Max))
				if p.Bounds.Step != 0 {
					bounds += " / " + FormatValue(p.Bounds.Step)
				}
			}
			value := TableMutedStyle.Render("unknown")
			if p.HasValue() {
				value = p.String()
			}
			t.Row(id, name, value, p.DataType.String(), strings.Join(p.Properties.List(), ","), bounds)
		}
	}
	return t.Render()
}

// BridgeTable renders discovered bridges
func BridgeTable(bridges []*discovery.Bridge, width int) string {
	t := newTable(width, "INSTANCE", "ADDRESS", "ENTRY", "NODES", "AUTH")
	for _, b := range bridges {
		nodes := "?"
		if n := b.Nodes(); n >= 0 {
			nodes = strconv.Itoa(n)
		}
		auth := "off"
		if b.AuthRequired() {
			auth = "on"
		}
		t.Row(b.Instance, b.BaseURL(), b.EntryID(), nodes, auth)
	}
	return t.Render()
}

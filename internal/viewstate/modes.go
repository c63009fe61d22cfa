package viewstate

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Mode is the active ray visualization mode.
type Mode int

const (
	ModeHidden Mode = iota
	ModeShowAll
	ModePlayback
)

var modeNames = [...]string{"hidden", "show_all", "playback"}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return fmt.Sprintf("mode(%d)", int(m))
	}
	return modeNames[m]
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	for i, name := range modeNames {
		if name == string(b) {
			*m = Mode(i)
			return nil
		}
	}
	return fmt.Errorf("viewstate: unknown mode %q", b)
}

// Control identifies a user-facing control the selector can expose.
type Control uint8

const (
	ControlScatterPoints Control = 1 << iota
	ControlSwitchToPlayback
	ControlSwitchToShowAll
	ControlPlayback
)

var controlOrder = []Control{ControlScatterPoints, ControlSwitchToPlayback, ControlSwitchToShowAll, ControlPlayback}

func (c Control) String() string {
	switch c {
	case ControlScatterPoints:
		return "scatter_points"
	case ControlSwitchToPlayback:
		return "switch_to_playback"
	case ControlSwitchToShowAll:
		return "switch_to_show_all"
	case ControlPlayback:
		return "playback"
	}
	return fmt.Sprintf("control(%d)", uint8(c))
}

// Controls is a set of exposed controls.
type Controls uint8

// Has reports whether c is exposed.
func (cs Controls) Has(c Control) bool {
	return cs&Controls(c) != 0
}

// List returns the exposed controls in display order.
func (cs Controls) List() []Control {
	out := make([]Control, 0, len(controlOrder))
	for _, c := range controlOrder {
		if cs.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

func (cs Controls) String() string {
	names := make([]string, 0, len(controlOrder))
	for _, c := range cs.List() {
		names = append(names, c.String())
	}
	return "{" + strings.Join(names, ",") + "}"
}

// MarshalJSON encodes the set as a list of control names.
func (cs Controls) MarshalJSON() ([]byte, error) {
	names := make([]string, 0, len(controlOrder))
	for _, c := range cs.List() {
		names = append(names, c.String())
	}
	return json.Marshal(names)
}

// UnmarshalJSON decodes a list of control names.
func (cs *Controls) UnmarshalJSON(b []byte) error {
	var names []string
	if err := json.Unmarshal(b, &names); err != nil {
		return err
	}
	var out Controls
	for _, name := range names {
		i := slices.IndexFunc(controlOrder, func(c Control) bool { return c.String() == name })
		if i < 0 {
			return fmt.Errorf("viewstate: unknown control %q", name)
		}
		out |= Controls(controlOrder[i])
	}
	*cs = out
	return nil
}

func controlsOf(cs ...Control) Controls {
	var out Controls
	for _, c := range cs {
		out |= Controls(c)
	}
	return out
}

// ActiveMode derives the active ray mode from the flags.
func ActiveMode(v ViewState) Mode {
	switch {
	case !v.RaysVisible:
		return ModeHidden
	case v.ShowAllRays:
		return ModeShowAll
	default:
		return ModePlayback
	}
}

// Select derives which controls are exposed for v. It is a total, pure
// function: hidden rays expose nothing, show-all exposes the scatter toggle
// and the switch to playback, playback exposes the scatter toggle, the switch
// to show-all and the playback controls.
func Select(v ViewState) Controls {
	switch ActiveMode(v) {
	case ModeShowAll:
		return controlsOf(ControlScatterPoints, ControlSwitchToPlayback)
	case ModePlayback:
		return controlsOf(ControlScatterPoints, ControlSwitchToShowAll, ControlPlayback)
	default:
		return 0
	}
}

// CheckExclusive verifies that exactly one of show-all and playback is active
// while rays are visible and neither is while they are hidden.
func CheckExclusive(v ViewState) error {
	cs := Select(v)
	showAll := cs.Has(ControlSwitchToPlayback)
	playback := cs.Has(ControlPlayback)
	switch {
	case showAll && playback:
		return fmt.Errorf("viewstate: show-all and playback both active in %+v", v)
	case v.RaysVisible && !showAll && !playback:
		return fmt.Errorf("viewstate: no ray mode active in %+v", v)
	case !v.RaysVisible && cs != 0:
		return fmt.Errorf("viewstate: controls %v exposed while rays hidden", cs)
	}
	return nil
}

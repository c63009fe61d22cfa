package viewstate

// NoPlayback marks a playback cursor that has not been placed yet.
const NoPlayback = -1

// ViewState holds the visualization mode flags. Transitions are pure: they
// return the next state, or an error and leave the receiver as it was.
//
// ShowAllRays, ScatterPoints and PlaybackIndex are kept while rays are hidden
// but only mean something when RaysVisible is true.
type ViewState struct {
	RaysVisible   bool `json:"rays_visible"`
	ShowAllRays   bool `json:"show_all_rays"`
	ScatterPoints bool `json:"scatter_points"`
	PlaybackIndex int  `json:"playback_index"`
}

// Initial is the state every session starts in.
func Initial() ViewState {
	return ViewState{PlaybackIndex: NoPlayback}
}

// HasPlayback reports whether the playback cursor has been placed.
func (v ViewState) HasPlayback() bool {
	return v.PlaybackIndex != NoPlayback
}

// PlaybackActive reports whether playback mode is the active ray mode.
func (v ViewState) PlaybackActive() bool {
	return v.RaysVisible && !v.ShowAllRays
}

func (v ViewState) withVisible(on bool) ViewState {
	v.RaysVisible = on
	return v
}

// ToggleShowAll switches between show-all and playback mode.
func (v ViewState) ToggleShowAll() (ViewState, error) {
	if !v.RaysVisible {
		return v, invalidTransition("show-all needs visible rays")
	}
	v.ShowAllRays = !v.ShowAllRays
	return v, nil
}

// ToggleScatterPoints switches the scatter-point overlay.
func (v ViewState) ToggleScatterPoints() (ViewState, error) {
	if !v.RaysVisible {
		return v, invalidTransition("scatter points need visible rays")
	}
	v.ScatterPoints = !v.ScatterPoints
	return v, nil
}

// SetPlaybackIndex moves the playback cursor to i within a dataset of n rays.
func (v ViewState) SetPlaybackIndex(i, n int) (ViewState, error) {
	if !v.PlaybackActive() {
		return v, invalidTransition("playback index needs visible rays in playback mode")
	}
	if i < 0 || i >= n {
		return v, &IndexError{Index: i, Len: n}
	}
	v.PlaybackIndex = i
	return v, nil
}

// StepPlayback moves the cursor by delta, wrapping around the dataset. From
// an unplaced cursor a forward step lands on the first ray and a backward
// step on the last.
func (v ViewState) StepPlayback(delta, n int) (ViewState, error) {
	if !v.PlaybackActive() {
		return v, invalidTransition("playback step needs visible rays in playback mode")
	}
	if n <= 0 {
		return v, &IndexError{Index: v.PlaybackIndex + delta, Len: n}
	}
	if delta == 0 {
		return v, nil
	}

	var next int
	switch {
	case !v.HasPlayback() && delta > 0:
		next = delta - 1
	case !v.HasPlayback():
		next = n + delta
	default:
		next = v.PlaybackIndex + delta
	}
	next %= n
	if next < 0 {
		next += n
	}
	v.PlaybackIndex = next
	return v, nil
}

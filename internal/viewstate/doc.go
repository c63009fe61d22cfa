// Package viewstate is the view-state controller of the ray viewer.
//
// A [Session] owns one [ViewState] and one ray dataset. It decides, on
// demand, whether trace data has been loaded and transformed, and which of
// the mutually exclusive ray modes is active:
//
//   - [Session.RequestToggleVisibility]: lazy load on first use, toggle afterwards
//   - [ViewState]: mode flags with pure transitions
//   - [Select]: derives the exposed controls from a [ViewState]
//   - [LoadStatus]: NotLoaded, Loading, Loaded or Failed
//
// # Loading
//
// The fetch and transform pipeline runs at most once successfully per
// session. Requests arriving while a load is in flight wait for that same
// load. Visibility never turns on before the dataset is installed, and a
// failed load leaves visibility and the dataset untouched.
//
// # Thread Safety
//
// Session methods may be called from any goroutine. Renderers subscribe with
// [Session.Subscribe] and re-read [Session.Snapshot] on every ping.
package viewstate

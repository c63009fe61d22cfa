package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/san-kum/rayview/internal/rays"
	"github.com/san-kum/rayview/internal/render"
	"github.com/san-kum/rayview/internal/viewstate"
)

const (
	defaultSceneWidth  = 80
	defaultSceneHeight = 24
	maxSceneSize       = 400
)

type ctxKey struct{}

// sessionFrom returns the session attached by withSession.
func sessionFrom(ctx context.Context) *viewstate.Session {
	s, _ := ctx.Value(ctxKey{}).(*viewstate.Session)
	return s
}

// withSession resolves the browser cookie to a registry session, creating
// one on first contact.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A cookie signed with another key decodes to a fresh session.
		cookie, _ := s.cookies.Get(r, cookieName)

		id, _ := cookie.Values[cookieKey].(string)
		vs, ok := s.registry.Get(id)
		if !ok {
			var err error
			if vs, err = s.registry.Create(); err != nil {
				writeError(w, http.StatusServiceUnavailable, nil, err)
				return
			}
			cookie.Values[cookieKey] = vs.ID()
			if err := cookie.Save(r, w); err != nil {
				s.logger.Error("saving session cookie", "error", err)
			}
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, vs)))
	})
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type stateResponse struct {
	State *viewstate.Snapshot `json:"state,omitempty"`
	Error *errorBody          `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, vs *viewstate.Session, err error) {
	resp := stateResponse{Error: &errorBody{Kind: errorKind(err), Message: err.Error()}}
	if vs != nil {
		snap := vs.Snapshot()
		resp.State = &snap
	}
	writeJSON(w, status, resp)
}

// respond writes the session state after an operation, mapping err to a
// status code. The state is always included so clients can resync.
func respond(w http.ResponseWriter, vs *viewstate.Session, err error) {
	if err != nil {
		writeError(w, errorStatus(err), vs, err)
		return
	}
	snap := vs.Snapshot()
	writeJSON(w, http.StatusOK, stateResponse{State: &snap})
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, viewstate.ErrDataUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, viewstate.ErrTransformFailed):
		return http.StatusBadGateway
	case errors.Is(err, viewstate.ErrInvalidModeTransition):
		return http.StatusConflict
	case errors.Is(err, viewstate.ErrIndexOutOfRange):
		return http.StatusUnprocessableEntity
	case errors.Is(err, viewstate.ErrClosed):
		return http.StatusGone
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	}
	return http.StatusInternalServerError
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, viewstate.ErrDataUnavailable):
		return viewstate.NoticeDataUnavailable.String()
	case errors.Is(err, viewstate.ErrTransformFailed):
		return viewstate.NoticeTransformFailed.String()
	case errors.Is(err, viewstate.ErrInvalidModeTransition):
		return viewstate.NoticeInvalidTransition.String()
	case errors.Is(err, viewstate.ErrIndexOutOfRange):
		return viewstate.NoticeIndexOutOfRange.String()
	case errors.Is(err, viewstate.ErrClosed):
		return "closed"
	}
	return "bad_request"
}

var errBadParam = errors.New("bad parameter")

func intParam(r *http.Request, name string) (int, error) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", errBadParam, name, chi.URLParam(r, name))
	}
	return v, nil
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	respond(w, sessionFrom(r.Context()), nil)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	vs := sessionFrom(r.Context())
	respond(w, vs, vs.ToggleRaysVisible(r.Context()))
}

func (s *Server) handleShowAll(w http.ResponseWriter, r *http.Request) {
	vs := sessionFrom(r.Context())
	respond(w, vs, vs.ToggleShowAllRays())
}

func (s *Server) handleScatter(w http.ResponseWriter, r *http.Request) {
	vs := sessionFrom(r.Context())
	respond(w, vs, vs.ToggleScatterPoints())
}

func (s *Server) handleSetPlayback(w http.ResponseWriter, r *http.Request) {
	vs := sessionFrom(r.Context())
	i, err := intParam(r, "index")
	if err != nil {
		writeError(w, http.StatusBadRequest, vs, err)
		return
	}
	respond(w, vs, vs.SetPlaybackIndex(i))
}

func (s *Server) handleStepPlayback(w http.ResponseWriter, r *http.Request) {
	vs := sessionFrom(r.Context())
	d, err := intParam(r, "delta")
	if err != nil {
		writeError(w, http.StatusBadRequest, vs, err)
		return
	}
	respond(w, vs, vs.StepPlayback(d))
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	vs := sessionFrom(r.Context())
	s.registry.Remove(vs.ID())

	cookie, _ := s.cookies.Get(r, cookieName)
	cookie.Options.MaxAge = -1
	if err := cookie.Save(r, w); err != nil {
		s.logger.Error("clearing session cookie", "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

type raySummary struct {
	Index      int      `json:"index"`
	Speed      float64  `json:"speed"`
	Events     int      `json:"events"`
	Components []string `json:"components"`
}

type datasetSummary struct {
	RayCount   int          `json:"ray_count"`
	EventCount int          `json:"event_count"`
	SpeedMin   float64      `json:"speed_min"`
	SpeedMax   float64      `json:"speed_max"`
	BoundsMin  rays.Vec3    `json:"bounds_min"`
	BoundsMax  rays.Vec3    `json:"bounds_max"`
	Visible    []int        `json:"visible"`
	Rays       []raySummary `json:"rays"`
}

// handleRays describes the loaded dataset. It does not trigger a load.
func (s *Server) handleRays(w http.ResponseWriter, r *http.Request) {
	vs := sessionFrom(r.Context())
	d := vs.Dataset()
	if d == nil {
		writeError(w, http.StatusServiceUnavailable, vs, fmt.Errorf("%w: rays not loaded", viewstate.ErrDataUnavailable))
		return
	}

	vmin, vmax := d.SpeedRange()
	b := d.Bounds()
	sum := datasetSummary{
		RayCount:   d.Len(),
		EventCount: d.EventCount(),
		SpeedMin:   vmin,
		SpeedMax:   vmax,
		BoundsMin:  b.Min,
		BoundsMax:  b.Max,
		Visible:    render.Visible(d, vs.View()),
		Rays:       make([]raySummary, 0, d.Len()),
	}
	for i, ray := range d.Rays() {
		rs := raySummary{Index: i, Speed: ray.Speed, Events: len(ray.Events), Components: []string{}}
		for _, e := range ray.Events {
			if e.Component != "" {
				rs.Components = append(rs.Components, e.Component)
			}
		}
		sum.Rays = append(sum.Rays, rs)
	}
	writeJSON(w, http.StatusOK, sum)
}

// sceneSize reads w and h query values, clamped to sane canvas sizes.
func sceneSize(r *http.Request) (int, int) {
	size := func(key string, def int) int {
		v, err := strconv.Atoi(r.URL.Query().Get(key))
		if err != nil || v < 1 {
			return def
		}
		return min(v, maxSceneSize)
	}
	return size("w", defaultSceneWidth), size("h", defaultSceneHeight)
}

func (s *Server) frame(vs *viewstate.Session, width, height int) string {
	d := vs.Dataset()
	cam := s.cfg.NewCamera()
	if d != nil {
		cam.Fit(d.Bounds())
	}
	return render.BuildScene(d, vs.View()).Frame(cam, width, height).String()
}

func (s *Server) handleScene(w http.ResponseWriter, r *http.Request) {
	vs := sessionFrom(r.Context())
	width, height := sceneSize(r)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprint(w, s.frame(vs, width, height))
}

// signals is the flat client-side view of a snapshot.
type signals struct {
	Status      string   `json:"status"`
	Mode        string   `json:"mode"`
	RaysVisible bool     `json:"raysVisible"`
	ShowAll     bool     `json:"showAll"`
	Scatter     bool     `json:"scatter"`
	Playback    int      `json:"playback"`
	RayCount    int      `json:"rayCount"`
	Controls    []string `json:"controls"`
	Notice      string   `json:"notice"`
}

func signalsOf(snap viewstate.Snapshot) signals {
	sig := signals{
		Status:      snap.Status.String(),
		Mode:        snap.Mode.String(),
		RaysVisible: snap.View.RaysVisible,
		ShowAll:     snap.View.ShowAllRays,
		Scatter:     snap.View.ScatterPoints,
		Playback:    snap.View.PlaybackIndex,
		RayCount:    snap.RayCount,
		Controls:    []string{},
	}
	for _, c := range snap.Controls.List() {
		sig.Controls = append(sig.Controls, c.String())
	}
	if snap.LastNotice != nil {
		sig.Notice = snap.LastNotice.Message
	}
	return sig
}

type sceneRequest struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// handleUpdates streams the session state: a signal patch and a scene
// patch on connect and after every change.
func (s *Server) handleUpdates(w http.ResponseWriter, r *http.Request) {
	vs := sessionFrom(r.Context())
	req := sceneRequest{Width: defaultSceneWidth, Height: defaultSceneHeight}
	if err := datastar.ReadSignals(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, vs, fmt.Errorf("%w: %v", errBadParam, err))
		return
	}
	req.Width = min(max(req.Width, 1), maxSceneSize)
	req.Height = min(max(req.Height, 1), maxSceneSize)

	updates := vs.Subscribe()
	defer vs.Unsubscribe(updates)

	sse := datastar.NewSSE(w, r)
	send := func() error {
		if err := sse.MarshalAndPatchSignals(signalsOf(vs.Snapshot())); err != nil {
			return err
		}
		scene := `<pre id="scene">` + html.EscapeString(s.frame(vs, req.Width, req.Height)) + `</pre>`
		return sse.PatchElements(scene)
	}

	if err := send(); err != nil {
		_ = sse.ConsoleError(err)
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case _, ok := <-updates:
			if !ok {
				return
			}
			if err := send(); err != nil {
				_ = sse.ConsoleError(err)
				return
			}
		}
	}
}

const indexHTML = `<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>rayview</title>
<script type="module" src="https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.6/bundles/datastar.js"></script>
<style>
body { background: #0d0d12; color: %s; font-family: monospace; }
h1 { color: %s; }
pre#scene { color: %s; line-height: 1.0; }
button[disabled] { opacity: 0.4; }
</style>
</head>
<body data-signals="{width: 100, height: 30}" data-init="@get('/api/updates')">
<h1>RAYVIEW %s</h1>
<div>
 <button data-on:click="@post('/api/rays/toggle')">rays</button>
 <button data-on:click="@post('/api/rays/show-all')" data-attr:disabled="!$controls.includes('switch_to_show_all') && !$controls.includes('switch_to_playback')" data-text="$mode == 'show_all' ? 'playback' : 'show all'"></button>
 <button data-on:click="@post('/api/rays/scatter')" data-attr:disabled="!$controls.includes('scatter_points')">scatter</button>
 <button data-on:click="@post('/api/rays/playback/step/-1')" data-attr:disabled="!$controls.includes('playback')">prev</button>
 <button data-on:click="@post('/api/rays/playback/step/1')" data-attr:disabled="!$controls.includes('playback')">next</button>
</div>
<p>status <span data-text="$status"></span> mode <span data-text="$mode"></span> rays <span data-text="$rayCount"></span> index <span data-text="$playback"></span></p>
<p data-text="$notice"></p>
<pre id="scene"></pre>
</body>
</html>
`

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	theme := render.GetTheme(s.cfg.Theme)
	_, _ = fmt.Fprintf(w, indexHTML, theme.Text, theme.Accent, theme.Primary, html.EscapeString(s.cfg.Ref))
}

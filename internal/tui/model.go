package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/rayview/internal/rays"
	"github.com/san-kum/rayview/internal/render"
	"github.com/san-kum/rayview/internal/viewstate"
)

const (
	defaultWidth  = 72
	defaultHeight = 22
	rotateStep    = 0.1
)

type (
	tickMsg    struct{ tag int }
	changedMsg struct{}
	closedMsg  struct{}
	toggledMsg struct{ err error }
)

// Options configures the viewer.
type Options struct {
	Theme  string
	FPS    int
	Camera *render.Camera
	Invert bool
	Logger *slog.Logger
}

// Model is the bubbletea model of the ray viewer. Every key maps to one
// session entry point; the model never changes view state itself.
type Model struct {
	ctx     context.Context
	session *viewstate.Session
	sub     chan struct{}
	logger  *slog.Logger

	snap     viewstate.Snapshot
	dataset  *rays.Dataset
	camera   *render.Camera
	fitted   bool
	theme    render.Theme
	styles   styles
	invert   bool
	fps      int
	autoplay bool
	// tickTag identifies the live autoplay tick chain; stale ticks are dropped.
	tickTag int

	keys    keyMap
	help    help.Model
	spinner spinner.Model

	width, height int
}

// NewModel subscribes to the session; the subscription ends when the
// session is closed.
func NewModel(ctx context.Context, s *viewstate.Session, opts Options) Model {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.FPS <= 0 {
		opts.FPS = 20
	}
	if opts.Camera == nil {
		opts.Camera = render.NewCamera()
	}
	theme := render.GetTheme(opts.Theme)

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Accent)

	m := Model{
		ctx:     ctx,
		session: s,
		sub:     s.Subscribe(),
		logger:  opts.Logger,
		camera:  opts.Camera,
		theme:   theme,
		styles:  newStyles(theme, opts.Invert),
		invert:  opts.Invert,
		fps:     opts.FPS,
		keys:    newKeyMap(),
		help:    help.New(),
		spinner: sp,
		width:   defaultWidth,
		height:  defaultHeight,
	}
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForChange(m.sub))
}

func waitForChange(sub chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-sub; !ok {
			return closedMsg{}
		}
		return changedMsg{}
	}
}

func (m Model) tick() tea.Cmd {
	tag := m.tickTag
	return tea.Tick(time.Second/time.Duration(m.fps), func(time.Time) tea.Msg { return tickMsg{tag: tag} })
}

// toggle runs the lazy load off the update loop so other keys keep working.
func (m Model) toggle() tea.Cmd {
	ctx, s := m.ctx, m.session
	return func() tea.Msg {
		return toggledMsg{err: s.ToggleRaysVisible(ctx)}
	}
}

func (m *Model) refresh() {
	m.snap = m.session.Snapshot()
	m.keys.expose(m.snap)
	if d := m.session.Dataset(); d != m.dataset {
		m.dataset = d
		if d != nil && !m.fitted {
			m.camera.Fit(d.Bounds())
			m.fitted = true
		}
	}
	if m.snap.Mode != viewstate.ModePlayback {
		m.autoplay = false
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = max(20, msg.Width-42)
		m.height = max(8, msg.Height-8)
		m.help.Width = msg.Width
	case tea.KeyMsg:
		return m.handleKey(msg)
	case toggledMsg:
		if msg.err != nil {
			m.logger.Debug("toggle rays failed", "err", msg.err)
		}
		m.refresh()
	case changedMsg:
		m.refresh()
		return m, waitForChange(m.sub)
	case closedMsg:
		return m, tea.Quit
	case tickMsg:
		if !m.autoplay || msg.tag != m.tickTag {
			return m, nil
		}
		if err := m.session.StepPlayback(1); err != nil {
			m.autoplay = false
		}
		m.refresh()
		if m.autoplay {
			return m, m.tick()
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.session.Unsubscribe(m.sub)
		return m, tea.Quit
	case key.Matches(msg, m.keys.Rays):
		return m, m.toggle()
	case key.Matches(msg, m.keys.ShowAll):
		_ = m.session.ToggleShowAllRays()
	case key.Matches(msg, m.keys.Scatter):
		_ = m.session.ToggleScatterPoints()
	case key.Matches(msg, m.keys.Prev):
		_ = m.session.StepPlayback(-1)
	case key.Matches(msg, m.keys.Next):
		_ = m.session.StepPlayback(1)
	case key.Matches(msg, m.keys.Autoplay):
		m.autoplay = !m.autoplay
		if m.autoplay {
			m.tickTag++
			return m, m.tick()
		}
		return m, nil
	case key.Matches(msg, m.keys.RotX):
		m.camera.RotateX(signed(msg, rotateStep))
	case key.Matches(msg, m.keys.RotY):
		m.camera.RotateY(signed(msg, rotateStep))
	case key.Matches(msg, m.keys.RotZ):
		m.camera.RotateZ(signed(msg, rotateStep))
	case key.Matches(msg, m.keys.ZoomIn):
		m.camera.ZoomIn()
	case key.Matches(msg, m.keys.ZoomOut):
		m.camera.ZoomOut()
	case key.Matches(msg, m.keys.Theme):
		m.theme = render.NextTheme(m.theme.Name)
		m.styles = newStyles(m.theme, m.invert)
		m.spinner.Style = lipgloss.NewStyle().Foreground(m.theme.Accent)
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	default:
		return m, nil
	}
	m.refresh()
	return m, nil
}

// signed returns -step for the shifted variant of a rotation key.
func signed(msg tea.KeyMsg, step float64) float64 {
	if s := msg.String(); s != strings.ToLower(s) {
		return -step
	}
	return step
}

func (m Model) View() string {
	scene := render.BuildScene(m.dataset, m.snap.View)
	canvas := m.styles.canvas.Render(scene.Frame(m.camera, m.width, m.height).String())
	body := lipgloss.JoinHorizontal(lipgloss.Top, canvas, m.panel(scene))

	var b strings.Builder
	b.WriteString(m.styles.header.Render("RAYVIEW  " + m.session.Ref()))
	b.WriteString("\n")
	b.WriteString(body)
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) row(label, value string) string {
	return m.styles.label.Render(label) + m.styles.value.Render(value) + "\n"
}

func (m Model) panel(scene *render.Scene) string {
	var b strings.Builder
	b.WriteString(m.row("status", m.snap.Status.String()))
	b.WriteString(m.styles.label.Render("mode") + m.styles.mode.Render(m.snap.Mode.String()) + "\n")
	b.WriteString(m.row("rays", fmt.Sprintf("%d", m.snap.RayCount)))
	if m.dataset != nil {
		vmin, vmax := m.dataset.SpeedRange()
		b.WriteString(m.row("speed", fmt.Sprintf("%.0f-%.0f m/s", vmin, vmax)))
	}

	if m.snap.Mode == viewstate.ModePlayback {
		idx := "-"
		if m.snap.View.HasPlayback() {
			idx = fmt.Sprintf("%d/%d", m.snap.View.PlaybackIndex+1, m.snap.RayCount)
		}
		b.WriteString(m.row("ray", idx))
		if r, ok := m.dataset.At(scene.Current); ok {
			b.WriteString(m.row("  speed", fmt.Sprintf("%.1f m/s", r.Speed)))
			b.WriteString(m.row("  events", fmt.Sprintf("%d", len(r.Events))))
			b.WriteString(m.row("  path", components(r)))
		}
		if m.autoplay {
			b.WriteString(m.styles.mode.Render("autoplay") + "\n")
		}
	}
	b.WriteString(m.row("scatter", onOff(m.snap.View.ScatterPoints)))

	b.WriteString("\n")
	b.WriteString(m.styles.muted.Render("controls") + "\n")
	if len(m.snap.Controls.List()) == 0 {
		b.WriteString(m.styles.muted.Render("  none") + "\n")
	}
	for _, c := range m.snap.Controls.List() {
		b.WriteString("  " + m.styles.value.Render(c.String()) + "\n")
	}
	return m.styles.panel.Render(b.String())
}

func (m Model) statusLine() string {
	if m.snap.Status == viewstate.StatusLoading {
		return m.spinner.View() + " " + m.styles.muted.Render("loading "+m.session.Ref())
	}
	return m.styles.notice(m.snap.LastNotice)
}

func components(r rays.Ray) string {
	names := make([]string, 0, len(r.Events))
	for _, e := range r.Events {
		if e.Component != "" {
			names = append(names, e.Component)
		}
	}
	return strings.Join(names, ">")
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// Run starts the viewer and blocks until the user quits or ctx ends.
func Run(ctx context.Context, s *viewstate.Session, opts Options) error {
	p := tea.NewProgram(NewModel(ctx, s, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

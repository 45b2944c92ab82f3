package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/cadence/internal/player"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/desertthunder/cadence/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	BuildView ViewState = iota
	QueueView
	ErrorView
)

// noticeBuffer bounds the notices queued for rendering; older ones are dropped when full.
const noticeBuffer = 64

// Options holds the dependencies of a [Model].
type Options struct {
	Builder *tasks.PlaylistBuilder
	Engine  *player.Engine
	Request tasks.BuildRequest
	Logger  *log.Logger
}

// Model represents the TUI application state.
type Model struct {
	ctx     context.Context
	view    ViewState
	builder *tasks.PlaylistBuilder
	engine  *player.Engine
	request tasks.BuildRequest
	logger  *log.Logger

	width     int
	height    int
	queueList list.Model

	progressChan chan tasks.ProgressUpdate
	doneChan     chan Msg
	progress     tasks.ProgressUpdate
	result       *tasks.BuildResult

	notices  chan player.Notice
	snapshot player.Snapshot
	status   string

	err  error
	help help.Model
	keys keyMap
}

// NewModel creates a new TUI model and subscribes it to the engine's notices.
func NewModel(ctx context.Context, opts Options) *Model {
	logger := opts.Logger
	if logger == nil {
		logger = shared.DiscardLogger()
	}

	m := &Model{
		ctx:     ctx,
		view:    BuildView,
		builder: opts.Builder,
		engine:  opts.Engine,
		request: opts.Request,
		logger:  logger,
		notices: make(chan player.Notice, noticeBuffer),
		help:    help.New(),
		keys:    newKeyMap(),
	}
	m.queueList = list.New(nil, list.NewDefaultDelegate(), 0, 0)
	m.queueList.SetShowHelp(false)

	m.engine.AddObserver(player.ObserverFunc(m.observe))
	return m
}

// observe forwards engine notices to the UI loop without blocking the engine.
func (m *Model) observe(n player.Notice) {
	select {
	case m.notices <- n:
	default:
		m.logger.Warn("dropping player notice", "kind", n.Kind)
	}
}

// Init initializes the TUI by starting the first build.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.startBuild(), m.waitForNotice())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.queueList.SetSize(max(msg.Width-4, 0), max(msg.Height-12, 0))
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case BuildView:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
			return m, nil
		case QueueView:
			return m.handleQueueKeys(msg)
		case ErrorView:
			return m.handleErrorKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	var cmd tea.Cmd
	m.queueList, cmd = m.queueList.Update(msg)
	return m, cmd
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForProgress()

	case MsgBuildComplete:
		done := msg.data.(buildComplete)
		m.progressChan = nil
		m.doneChan = nil
		if done.err != nil {
			m.err = done.err
			m.view = ErrorView
			return m, nil
		}

		m.err = nil
		m.result = done.result
		m.engine.SetQueue(done.result.Playlist(), 0)
		m.refresh()
		m.queueList.Select(0)
		m.status = fmt.Sprintf("Built %d tracks from %d candidates", len(done.result.Tracks), done.result.Candidates)
		if n := len(done.result.FailedSources); n > 0 {
			m.status += fmt.Sprintf(" (%d sources unavailable)", n)
		}
		m.view = QueueView
		return m, nil

	case MsgPlayerNotice:
		n := msg.data.(player.Notice)
		m.status = describeNotice(n)
		m.refresh()
		return m, m.waitForNotice()
	}
	return m, nil
}

func describeNotice(n player.Notice) string {
	switch n.Kind {
	case player.TrackStarted:
		return "Playing " + n.Track.String()
	case player.TrackEnded:
		return "Finished " + n.Track.String()
	case player.TrackSkipped:
		return "Skipped " + n.Track.String()
	case player.TrackFailed:
		return fmt.Sprintf("Could not play %s: %v", n.Track, n.Err)
	case player.QueueExhausted:
		return fmt.Sprintf("Stopped after repeated failures: %v", n.Err)
	case player.QueueEnded:
		return "End of queue"
	default:
		return ""
	}
}

// refresh re-reads the engine snapshot and rebuilds the queue list around it.
func (m *Model) refresh() {
	m.snapshot = m.engine.Snapshot()
	if m.result == nil {
		return
	}

	// The engine admits backlog tracks lazily, so the list only shows the active queue.
	n := min(m.snapshot.QueueLength, len(m.result.Tracks))
	selected := m.queueList.Index()
	m.queueList.SetItems(trackItems(m.result.Tracks[:n], m.snapshot.Index))
	m.queueList.Select(selected)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case BuildView:
		return m.renderBuild()
	case QueueView:
		return m.renderQueue()
	case ErrorView:
		return m.renderError()
	default:
		return ""
	}
}

func (m *Model) handleQueueKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggle):
		m.engine.Toggle()
	case key.Matches(msg, m.keys.next):
		if !m.engine.Next() {
			m.status = "Already at the last track"
		}
	case key.Matches(msg, m.keys.prev):
		if !m.engine.Prev() {
			m.status = "Already at the first track"
		}
	case key.Matches(msg, m.keys.enter):
		m.engine.PlayAt(m.queueList.Index())
	case key.Matches(msg, m.keys.rebuild):
		m.view = BuildView
		m.result = nil
		m.queueList.SetItems(nil)
		return m, m.startBuild()
	default:
		var cmd tea.Cmd
		m.queueList, cmd = m.queueList.Update(msg)
		return m, cmd
	}

	m.refresh()
	return m, nil
}

func (m *Model) handleErrorKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.rebuild):
		m.err = nil
		m.view = BuildView
		return m, m.startBuild()
	}
	return m, nil
}

// startBuild runs the builder in the background. Progress and the final result are read
// back through channels so the model is only mutated inside Update.
func (m *Model) startBuild() tea.Cmd {
	m.progress = tasks.ProgressUpdate{Message: "Starting..."}
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	m.doneChan = make(chan Msg, 1)

	progress, done := m.progressChan, m.doneChan
	go func() {
		result, err := m.builder.Build(m.ctx, progress, m.request)
		close(progress)
		done <- buildCompleteMsg(result, err)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.doneChan
	return func() tea.Msg {
		if progress == nil {
			return nil
		}

		update, ok := <-progress
		if !ok {
			return <-done
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) waitForNotice() tea.Cmd {
	return func() tea.Msg {
		select {
		case n := <-m.notices:
			return playerNoticeMsg(n)
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Model) renderBuild() string {
	title := styles.title.Render("Building Playlist")

	var phase string
	switch m.progress.Phase {
	case tasks.ResolveGoal:
		phase = "Resolving goal..."
	case tasks.ExpandSources:
		phase = "Expanding sources..."
	case tasks.FetchCandidates:
		phase = fmt.Sprintf("Fetching candidates (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.RankCandidates:
		phase = "Ranking candidates..."
	case tasks.SequenceTracks:
		phase = "Sequencing tracks..."
	default:
		phase = "Processing..."
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.quit})
	return fmt.Sprintf("%s\n\n%s\n%s\n\n%s", title, phase, m.progress.Message, helpView)
}

func (m *Model) renderNowPlaying() string {
	s := m.snapshot
	if s.Track == nil {
		return styles.panel.Render("Nothing queued")
	}

	var b strings.Builder
	b.WriteString(styles.playing.Render(s.Track.String()))
	b.WriteString(fmt.Sprintf("\n%s • %d/%d", s.State, s.Index+1, s.QueueLength))
	if s.BacklogLength > 0 {
		b.WriteString(fmt.Sprintf(" (+%d waiting)", s.BacklogLength))
	}
	if s.Duration > 0 {
		b.WriteString(" • " + shared.FormatDuration(int(s.Duration.Seconds())))
	}
	if s.ConsecutiveFailures > 0 {
		b.WriteString("\n" + styles.warn.Render(fmt.Sprintf("%d failed loads in a row", s.ConsecutiveFailures)))
	}
	return styles.panel.Render(b.String())
}

func (m *Model) renderQueue() string {
	title := "Queue"
	if m.result != nil {
		title = m.result.Goal.Name
	}

	status := m.status
	if m.snapshot.State == player.StateError {
		status = styles.err.Render(status)
	} else {
		status = styles.help.Render(status)
	}

	helpKeys := []key.Binding{m.keys.enter, m.keys.toggle, m.keys.next, m.keys.prev, m.keys.rebuild, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	m.queueList.Title = title
	return fmt.Sprintf("%s\n%s\n\n%s\n%s", m.renderNowPlaying(), m.queueList.View(), status, helpView)
}

func (m *Model) renderError() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.rebuild, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s", styles.err.Render(fmt.Sprintf("Build failed: %v", m.err)), helpView)
}

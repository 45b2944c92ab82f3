package ui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/player"
	"github.com/desertthunder/cadence/internal/scoring"
	"github.com/desertthunder/cadence/internal/tasks"
	fakes "github.com/desertthunder/cadence/internal/testing"
)

func scored(id, title string, bpm float64) scoring.Scored {
	return scoring.Scored{
		Track: models.Track{ID: id, Title: title, BPM: models.Float(bpm), SourceBucket: "calm", SourceKey: id + ".mp3"},
		Score: 80,
	}
}

func sampleResult() *tasks.BuildResult {
	return &tasks.BuildResult{
		Goal:       models.GoalDescriptor{ID: "focus-enhancement", Name: "Focus Enhancement"},
		Sources:    []string{"calm"},
		Candidates: 4,
		Eligible:   3,
		Tracks: []scoring.Scored{
			scored("t-85", "Quiet Library", 85),
			scored("t-88", "Desk Lamp Glow", 88),
			scored("t-95", "Paper Lanterns", 95),
		},
	}
}

func newTestModel(t *testing.T, catalog *fakes.MockCatalog) (*Model, *fakes.FakeOutput, *player.Engine) {
	t.Helper()
	if catalog == nil {
		catalog = fakes.NewMockCatalog(nil)
	}
	builder, err := tasks.NewPlaylistBuilder(tasks.BuilderOpts{Catalog: catalog})
	if err != nil {
		t.Fatalf("NewPlaylistBuilder failed: %v", err)
	}

	out := &fakes.FakeOutput{AutoReady: true}
	engine := player.NewEngine(out, player.EngineOpts{AutoPlay: true, AutoAdvance: true})
	t.Cleanup(engine.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	m := NewModel(ctx, Options{
		Builder: builder,
		Engine:  engine,
		Request: tasks.BuildRequest{Goal: "focus", Sources: []string{"calm"}},
	})
	return m, out, engine
}

func keyPress(s string) tea.KeyMsg {
	if s == " " {
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel(t *testing.T) {
	t.Run("Build Complete Starts Playback", func(t *testing.T) {
		m, out, engine := newTestModel(t, nil)

		m.Update(buildCompleteMsg(sampleResult(), nil))

		if m.view != QueueView {
			t.Fatalf("expected QueueView, got %v", m.view)
		}
		if out.LoadCount() != 1 || out.LastLoad().Track.ID != "t-85" {
			t.Errorf("expected first track loaded, got %+v", out.LastLoad())
		}
		if snap := engine.Snapshot(); snap.State != player.StatePlaying {
			t.Errorf("expected playing, got %s", snap.State)
		}
		if len(m.queueList.Items()) != 3 {
			t.Errorf("expected 3 list items, got %d", len(m.queueList.Items()))
		}
		if !strings.Contains(m.View(), "Quiet Library") {
			t.Errorf("view missing current track:\n%s", m.View())
		}
	})

	t.Run("Transport Keys", func(t *testing.T) {
		m, out, engine := newTestModel(t, nil)
		m.Update(buildCompleteMsg(sampleResult(), nil))

		m.Update(keyPress("n"))
		if snap := engine.Snapshot(); snap.Index != 1 {
			t.Errorf("expected index 1 after next, got %d", snap.Index)
		}

		m.Update(keyPress("p"))
		if snap := engine.Snapshot(); snap.Index != 0 {
			t.Errorf("expected index 0 after prev, got %d", snap.Index)
		}

		m.Update(keyPress("p"))
		if m.status != "Already at the first track" {
			t.Errorf("unexpected status %q", m.status)
		}

		m.Update(keyPress(" "))
		if snap := engine.Snapshot(); snap.State != player.StatePaused {
			t.Errorf("expected paused after toggle, got %s", snap.State)
		}
		if out.Pauses != 1 {
			t.Errorf("expected 1 pause, got %d", out.Pauses)
		}

		m.queueList.Select(2)
		m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		if snap := engine.Snapshot(); snap.Index != 2 || snap.State != player.StatePlaying {
			t.Errorf("expected track 3 playing, got index %d state %s", snap.Index, snap.State)
		}
	})

	t.Run("Notices Update Status", func(t *testing.T) {
		m, _, _ := newTestModel(t, nil)
		m.Update(buildCompleteMsg(sampleResult(), nil))

		select {
		case n := <-m.notices:
			m.Update(playerNoticeMsg(n))
		default:
			t.Fatal("expected a queued notice after playback started")
		}
		if m.status != "Playing Quiet Library" {
			t.Errorf("unexpected status %q", m.status)
		}
	})

	t.Run("Build Error", func(t *testing.T) {
		m, _, _ := newTestModel(t, nil)

		m.Update(buildCompleteMsg(nil, errors.New("catalog offline")))

		if m.view != ErrorView {
			t.Fatalf("expected ErrorView, got %v", m.view)
		}
		if !strings.Contains(m.View(), "catalog offline") {
			t.Errorf("view missing error:\n%s", m.View())
		}

		_, cmd := m.Update(keyPress("q"))
		if cmd == nil {
			t.Fatal("expected quit command")
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected tea.QuitMsg")
		}
	})

	t.Run("Runs Build Through Progress", func(t *testing.T) {
		catalog := fakes.NewMockCatalog(map[string][]models.Track{
			"calm": {sampleResult().Tracks[0].Track, sampleResult().Tracks[1].Track},
		})
		m, out, _ := newTestModel(t, catalog)

		cmd := m.startBuild()
		for i := 0; i < 50 && m.view == BuildView; i++ {
			msg := cmd()
			if msg == nil {
				t.Fatal("progress channel closed without a result")
			}
			_, cmd = m.Update(msg)
			if m.view == BuildView && cmd == nil {
				t.Fatal("expected another progress command")
			}
		}

		if m.view != QueueView {
			t.Fatalf("expected QueueView, got %v (err %v)", m.view, m.err)
		}
		if out.LoadCount() == 0 {
			t.Error("expected playback to start")
		}
		if !strings.Contains(m.status, "Built 2 tracks") {
			t.Errorf("unexpected status %q", m.status)
		}
	})
}

package player_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/player"
)

func TestProbeOutput(t *testing.T) {
	var (
		mu     sync.Mutex
		ranges []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		ranges = append(ranges, r.Header.Get("Range"))
		mu.Unlock()
		if strings.HasPrefix(r.URL.Path, "/missing") {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write([]byte("ID"))
	}))
	defer srv.Close()

	out := player.NewProbeOutput(player.ProbeOutputOpts{Client: srv.Client(), Speed: 100})
	resolver := player.ResolverFunc(func(tr models.Track) string { return srv.URL + "/" + tr.ID })
	e := player.NewEngine(out, player.EngineOpts{Resolver: resolver, AutoPlay: true, AutoAdvance: true})
	defer e.Close()

	done := make(chan player.NoticeKind, 1)
	var kinds []player.NoticeKind
	notices := make(chan player.Notice, 32)
	e.AddObserver(player.ObserverFunc(func(n player.Notice) {
		notices <- n
		if n.Kind == player.QueueEnded || n.Kind == player.QueueExhausted {
			done <- n.Kind
		}
	}))

	e.SetQueue([]models.Track{
		{ID: "ok-1", Title: "One", Duration: 1},
		{ID: "missing-2", Title: "Two", Duration: 1},
		{ID: "ok-3", Title: "Three", Duration: 1},
	}, 0)

	select {
	case kind := <-done:
		if kind != player.QueueEnded {
			t.Fatalf("queue finished with %s", kind)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the queue to finish")
	}

	close(notices)
	for n := range notices {
		kinds = append(kinds, n.Kind)
	}

	counts := map[player.NoticeKind]int{}
	for _, k := range kinds {
		counts[k]++
	}
	if counts[player.TrackStarted] != 2 || counts[player.TrackEnded] != 2 || counts[player.TrackFailed] != 1 {
		t.Errorf("unexpected notices: %v", kinds)
	}
	mu.Lock()
	defer mu.Unlock()
	for _, r := range ranges {
		if r != "bytes=0-1" {
			t.Errorf("probe sent Range %q", r)
		}
	}
	if s := e.Snapshot(); s.State != player.StateEnded || s.Index != 2 {
		t.Errorf("final snapshot: state=%s index=%d", s.State, s.Index)
	}
}

func TestProbeOutputPlayBeforeReady(t *testing.T) {
	out := player.NewProbeOutput(player.ProbeOutputOpts{})
	if err := out.Play(t.Context()); err == nil {
		t.Error("expected error playing before a track is ready")
	}
	if err := out.Pause(t.Context()); err != nil {
		t.Errorf("pause with nothing playing: %v", err)
	}
}

type eventSink chan player.Event

func (s eventSink) Handle(ev player.Event) { s <- ev }

func TestProbeOutputIgnoresOlderLoad(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPartialContent)
	}))
	defer srv.Close()

	sink := make(eventSink, 8)
	out := player.NewProbeOutput(player.ProbeOutputOpts{Client: srv.Client()})
	out.Bind(sink)

	ctx := context.Background()
	if err := out.Load(ctx, player.LoadRequest{URL: srv.URL + "/new", Generation: 3}); err != nil {
		t.Fatal(err)
	}
	if err := out.Load(ctx, player.LoadRequest{URL: srv.URL + "/old", Generation: 2}); err != nil {
		t.Fatal(err)
	}

	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-sink:
			if ev.Generation != 3 {
				t.Fatalf("event for older load %d delivered: %s", ev.Generation, ev.Kind)
			}
			if ev.Kind == player.EventCanPlay {
				return
			}
		case <-timeout:
			t.Fatal("newest load never became playable")
		}
	}
}

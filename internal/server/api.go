package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cadence/internal/goals"
	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/player"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/desertthunder/cadence/internal/similarity"
	"github.com/desertthunder/cadence/internal/sources"
	"github.com/desertthunder/cadence/internal/tasks"
)

const maxPlaylistLimit = 200

// SessionLister lists saved listening sessions. [repositories.SessionRepository] implements it.
type SessionLister interface {
	List(criteria map[string]any) ([]*models.ListeningSession, error)
}

// APIOpts configures an [API]. Builder.Catalog is required; everything else has a default.
type APIOpts struct {
	Resolver        *goals.Resolver
	Expander        *sources.Expander
	Builder         tasks.BuilderOpts
	History         *similarity.Guard
	Sessions        SessionLister
	Stream          player.StreamResolver
	DefaultListener string
	DefaultLimit    int
	Logger          *log.Logger
}

// API serves goal resolution, source expansion and playlist building as JSON.
//
// Each listener gets its own [tasks.PlaylistBuilder], so a listener's newer playlist request
// supersedes their older in-flight one without affecting other listeners. A listener's builder
// lives only while one of their requests is in flight.
type API struct {
	opts   APIOpts
	logger *log.Logger

	mu       sync.Mutex
	builders map[string]*listenerBuilder
}

type listenerBuilder struct {
	builder  *tasks.PlaylistBuilder
	inFlight int
}

// NewAPI creates an [API].
func NewAPI(opts APIOpts) (*API, error) {
	if opts.Builder.Catalog == nil {
		return nil, fmt.Errorf("%w: catalog not initialized", shared.ErrServiceUnavailable)
	}
	if opts.Resolver == nil {
		opts.Resolver = goals.NewResolver()
	}
	if opts.Expander == nil {
		opts.Expander = sources.Default()
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = tasks.DefaultPlaylistLimit
	}
	if opts.Logger == nil {
		opts.Logger = shared.DiscardLogger()
	}
	opts.Builder.Resolver = opts.Resolver
	opts.Builder.Expander = opts.Expander
	if opts.Builder.History == nil && opts.History != nil {
		opts.Builder.History = opts.History
	}
	if opts.Builder.Logger == nil {
		opts.Builder.Logger = opts.Logger
	}
	return &API{opts: opts, logger: opts.Logger, builders: make(map[string]*listenerBuilder)}, nil
}

// Register adds every API route to r.
func (a *API) Register(r Router) {
	r.Handle(http.MethodGet, "/health", http.HandlerFunc(a.health))
	r.Handle(http.MethodGet, "/goals", http.HandlerFunc(a.listGoals))
	r.Handle(http.MethodGet, "/goals/resolve", http.HandlerFunc(a.resolveGoal))
	r.Handle(http.MethodPost, "/sources/expand", http.HandlerFunc(a.expandSources))
	r.Handle(http.MethodGet, "/playlist", http.HandlerFunc(a.playlist))
	r.Handle(http.MethodGet, "/listeners/{id}/history", http.HandlerFunc(a.history))
	r.Handle(http.MethodGet, "/sessions", http.HandlerFunc(a.sessions))
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) listGoals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"goals": a.opts.Resolver.All()})
}

type resolveResponse struct {
	Input       string                `json:"input"`
	Matched     bool                  `json:"matched"`
	Goal        models.GoalDescriptor `json:"goal"`
	BPMRange    string                `json:"bpm_range"`
	VADProfile  string                `json:"vad_profile"`
	Description string                `json:"effectiveness"`
}

func (a *API) resolveGoal(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: q", shared.ErrMissingArgument))
		return
	}
	in, ok := a.opts.Resolver.Insights(q)
	if !ok {
		a.logger.Debug("goal fell back to default", "input", q, "goal", in.Goal.ID)
	}
	writeJSON(w, http.StatusOK, resolveResponse{
		Input:       q,
		Matched:     ok,
		Goal:        in.Goal,
		BPMRange:    in.BPMRange,
		VADProfile:  in.VADProfile,
		Description: in.Effectiveness,
	})
}

type expandRequest struct {
	Sources []string `json:"sources"`
}

func (a *API) expandSources(w http.ResponseWriter, r *http.Request) {
	var req expandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
		return
	}
	if len(req.Sources) == 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: sources", shared.ErrMissingArgument))
		return
	}

	skipped := []string{}
	for _, id := range req.Sources {
		if a.opts.Expander.IsSkipped(id) {
			skipped = append(skipped, id)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"requested": req.Sources,
		"expanded":  a.opts.Expander.Expand(req.Sources),
		"skipped":   skipped,
	})
}

type playlistTrack struct {
	models.Track
	Score     int    `json:"score"`
	StreamURL string `json:"stream_url,omitempty"`
}

type failedSource struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

type playlistResponse struct {
	Goal          models.GoalDescriptor `json:"goal"`
	Listener      string                `json:"listener,omitempty"`
	Sources       []string              `json:"sources"`
	Candidates    int                   `json:"candidates"`
	Eligible      int                   `json:"eligible"`
	Tracks        []playlistTrack       `json:"tracks"`
	FailedSources []failedSource        `json:"failed_sources,omitempty"`
}

func (a *API) playlist(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := a.opts.DefaultLimit
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > maxPlaylistLimit {
			writeError(w, http.StatusBadRequest, fmt.Errorf("%w: limit must be between 1 and %d", shared.ErrInvalidArgument, maxPlaylistLimit))
			return
		}
		limit = n
	}

	listener := q.Get("listener")
	if listener == "" {
		listener = a.opts.DefaultListener
	}

	builder, release := a.acquireBuilder(listener)
	defer release()

	res, err := builder.Build(r.Context(), nil, tasks.BuildRequest{
		Goal:       q.Get("goal"),
		Sources:    shared.SplitCSV(q.Get("sources")),
		ListenerID: listener,
		Limit:      limit,
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	resp := playlistResponse{
		Goal:       res.Goal,
		Listener:   listener,
		Sources:    res.Sources,
		Candidates: res.Candidates,
		Eligible:   res.Eligible,
		Tracks:     make([]playlistTrack, len(res.Tracks)),
	}
	for i, s := range res.Tracks {
		pt := playlistTrack{Track: s.Track, Score: s.Score}
		if a.opts.Stream != nil {
			pt.StreamURL = a.opts.Stream.ToStreamURL(s.Track)
		}
		resp.Tracks[i] = pt
	}
	for _, f := range res.FailedSources {
		resp.FailedSources = append(resp.FailedSources, failedSource{Source: f.SourceID, Error: f.Err.Error()})
	}
	writeJSON(w, http.StatusOK, resp)
}

// acquireBuilder returns the listener's builder, creating it when none of their requests is
// in flight. The returned func must be called when the request finishes; the last one out
// removes the builder.
func (a *API) acquireBuilder(listener string) (*tasks.PlaylistBuilder, func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	lb, ok := a.builders[listener]
	if !ok {
		// Catalog was checked in NewAPI, the only error NewPlaylistBuilder returns.
		b, _ := tasks.NewPlaylistBuilder(a.opts.Builder)
		lb = &listenerBuilder{builder: b}
		a.builders[listener] = lb
	}
	lb.inFlight++

	return lb.builder, func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		lb.inFlight--
		if lb.inFlight == 0 && a.builders[listener] == lb {
			delete(a.builders, listener)
		}
	}
}

func (a *API) history(w http.ResponseWriter, r *http.Request) {
	if a.opts.History == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("%w: listener history is disabled", shared.ErrServiceUnavailable))
		return
	}
	writeJSON(w, http.StatusOK, a.opts.History.Report(r.PathValue("id")))
}

func (a *API) sessions(w http.ResponseWriter, r *http.Request) {
	if a.opts.Sessions == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("%w: session storage is disabled", shared.ErrServiceUnavailable))
		return
	}

	criteria := map[string]any{"limit": 20}
	q := r.URL.Query()
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("%w: limit", shared.ErrInvalidArgument))
			return
		}
		criteria["limit"] = n
	}
	if listener := q.Get("listener"); listener != "" {
		criteria["listener_id"] = listener
	}
	if goal := q.Get("goal"); goal != "" {
		criteria["goal"] = a.opts.Resolver.ToCanonicalKey(goal)
	}

	saved, err := a.opts.Sessions.List(criteria)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]models.SessionSummary, len(saved))
	for i, s := range saved {
		out[i] = s.Summary()
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

// statusFor maps the shared sentinel errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrNoMatches), errors.Is(err, shared.ErrEmptySource):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, shared.ErrCatalogRequest):
		return http.StatusBadGateway
	case errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrInvalidArgument), errors.Is(err, shared.ErrMissingArgument):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded), errors.Is(err, shared.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

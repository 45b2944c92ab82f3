package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cadence/internal/harmony"
	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const defaultPageSize = 100

// catalogTrack is a track row as returned by the catalog API.
type catalogTrack struct {
	ID            string   `json:"id"`
	TrackID       string   `json:"track_id"`
	Title         string   `json:"title"`
	Artist        string   `json:"artist"`
	Genre         string   `json:"genre"`
	BPM           *float64 `json:"bpm"`
	BPMEstimate   *float64 `json:"bpm_est"`
	EnergyLevel   *float64 `json:"energy_level"`
	Energy        *float64 `json:"energy"`
	Valence       *float64 `json:"valence"`
	CamelotKey    string   `json:"camelot_key"`
	MusicalKey    string   `json:"musical_key"`
	StorageBucket string   `json:"storage_bucket"`
	StorageKey    string   `json:"storage_key"`
	AudioStatus   string   `json:"audio_status"`
	Duration      int      `json:"duration"`
}

type tracksResponse struct {
	Tracks []catalogTrack `json:"tracks"`
}

type objectsResponse struct {
	Objects    []models.ObjectRef `json:"objects"`
	NextCursor string             `json:"next_cursor"`
}

// Track converts the row into a [models.Track].
func (c catalogTrack) Track() models.Track {
	t := models.Track{
		ID:           c.ID,
		Title:        c.Title,
		Artist:       c.Artist,
		Genre:        c.Genre,
		BPM:          c.BPM,
		EnergyLevel:  c.EnergyLevel,
		Valence:      c.Valence,
		SourceBucket: c.StorageBucket,
		SourceKey:    c.StorageKey,
		AudioStatus:  models.ParseAudioStatus(c.AudioStatus),
		Duration:     c.Duration,
	}
	if t.ID == "" {
		t.ID = c.TrackID
	}
	if t.BPM == nil || *t.BPM <= 0 {
		t.BPM = c.BPMEstimate
	}
	if t.EnergyLevel == nil {
		t.EnergyLevel = c.Energy
	}
	for _, raw := range []string{c.CamelotKey, c.MusicalKey} {
		if k, ok := harmony.ParseKey(raw); ok {
			t.CamelotKey = string(k)
			break
		}
	}
	return t
}

// CatalogService implements [Catalog] over the catalog's HTTP API.
type CatalogService struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	pageSize   int
	logger     *log.Logger
}

// NewCatalogService creates a catalog client from cfg. client is the base transport and
// defaults to one with the configured timeout. When client id, secret and token URL are
// all set, requests carry OAuth2 client-credentials tokens.
func NewCatalogService(ctx context.Context, cfg shared.CatalogConfig, client *http.Client, logger *log.Logger) (*CatalogService, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: catalog.base_url is required", shared.ErrMissingConfig)
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("%w: catalog.base_url: %v", shared.ErrInvalidConfig, err)
	}
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	if client == nil {
		timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	if cfg.ClientID != "" || cfg.ClientSecret != "" {
		if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.TokenURL == "" {
			return nil, fmt.Errorf("%w: catalog client_id, client_secret and token_url must be set together", shared.ErrMissingCredentials)
		}
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		client = cc.Client(context.WithValue(ctx, oauth2.HTTPClient, client))
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	return &CatalogService{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: client,
		limiter:    rate.NewLimiter(limit, burst),
		pageSize:   pageSize,
		logger:     logger,
	}, nil
}

// SearchTracks implements [Catalog].
func (s *CatalogService) SearchTracks(ctx context.Context, c models.SearchCriteria) ([]models.Track, error) {
	q := url.Values{}
	if c.Source != "" {
		q.Set("source", c.Source)
	}
	if c.Goal != "" {
		q.Set("goal", c.Goal)
	}
	if c.MinBPM != nil {
		q.Set("min_bpm", strconv.FormatFloat(*c.MinBPM, 'f', -1, 64))
	}
	if c.MaxBPM != nil {
		q.Set("max_bpm", strconv.FormatFloat(*c.MaxBPM, 'f', -1, 64))
	}
	if c.Limit > 0 {
		q.Set("limit", strconv.Itoa(c.Limit))
	}

	var resp tracksResponse
	if err := s.getJSON(ctx, "/tracks", q, &resp); err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(resp.Tracks))
	for _, row := range resp.Tracks {
		t := row.Track()
		if t.ID == "" {
			continue
		}
		tracks = append(tracks, t)
	}
	s.logger.Debug("catalog search", "source", c.Source, "goal", c.Goal, "tracks", len(tracks))
	return tracks, nil
}

// ListSourceObjects implements [Catalog], following cursors until the listing is complete.
func (s *CatalogService) ListSourceObjects(ctx context.Context, sourceID string) ([]models.ObjectRef, error) {
	if sourceID == "" {
		return nil, fmt.Errorf("%w: source id", shared.ErrMissingArgument)
	}

	path := "/sources/" + url.PathEscape(sourceID) + "/objects"
	var (
		objects []models.ObjectRef
		cursor  string
	)
	for page := 1; ; page++ {
		q := url.Values{"limit": {strconv.Itoa(s.pageSize)}}
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		var resp objectsResponse
		if err := s.getJSON(ctx, path, q, &resp); err != nil {
			return nil, err
		}
		for _, o := range resp.Objects {
			if o.Bucket == "" {
				o.Bucket = sourceID
			}
			objects = append(objects, o)
		}
		s.logger.Debug("listed source page", "source", sourceID, "page", page, "objects", len(resp.Objects))

		if resp.NextCursor == "" || resp.NextCursor == cursor {
			break
		}
		cursor = resp.NextCursor
	}
	return objects, nil
}

// getJSON performs a rate-limited GET and decodes the JSON body into out.
func (s *CatalogService) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %w", shared.ErrCatalogRequest, err)
	}

	fullURL := s.baseURL + path
	if len(q) > 0 {
		fullURL += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrCatalogRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %w", shared.ErrCatalogRequest, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: GET %s returned %d: %s", shared.ErrCatalogRequest, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %w", shared.ErrCatalogRequest, err)
	}
	return nil
}

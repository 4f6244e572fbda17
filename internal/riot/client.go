// Package riot implements the rate-limited HTTP client the Collection
// Engine uses to reach the Riot Games TFT API: dual
// token-bucket budgeting, response classification into a typed error
// taxonomy, and Retry-After-aware backoff.
package riot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/nysm-labs/tft-curator/internal/model"
)

// Config configures a Client.
type Config struct {
	APIKey  string
	BaseURL string       // e.g. https://na1.api.riotgames.com
	HTTP    *http.Client

	ShortLimit, ShortWindowSeconds int
	LongLimit, LongWindowSeconds int
	MarginFraction float64

	MaxRetries int // default 3, retry budget
}

// Client is the rate-limited, classifying Riot API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	budget     *Budget
	maxRetries int
}

// New builds a Client from cfg, applying defaults for anything unset.
func New(cfg Config) *Client {
	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Client{
		apiKey: cfg.APIKey,
		baseURL: cfg.BaseURL,
		httpClient: httpClient,
		budget: NewBudget(cfg.ShortLimit, cfg.ShortWindowSeconds, cfg.LongLimit, cfg.LongWindowSeconds, cfg.MarginFraction),
		maxRetries: maxRetries,
	}
}

// Saturated reports whether the client's rate budget is near exhaustion,
// for the Engine's proactive worker-dispatch check.
func (c *Client) Saturated() bool {
	return c.budget.Saturated()
}

// LeagueEntries fetches one page of the league-entries endpoint for a
// tier/division bucket (DISCOVER_PLAYERS).
func (c *Client) LeagueEntries(ctx context.Context, bucket model.Bucket, page int) ([]model.Player, error) {
	path := fmt.Sprintf("/tft/league/v1/entries/%s/%s", bucket.Tier, bucket.Division)
	if bucket.Division == "" {
		path = fmt.Sprintf("/tft/league/v1/%s", apexLeagueSegment(bucket.Tier))
	}
	q := url.Values{"page": {strconv.Itoa(page)}}

	var entries []leagueEntryWire
	if err := c.getJSON(ctx, path, q, &entries); err != nil {
		return nil, err
	}

	players := make([]model.Player, len(entries))
	for i, e := range entries {
		players[i] = model.Player{
			PUUID: e.PUUID,
			Tier: bucket.Tier,
			Division: bucket.Division,
			LeaguePoints: e.LeaguePoints,
			SummonerID: e.SummonerID,
			SummonerName: e.SummonerName,
		}
	}
	return players, nil
}

func apexLeagueSegment(t model.Tier) string {
	switch t {
	case model.TierChallenger:
		return "challenger"
	case model.TierGrandmaster:
		return "grandmaster"
	case model.TierMaster:
		return "master"
	default:
		return ""
	}
}

type leagueEntryWire struct {
	PUUID        string `json:"puuid"`
	SummonerID   string `json:"summonerId"`
	SummonerName string `json:"summonerName"`
	LeaguePoints int    `json:"leaguePoints"`
}

// MatchIDsByPUUID fetches the match-id history for a player
// (FETCH_MATCH_HISTORIES).
func (c *Client) MatchIDsByPUUID(ctx context.Context, puuid string, count int) ([]string, error) {
	path := fmt.Sprintf("/tft/match/v1/matches/by-puuid/%s/ids", puuid)
	q := url.Values{"count": {strconv.Itoa(count)}}

	var ids []string
	if err := c.getJSON(ctx, path, q, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// MatchByID fetches one match's full detail body (FETCH_MATCH_DETAILS).
// The wire GameLength (fractional seconds) is converted to
// an integer millisecond duration at the boundary, the one place a float
// from Riot's wire format is allowed to exist before the domain model's
// no-floats invariant takes over.
func (c *Client) MatchByID(ctx context.Context, matchID string) (model.Match, error) {
	path := fmt.Sprintf("/tft/match/v1/matches/%s", matchID)

	var wire matchWire
	if err := c.getJSON(ctx, path, nil, &wire); err != nil {
		return model.Match{}, err
	}

	participants := make([]model.Participant, len(wire.Info.Participants))
	for i, p := range wire.Info.Participants {
		units := make([]model.Unit, len(p.Units))
		for j, u := range p.Units {
			items := make([]model.UnitItem, len(u.Items))
			for k, it := range u.Items {
				items[k] = model.UnitItem(it)
			}
			units[j] = model.Unit{CharacterID: u.CharacterID, Items: items, StarLevel: u.Tier}
		}
		traits := make([]model.Trait, len(p.Traits))
		for j, tr := range p.Traits {
			traits[j] = model.Trait{Name: tr.Name, NumUnits: tr.NumUnits, TierActive: tr.TierCurrent}
		}
		participants[i] = model.Participant{
			PUUID: p.PUUID,
			Placement: p.Placement,
			Level: p.Level,
			Units: units,
			Traits: traits,
			Augments: p.Augments,
		}
	}

	m := model.Match{
		MatchID: wire.Metadata.MatchID,
		Info: model.MatchInfo{
			GameDateTime: wire.Info.GameDatetime,
			GameLengthMillis: int64(math.Round(wire.Info.GameLength * 1000)),
			GameVersion: wire.Info.GameVersion,
			TFTSetNumber: wire.Info.TFTSetNumber,
			Participants: participants,
		},
	}
	if m.MatchID == "" {
		m.MatchID = matchID
	}
	m.Incomplete = m.ParticipantCount() < model.ExpectedParticipants
	return m, nil
}

type matchWire struct {
	Metadata struct {
		MatchID string `json:"match_id"`
	} `json:"metadata"`
	Info struct {
		GameDatetime int64   `json:"game_datetime"`
		GameLength   float64 `json:"game_length"`
		GameVersion  string  `json:"game_version"`
		TFTSetNumber int     `json:"tft_set_number"`
		Participants []struct {
			PUUID     string `json:"puuid"`
			Placement int    `json:"placement"`
			Level     int    `json:"level"`
			Units []struct {
				CharacterID string `json:"character_id"`
				Items       []int  `json:"items"`
				Tier        int    `json:"tier"`
			} `json:"units"`
			Traits []struct {
				Name        string `json:"name"`
				NumUnits    int    `json:"num_units"`
				TierCurrent int    `json:"tier_current"`
			} `json:"traits"`
			Augments []string `json:"augments"`
		} `json:"participants"`
	} `json:"info"`
}

// getJSON performs a rate-budgeted, retried GET and decodes the JSON body
// into out. Rate-limited responses honor Retry-After; 5xx and transport
// errors back off exponentially, bounded at c.maxRetries. Exhausting the
// budget escalates to a TRANSPORT-category error regardless of what the
// last attempt saw.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.budget.Wait(ctx); err != nil {
			return fmt.Errorf("riot: rate budget wait: %w", err)
		}

		retryAfter, err := c.doGET(ctx, path, query, out)
		if err == nil {
			return nil
		}
		lastErr = err

		apiErr, ok := err.(*APIError)
		if !ok {
			return err // context cancellation, URL build failure, etc. — not retryable
		}

		var delay time.Duration
		switch apiErr.Category {
		case CategoryRateLimited:
			delay = retryAfter
			if delay <= 0 {
				delay = backoffDelay(attempt + 1)
			}
		case CategoryServer5xx, CategoryTransport:
			delay = backoffDelay(attempt + 1)
		default:
			return apiErr
		}
		if err := sleepContext(ctx, delay); err != nil {
			return err
		}
	}
	return &APIError{
		Category: CategoryTransport,
		Err: fmt.Errorf("exhausted %d retries: %w", c.maxRetries, lastErr),
	}
}

func (c *Client) doGET(ctx context.Context, path string, query url.Values, out any) (retryAfter time.Duration, err error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("riot: new request: %w", err)
	}
	req.Header.Set("X-Riot-Token", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, &APIError{Category: CategoryTransport, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return 0, nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return 0, &APIError{Category: CategoryParse, StatusCode: resp.StatusCode, Err: err}
		}
		return 0, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	category := classify(resp.StatusCode)

	var retryDelay time.Duration
	if category == CategoryRateLimited {
		if secs, parseErr := strconv.Atoi(resp.Header.Get("Retry-After")); parseErr == nil {
			retryDelay = time.Duration(secs) * time.Second
		}
	}

	return retryDelay, &APIError{
		Category: category,
		StatusCode: resp.StatusCode,
		Status: resp.Status,
		Body: string(body),
	}
}

// backoffDelay returns exponential backoff with jitter, capped at 120s,
// for retry attempt n (1-indexed).
func backoffDelay(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt-1)) * time.Second
	if base > 120*time.Second {
		base = 120 * time.Second
	}
	jitter := time.Duration(rand.Int63n(int64(base) + 1))
	return base/2 + jitter/2
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

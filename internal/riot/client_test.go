package riot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/nysm-labs/tft-curator/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	c := New(Config{
		APIKey: "test-key",
		BaseURL: srv.URL,
		ShortLimit: 100,
		ShortWindowSeconds: 1,
		LongLimit: 1000,
		LongWindowSeconds: 120,
		MaxRetries: 2,
	})
	return c, srv
}

func TestLeagueEntries_ParsesPage(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"puuid":"p1","summonerId":"s1","summonerName":"n1","leaguePoints":42}]`))
	})
	defer srv.Close()

	players, err := c.LeagueEntries(context.Background(), model.Bucket{Tier: model.TierGold, Division: model.DivisionII}, 1)
	if err != nil {
		t.Fatalf("LeagueEntries() failed: %v", err)
	}
	if len(players) != 1 || players[0].PUUID != "p1" {
		t.Errorf("LeagueEntries() = %+v", players)
	}
	if players[0].LeaguePoints != 42 {
		t.Errorf("LeaguePoints = %d, want 42", players[0].LeaguePoints)
	}
}

func TestMatchByID_ConvertsGameLengthToMillis(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"metadata": {"match_id": "NA1_1"},
			"info": {
				"game_datetime": 1700000000000,
				"game_length": 1832.5,
				"game_version": "14.1",
				"tft_set_number": 12,
				"participants": []
			}
		}`))
	})
	defer srv.Close()

	m, err := c.MatchByID(context.Background(), "NA1_1")
	if err != nil {
		t.Fatalf("MatchByID() failed: %v", err)
	}
	if m.Info.GameLengthMillis != 1832500 {
		t.Errorf("GameLengthMillis = %d, want 1832500", m.Info.GameLengthMillis)
	}
	if !m.Incomplete {
		t.Error("expected Incomplete=true for a match with 0 participants")
	}
}

func TestMatchByID_NotFound(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})
	defer srv.Close()

	_, err := c.MatchByID(context.Background(), "NA1_missing")
	if err == nil {
		t.Fatal("expected an error for a 404 response")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("error = %T, want *APIError", err)
	}
	if apiErr.Category != CategoryNotFound {
		t.Errorf("Category = %q, want NOT_FOUND", apiErr.Category)
	}
}

func TestGetJSON_RetriesOn5xxThenSucceeds(t *testing.T) {
	var calls int32
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`["NA1_1","NA1_2"]`))
	})
	defer srv.Close()

	ids, err := c.MatchIDsByPUUID(context.Background(), "puuid-1", 10)
	if err != nil {
		t.Fatalf("MatchIDsByPUUID() failed: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("ids = %v, want 2 entries", ids)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("calls = %d, want 3 (2 failures + 1 success)", calls)
	}
}

func TestGetJSON_TransportExhaustionEscalatesToTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // every request now fails at the transport layer

	c := New(Config{
		APIKey: "test-key",
		BaseURL: srv.URL,
		ShortLimit: 100,
		ShortWindowSeconds: 1,
		LongLimit: 1000,
		LongWindowSeconds: 120,
		MaxRetries: 1,
	})

	_, err := c.MatchIDsByPUUID(context.Background(), "puuid-1", 10)
	if err == nil {
		t.Fatal("expected an error against a closed server")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %T, want *APIError", err)
	}
	if apiErr.Category != CategoryTransport {
		t.Errorf("Category = %q, want TRANSPORT after retry exhaustion", apiErr.Category)
	}
}

func TestGetJSON_DoesNotRetryAuthExpired(t *testing.T) {
	var calls int32
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "forbidden", http.StatusForbidden)
	})
	defer srv.Close()

	_, err := c.MatchIDsByPUUID(context.Background(), "puuid-1", 10)
	if err == nil {
		t.Fatal("expected an error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want exactly 1 (AUTH_EXPIRED must not retry)", calls)
	}
}

package restapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nearyou/nearsync/internal/core/domain"
)

// newDashboard serves a minimal fake of the dashboard API. Every /api/user and
// /api/shops route requires Bearer <token>; handler may be nil for 404.
func newDashboard(t *testing.T, token string, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("username") != "rider" || r.PostForm.Get("password") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprintf(w, `{"access_token": %q, "token_type": "bearer"}`, token)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if handler == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		handler(w, r)
	})
	return httptest.NewServer(mux)
}

func newTestClient(srv *httptest.Server) *Client {
	return New(srv.URL, "rider", "secret", 2*time.Second)
}

func TestClient_TokenLoginAndCache(t *testing.T) {
	srv := newDashboard(t, "tok-abc", nil)
	defer srv.Close()
	c := newTestClient(srv)
	ctx := context.Background()

	tok, err := c.Token(ctx)
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if tok != "tok-abc" {
		t.Errorf("token = %q", tok)
	}

	// Second call is served from cache; wrong credentials would now fail if a
	// request were actually made.
	c.username = "wrong"
	if tok, err = c.Token(ctx); err != nil || tok != "tok-abc" {
		t.Errorf("cached Token = %q, %v", tok, err)
	}
}

func TestClient_TokenBadCredentials(t *testing.T) {
	srv := newDashboard(t, "tok-abc", nil)
	defer srv.Close()
	c := New(srv.URL, "rider", "nope", 2*time.Second)

	if _, err := c.Token(context.Background()); err == nil {
		t.Fatal("Token succeeded with bad credentials")
	}
}

func TestClient_RetriesOnceOnExpiredToken(t *testing.T) {
	var calls atomic.Int64
	srv := newDashboard(t, "tok-abc", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			// Simulate server-side expiry of an otherwise valid token.
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"positions": []}`)
	})
	defer srv.Close()
	c := newTestClient(srv)

	if _, err := c.LatestPositions(context.Background()); err != nil {
		t.Fatalf("LatestPositions: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("authenticated calls = %d, want retry after 401", calls.Load())
	}
}

func TestClient_LatestPositions(t *testing.T) {
	srv := newDashboard(t, "tok-abc", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/user/positions" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `{"positions": [
			{"user_id": 42, "latitude": 45.46, "longitude": 9.19, "message": "Sconto 20%"},
			{"user_id": 42, "latitude": 45.45, "longitude": 9.18}
		]}`)
	})
	defer srv.Close()
	c := newTestClient(srv)

	updates, err := c.LatestPositions(context.Background())
	if err != nil {
		t.Fatalf("LatestPositions: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("got %d updates", len(updates))
	}
	if updates[0].Lat != 45.46 || updates[0].Message != "Sconto 20%" {
		t.Errorf("head update = %+v", updates[0])
	}
}

func TestClient_PromotionsPaging(t *testing.T) {
	srv := newDashboard(t, "tok-abc", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/user/promotions" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if got := r.URL.Query().Get("offset"); got != "20" {
			t.Errorf("offset = %q, want 20", got)
		}
		if got := r.URL.Query().Get("limit"); got != "10" {
			t.Errorf("limit = %q, want 10", got)
		}
		fmt.Fprint(w, `{"promotions": [
			{"event_id": 7, "message": "Happy hour", "timestamp": "2024-05-01T18:00:00Z", "shop_name": "Bar Luna"},
			{"event_id": 8, "message": "Saldi", "timestamp": "2024-05-02 10:30:00", "shop_name": "Boutique Moda"}
		]}`)
	})
	defer srv.Close()
	c := newTestClient(srv)

	rows, err := c.Promotions(context.Background(), 20, 10)
	if err != nil {
		t.Fatalf("Promotions: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows", len(rows))
	}
	if rows[0].EventID != 7 || rows[0].ShopName != "Bar Luna" {
		t.Errorf("row 0 = %+v", rows[0])
	}
	if rows[0].Timestamp.IsZero() {
		t.Error("RFC3339 timestamp not parsed")
	}
	// Space-separated timestamps come from the raw feed.
	if rows[1].Timestamp.IsZero() {
		t.Error("space-separated timestamp not parsed")
	}
}

func TestClient_ShopsInArea(t *testing.T) {
	srv := newDashboard(t, "tok-abc", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/shops/inArea" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		q := r.URL.Query()
		if q.Get("n") != "45.48" || q.Get("s") != "45.45" || q.Get("e") != "9.21" || q.Get("w") != "9.18" {
			t.Errorf("viewport query = %v", q)
		}
		fmt.Fprint(w, `[
			{"id": 1, "name": "Bar Luna", "category": "bar", "lat": 45.46, "lon": 9.19},
			{"shop_id": 2, "shop_name": "Pizzeria Da Mario", "category": "ristorante",
			 "geom": {"type": "Point", "coordinates": [9.20, 45.47]}},
			{"id": 3, "name": "Senza Coordinate"},
			{"name": "Senza ID", "lat": 45.46, "lon": 9.19}
		]`)
	})
	defer srv.Close()
	c := newTestClient(srv)

	pois, err := c.ShopsInArea(context.Background(), domain.Bounds{West: 9.18, South: 45.45, East: 9.21, North: 45.48})
	if err != nil {
		t.Fatalf("ShopsInArea: %v", err)
	}
	if len(pois) != 2 {
		t.Fatalf("got %d POIs, want the 2 well-formed records", len(pois))
	}
	if pois[0].ID != "1" || pois[0].Name != "Bar Luna" || pois[0].Lat != 45.46 {
		t.Errorf("flat-shape POI = %+v", pois[0])
	}
	// Nested geometry is GeoJSON [lon, lat].
	if pois[1].ID != "2" || pois[1].Lat != 45.47 || pois[1].Lon != 9.20 {
		t.Errorf("geom-shape POI = %+v", pois[1])
	}
}

func TestClient_ShopsInAreaUnparsableBody(t *testing.T) {
	srv := newDashboard(t, "tok-abc", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"detail": "internal error"}`)
	})
	defer srv.Close()
	c := newTestClient(srv)

	if _, err := c.ShopsInArea(context.Background(), domain.Bounds{}); err == nil {
		t.Fatal("expected decode error for non-array body")
	}
}

func TestClient_ProfileAndStats(t *testing.T) {
	srv := newDashboard(t, "tok-abc", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/user/profile":
			fmt.Fprint(w, `{"user_id": 42, "age": 31, "profession": "designer", "interests": "ciclismo, musica"}`)
		case "/api/user/stats":
			fmt.Fprint(w, `{"total_events": 120, "active_days": 14, "unique_shops": 9, "notifications": 37}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	defer srv.Close()
	c := newTestClient(srv)
	ctx := context.Background()

	p, err := c.Profile(ctx)
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if p.UserID != 42 || p.Profession != "designer" {
		t.Errorf("profile = %+v", p)
	}

	s, err := c.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if s.TotalEvents != 120 || s.Notifications != 37 {
		t.Errorf("stats = %+v", s)
	}
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"spinwheel/internal/config"
	"spinwheel/internal/database"
	"spinwheel/internal/models"
	"spinwheel/internal/notify"
	"spinwheel/internal/services"
	"spinwheel/internal/web"
)

type nopQueue struct{}

func (nopQueue) Enqueue(notify.Notification) bool { return true }

// brokenStore fails every call, standing in for an unreachable database.
type brokenStore struct{}

var errBroken = errors.New("database is closed")

func (brokenStore) Insert(context.Context, *models.SpinRecord) error { return errBroken }
func (brokenStore) FindByEmail(context.Context, string) (*models.SpinRecord, error) {
	return nil, database.ErrNotFound
}
func (brokenStore) List(context.Context) ([]models.SpinRecord, error) { return nil, errBroken }
func (brokenStore) Ping(context.Context) error { return errBroken }

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Port:           3000,
		DatabaseDriver: "sqlite",
		DatabaseDSN:    filepath.Join(t.TempDir(), "spins.db"),
		CatalogStrict:  true,
	}
}

func newServer(t *testing.T) (*echo.Echo, *database.SpinStore) {
	t.Helper()
	return newServerWith(t, testConfig(t))
}

func newServerWith(t *testing.T, cfg *config.Config) (*echo.Echo, *database.SpinStore) {
	t.Helper()
	db, err := database.Open(cfg, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	store := database.NewSpinStore(db)
	svc := services.NewSpinService(cfg, store, nopQueue{}, zap.NewNop().Sugar())

	e := echo.New()
	renderer, err := web.NewTemplateRenderer(filepath.Join("..", "..", "web", "templates"), "index.html")
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	e.Renderer = renderer
	RegisterRoutes(e, e.Group("/api"), svc, store, cfg)
	return e, store
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

const adaBody = `{"name":"Ada","email":"Ada@Example.com","domain":"Websites","discount":10,"couponCode":"ZTX-WEB10"}`

func TestSpinGrantedThenRefused(t *testing.T) {
	e, store := newServer(t)

	rec := do(e, http.MethodPost, "/api/spin", adaBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	out := decode(t, rec)
	if out["allowed"] != true || out["success"] != true {
		t.Fatalf("first spin = %v", out)
	}

	repeat := strings.Replace(adaBody, "Ada@Example.com", "ADA@example.COM", 1)
	rec = do(e, http.MethodPost, "/api/spin", repeat)
	if rec.Code != http.StatusOK {
		t.Fatalf("repeat status = %d", rec.Code)
	}
	out = decode(t, rec)
	if out["allowed"] != false {
		t.Fatalf("repeat allowed: %v", out)
	}
	if msg, _ := out["message"].(string); !strings.Contains(msg, "already") {
		t.Fatalf("repeat message = %q", msg)
	}

	n, err := store.Count(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("count = %d, %v", n, err)
	}
}

func TestSpinValidation(t *testing.T) {
	e, _ := newServer(t)

	cases := []struct {
		body    string
		message string
	}{
		{`{"name":"","email":"ada@example.com"}`, services.MsgRequired},
		{`{"name":"Ada"}`, services.MsgRequired},
		{`{"name":"Ada","email":"not-an-email","domain":"Websites","discount":10,"couponCode":"ZTX-WEB10"}`, services.MsgInvalidEmail},
		{`{"name":"Ada","email":"ada@example.com","domain":"Websites","discount":99,"couponCode":"ZTX-WEB99"}`, services.MsgUnknownReward},
		{`{not json`, services.MsgRequired},
	}
	for _, tc := range cases {
		rec := do(e, http.MethodPost, "/api/spin", tc.body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tc.body, rec.Code)
			continue
		}
		out := decode(t, rec)
		if out["allowed"] != false || out["message"] != tc.message {
			t.Errorf("%s: body = %v, want message %q", tc.body, out, tc.message)
		}
	}
}

func TestSpinRewardTypeMismatch(t *testing.T) {
	for _, strict := range []bool{true, false} {
		cfg := testConfig(t)
		cfg.CatalogStrict = strict
		e, store := newServerWith(t, cfg)

		bodies := []string{
			`{"name":"Ada","email":"ada@example.com","domain":"Websites","discount":12.5,"couponCode":"ZTX-WEB10"}`,
			`{"name":"Ada","email":"ada@example.com","domain":"Websites","discount":"10","couponCode":"ZTX-WEB10"}`,
			`{"name":"Ada","email":"ada@example.com","domain":7,"discount":10,"couponCode":"ZTX-WEB10"}`,
		}
		for _, body := range bodies {
			rec := do(e, http.MethodPost, "/api/spin", body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("strict=%v %s: status = %d, want 400", strict, body, rec.Code)
				continue
			}
			if out := decode(t, rec); out["message"] != services.MsgUnknownReward {
				t.Errorf("strict=%v %s: message = %v, want %q", strict, body, out["message"], services.MsgUnknownReward)
			}
		}

		// A wrongly typed name is still a missing name.
		rec := do(e, http.MethodPost, "/api/spin", `{"name":42,"email":"ada@example.com"}`)
		if out := decode(t, rec); rec.Code != http.StatusBadRequest || out["message"] != services.MsgRequired {
			t.Errorf("strict=%v numeric name: %d %v", strict, rec.Code, out)
		}

		if n, err := store.Count(context.Background()); err != nil || n != 0 {
			t.Fatalf("strict=%v: count = %d, %v", strict, n, err)
		}
	}
}

func TestSpinStorageError(t *testing.T) {
	cfg := testConfig(t)
	svc := services.NewSpinService(cfg, brokenStore{}, nopQueue{}, zap.NewNop().Sugar())
	e := echo.New()
	RegisterRoutes(e, e.Group("/api"), svc, brokenStore{}, cfg)

	rec := do(e, http.MethodPost, "/api/spin", adaBody)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	out := decode(t, rec)
	msg, _ := out["message"].(string)
	if out["allowed"] != false || !strings.HasPrefix(msg, "Database Error: ") {
		t.Fatalf("body = %v", out)
	}

	rec = do(e, http.MethodGet, "/api/spins", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("list status = %d, want 500", rec.Code)
	}

	rec = do(e, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	env := decode(t, rec)["environment"].(map[string]any)
	if state, _ := env["databaseState"].(string); !strings.HasPrefix(state, "unreachable") {
		t.Fatalf("databaseState = %q", state)
	}

	// No renderer means no index route.
	if rec := do(e, http.MethodGet, "/", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("index without renderer = %d, want 404", rec.Code)
	}
}

func TestListSpins(t *testing.T) {
	e, _ := newServer(t)

	do(e, http.MethodPost, "/api/spin", adaBody)
	other := strings.Replace(adaBody, "Ada@Example.com", "grace@example.com", 1)
	do(e, http.MethodPost, "/api/spin", other)

	rec := do(e, http.MethodGet, "/api/spins", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var out struct {
		Count int                 `json:"count"`
		Spins []models.SpinRecord `json:"spins"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Count != 2 || len(out.Spins) != 2 {
		t.Fatalf("count = %d, spins = %d", out.Count, len(out.Spins))
	}
	if out.Spins[0].Email != "grace@example.com" {
		t.Fatalf("newest spin should come first, got %s", out.Spins[0].Email)
	}
}

func TestSegmentsHealthAndIndex(t *testing.T) {
	e, _ := newServer(t)

	rec := do(e, http.MethodGet, "/api/segments", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("segments status = %d", rec.Code)
	}
	segs, _ := decode(t, rec)["segments"].([]any)
	if len(segs) != 8 {
		t.Fatalf("segments = %d, want 8", len(segs))
	}

	rec = do(e, http.MethodGet, "/api/health", "")
	out := decode(t, rec)
	if out["status"] != "OK" {
		t.Fatalf("health = %v", out)
	}
	env := out["environment"].(map[string]any)
	if env["database"] != "Local SQLite" || env["mailUser"] != "NOT SET" || env["databaseState"] != "reachable" {
		t.Fatalf("environment = %v", env)
	}
	for _, key := range []string{"port", "mailUser", "mailPassword", "mailTransport", "database", "databaseState", "catalogStrict"} {
		if _, ok := env[key]; !ok {
			t.Errorf("environment missing %q", key)
		}
	}
	if env["mailTransport"] != false || env["catalogStrict"] != true {
		t.Fatalf("environment = %v", env)
	}

	rec = do(e, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("index status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ZTX-CUST15") {
		t.Fatal("index page does not render the catalog")
	}

	do(e, http.MethodPost, "/api/spin", adaBody)
	rec = do(e, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `spin_submissions_total{reason="granted"}`) {
		t.Fatal("metrics endpoint missing spin counters")
	}
}

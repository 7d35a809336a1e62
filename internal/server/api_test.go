package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/minerpulse/minerpulse/internal/models"
)

const testToken = "test-token"

// testAPI builds an engine over an in-memory database with a fixed clock.
func testAPI(t *testing.T, now time.Time) (*gin.Engine, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Sample{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	api := NewAPI(NewStore(db), zerolog.Nop())
	api.now = func() time.Time { return now }

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RecoveryBoundary(zerolog.Nop()), CORSMiddleware())
	api.RegisterRoutes(r, testToken)
	return r, db
}

func doJSON(r *gin.Engine, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func countSamples(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&models.Sample{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

type latestResponse struct {
	MinerID string         `json:"miner_id"`
	Sample  *models.Sample `json:"sample"`
}

type rangeResponse struct {
	MinerID string              `json:"miner_id"`
	FromTs  int64               `json:"fromTs"`
	Hours   int                 `json:"hours"`
	Samples []models.RangePoint `json:"samples"`
}

func TestIngestThenLatest(t *testing.T) {
	r, _ := testAPI(t, time.Unix(5000, 0))

	body := `{"miner_id":"m1","ts":1000,"temp":55.2,"hashRate":"oops"}`
	w := doJSON(r, http.MethodPost, "/ingest", body, "Bearer "+testToken)
	if w.Code != http.StatusOK {
		t.Fatalf("ingest status = %d, body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"ok":true`) {
		t.Fatalf("ingest body = %s", w.Body.String())
	}

	w = doJSON(r, http.MethodGet, "/latest?miner_id=m1", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("latest status = %d", w.Code)
	}
	var resp latestResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode latest: %v", err)
	}
	if resp.MinerID != "m1" || resp.Sample == nil {
		t.Fatalf("latest = %+v", resp)
	}
	if resp.Sample.Ts != 1000 || resp.Sample.MinerID != "m1" {
		t.Fatalf("sample identity = ts %d miner %q", resp.Sample.Ts, resp.Sample.MinerID)
	}
	if resp.Sample.Temp == nil || *resp.Sample.Temp != 55.2 {
		t.Fatalf("temp = %v, want 55.2", resp.Sample.Temp)
	}
	if resp.Sample.HashRate != nil {
		t.Fatalf("non-numeric hashRate should persist as null, got %v", *resp.Sample.HashRate)
	}
}

func TestIngestDefaultsTsToReceiptTime(t *testing.T) {
	now := time.Unix(123456, 0)
	r, _ := testAPI(t, now)

	w := doJSON(r, http.MethodPost, "/ingest", `{"miner_id":"m1","ts":"not-a-number"}`, "Bearer "+testToken)
	if w.Code != http.StatusOK {
		t.Fatalf("ingest status = %d", w.Code)
	}

	var resp latestResponse
	w = doJSON(r, http.MethodGet, "/latest?miner_id=m1", "", "")
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Sample == nil || resp.Sample.Ts != now.Unix() {
		t.Fatalf("ts should default to %d, got %+v", now.Unix(), resp.Sample)
	}
}

func TestIngestMinerIDRequired(t *testing.T) {
	r, db := testAPI(t, time.Unix(5000, 0))

	for _, body := range []string{`{}`, `{"miner_id":""}`, `{"miner_id":null,"temp":50}`} {
		w := doJSON(r, http.MethodPost, "/ingest", body, "Bearer "+testToken)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %s: status = %d, want 400", body, w.Code)
		}
		if !strings.Contains(w.Body.String(), "miner_id required") {
			t.Fatalf("body %s: error = %s", body, w.Body.String())
		}
	}
	if n := countSamples(t, db); n != 0 {
		t.Fatalf("no rows should persist, got %d", n)
	}
}

func TestIngestNumericMinerIDIsStringCoerced(t *testing.T) {
	r, _ := testAPI(t, time.Unix(5000, 0))

	w := doJSON(r, http.MethodPost, "/ingest", `{"miner_id":42,"ts":10}`, "Bearer "+testToken)
	if w.Code != http.StatusOK {
		t.Fatalf("ingest status = %d", w.Code)
	}

	var resp latestResponse
	w = doJSON(r, http.MethodGet, "/latest?miner_id=42", "", "")
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Sample == nil || resp.Sample.MinerID != "42" {
		t.Fatalf("sample = %+v, want miner_id \"42\"", resp.Sample)
	}
}

func TestIngestUnauthorized(t *testing.T) {
	r, db := testAPI(t, time.Unix(5000, 0))

	tests := []struct {
		name  string
		token string
	}{
		{"missing header", ""},
		{"wrong token", "Bearer nope"},
		{"no bearer prefix", testToken},
		{"lowercase scheme", "bearer " + testToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(r, http.MethodPost, "/ingest", `{"miner_id":"m1"}`, tt.token)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", w.Code)
			}
			if !strings.Contains(w.Body.String(), "Unauthorized") {
				t.Fatalf("body = %s", w.Body.String())
			}
		})
	}
	if n := countSamples(t, db); n != 0 {
		t.Fatalf("no rows should persist, got %d", n)
	}
}

func TestIngestMalformedBodyIs500(t *testing.T) {
	r, db := testAPI(t, time.Unix(5000, 0))

	w := doJSON(r, http.MethodPost, "/ingest", `{"miner_id":`, "Bearer "+testToken)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if !strings.Contains(w.Body.String(), "error") {
		t.Fatalf("body = %s", w.Body.String())
	}
	if n := countSamples(t, db); n != 0 {
		t.Fatalf("no rows should persist, got %d", n)
	}
}

func TestIngestDuplicateTsAccepted(t *testing.T) {
	r, db := testAPI(t, time.Unix(5000, 0))

	for i := 0; i < 2; i++ {
		w := doJSON(r, http.MethodPost, "/ingest", `{"miner_id":"m1","ts":100}`, "Bearer "+testToken)
		if w.Code != http.StatusOK {
			t.Fatalf("ingest %d status = %d", i, w.Code)
		}
	}
	if n := countSamples(t, db); n != 2 {
		t.Fatalf("duplicate (miner_id, ts) should create two rows, got %d", n)
	}
}

func TestLatestRequiresMinerID(t *testing.T) {
	r, _ := testAPI(t, time.Unix(5000, 0))

	w := doJSON(r, http.MethodGet, "/latest", "", "")
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "miner_id required") {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
}

func TestLatestUnknownMinerIsNull(t *testing.T) {
	r, _ := testAPI(t, time.Unix(5000, 0))

	w := doJSON(r, http.MethodGet, "/latest?miner_id=ghost", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"sample":null`) {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestLatestPicksMaxTs(t *testing.T) {
	r, _ := testAPI(t, time.Unix(5000, 0))

	// out-of-order inserts; ordering is defined by ts, not insertion order
	for _, body := range []string{
		`{"miner_id":"m1","ts":300}`,
		`{"miner_id":"m1","ts":100}`,
		`{"miner_id":"m1","ts":200}`,
	} {
		if w := doJSON(r, http.MethodPost, "/ingest", body, "Bearer "+testToken); w.Code != http.StatusOK {
			t.Fatalf("ingest status = %d", w.Code)
		}
	}

	var resp latestResponse
	w := doJSON(r, http.MethodGet, "/latest?miner_id=m1", "", "")
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Sample == nil || resp.Sample.Ts != 300 {
		t.Fatalf("latest ts = %+v, want 300", resp.Sample)
	}
}

func TestRangeWindowAndOrdering(t *testing.T) {
	// hours=1 with this clock puts fromTs at exactly 150
	now := time.Unix(150+3600, 0)
	r, _ := testAPI(t, now)

	for _, body := range []string{
		`{"miner_id":"m2","ts":300,"temp":62.0}`,
		`{"miner_id":"m2","ts":100,"temp":60.0}`,
		`{"miner_id":"m2","ts":200,"temp":61.0}`,
		`{"miner_id":"other","ts":250}`,
	} {
		if w := doJSON(r, http.MethodPost, "/ingest", body, "Bearer "+testToken); w.Code != http.StatusOK {
			t.Fatalf("ingest status = %d", w.Code)
		}
	}

	w := doJSON(r, http.MethodGet, "/range?miner_id=m2&hours=1", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("range status = %d", w.Code)
	}
	var resp rangeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.FromTs != 150 || resp.Hours != 1 {
		t.Fatalf("fromTs = %d hours = %d", resp.FromTs, resp.Hours)
	}
	if len(resp.Samples) != 2 || resp.Samples[0].Ts != 200 || resp.Samples[1].Ts != 300 {
		t.Fatalf("samples = %+v, want ts 200 then 300", resp.Samples)
	}
	for _, p := range resp.Samples {
		if p.Ts < resp.FromTs {
			t.Fatalf("sample ts %d below fromTs %d", p.Ts, resp.FromTs)
		}
	}
}

func TestRangeHoursClamping(t *testing.T) {
	now := time.Unix(1_000_000, 0)
	r, _ := testAPI(t, now)

	tests := []struct {
		query     string
		wantHours int
	}{
		{"/range?miner_id=m1", 24},
		{"/range?miner_id=m1&hours=0", 1},
		{"/range?miner_id=m1&hours=100000", 2160},
		{"/range?miner_id=m1&hours=junk", 24},
	}
	for _, tt := range tests {
		w := doJSON(r, http.MethodGet, tt.query, "", "")
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", tt.query, w.Code)
		}
		var resp rangeResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%s: decode: %v", tt.query, err)
		}
		if resp.Hours != tt.wantHours {
			t.Fatalf("%s: hours = %d, want %d", tt.query, resp.Hours, tt.wantHours)
		}
		if want := now.Unix() - int64(tt.wantHours)*3600; resp.FromTs != want {
			t.Fatalf("%s: fromTs = %d, want %d", tt.query, resp.FromTs, want)
		}
	}
}

func TestRangeEmptyIsArrayNotNull(t *testing.T) {
	r, _ := testAPI(t, time.Unix(5000, 0))

	w := doJSON(r, http.MethodGet, "/range?miner_id=ghost", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"samples":[]`) {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestRangeRequiresMinerID(t *testing.T) {
	r, _ := testAPI(t, time.Unix(5000, 0))

	w := doJSON(r, http.MethodGet, "/range?hours=5", "", "")
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "miner_id required") {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
}

func TestReadsAreIdempotent(t *testing.T) {
	r, _ := testAPI(t, time.Unix(5000, 0))

	if w := doJSON(r, http.MethodPost, "/ingest", `{"miner_id":"m1","ts":4000,"temp":58}`, "Bearer "+testToken); w.Code != http.StatusOK {
		t.Fatalf("ingest status = %d", w.Code)
	}

	for _, path := range []string{"/latest?miner_id=m1", "/range?miner_id=m1&hours=2"} {
		first := doJSON(r, http.MethodGet, path, "", "")
		second := doJSON(r, http.MethodGet, path, "", "")
		if first.Body.String() != second.Body.String() {
			t.Fatalf("%s: responses differ:\n%s\n%s", path, first.Body.String(), second.Body.String())
		}
	}
}

func TestOptionsPreflight(t *testing.T) {
	r, _ := testAPI(t, time.Unix(5000, 0))

	req := httptest.NewRequest(http.MethodOptions, "/ingest", nil)
	req.Header.Set("Origin", "https://dash.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Fatalf("preflight body should be empty, got %s", w.Body.String())
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://dash.example.com" {
		t.Fatalf("Allow-Origin = %q, want reflected origin", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type, Authorization" {
		t.Fatalf("Allow-Headers = %q", got)
	}
	if got := w.Header().Get("Access-Control-Max-Age"); got != "86400" {
		t.Fatalf("Max-Age = %q", got)
	}
}

func TestCORSWildcardWithoutOrigin(t *testing.T) {
	r, _ := testAPI(t, time.Unix(5000, 0))

	w := doJSON(r, http.MethodGet, "/latest?miner_id=m1", "", "")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("Allow-Origin = %q, want *", got)
	}
}

func TestNotFoundRoute(t *testing.T) {
	r, _ := testAPI(t, time.Unix(5000, 0))

	w := doJSON(r, http.MethodGet, "/nope", "", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Not found") {
		t.Fatalf("body = %s", w.Body.String())
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got == "" {
		t.Fatal("404 responses must carry CORS headers too")
	}
}

func TestHealthz(t *testing.T) {
	r, _ := testAPI(t, time.Unix(5000, 0))

	w := doJSON(r, http.MethodGet, "/healthz", "", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
}

package router

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/amirphl/hopgate/app/handlers"
	"github.com/amirphl/hopgate/app/services"
	businessflow "github.com/amirphl/hopgate/business_flow"
	"github.com/amirphl/hopgate/config"
	testingutil "github.com/amirphl/hopgate/testing"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.ProductionConfig {
	return &config.ProductionConfig{
		Server: config.ServerConfig{
			ReadTimeout:     time.Second,
			WriteTimeout:    time.Second,
			IdleTimeout:     time.Second,
			ShutdownTimeout: time.Second,
			BodyLimit:       64 * 1024,
			ProxyHeader:     "X-Real-IP",
		},
		Security: config.SecurityConfig{
			CORSMaxAge:          600,
			ImpressionRateLimit: 1000,
			RedirectRateLimit:   1000,
			RateLimitWindow:     time.Minute,
		},
		Logging: config.LoggingConfig{EnableAccessLog: true},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
		Tracking: config.TrackingConfig{
			FallbackURL:  "https://hopgate.example.com/offer-unavailable",
			PartnerParam: "tid",
		},
	}
}

func newTestRouter(t *testing.T) (Router, *testingutil.MemoryClickLogStore, *businessflow.AttributionRecorderImpl) {
	t.Helper()
	log, _ := test.NewNullLogger()
	cfg := testConfig()

	index := businessflow.NewRuleIndex(testingutil.NewMemoryRoutingSource(testingutil.ExampleRoutingTables()), log)
	require.NoError(t, index.Refresh(context.Background()))
	hasher, err := services.NewFingerprintService("pepper")
	require.NoError(t, err)

	clicks := testingutil.NewMemoryClickLogStore()
	recorder := businessflow.NewAttributionRecorder(clicks, testingutil.NewMemoryImpressionStore(), hasher, nil, time.Second, log)
	signals := handlers.ClientSignals{ProxyHeader: cfg.Server.ProxyHeader}

	flow := businessflow.NewRedirectFlow(index, businessflow.NewRuleMatcher(index), recorder, businessflow.RedirectOptions{
		FallbackURL:  cfg.Tracking.FallbackURL,
		ClickIDParam: cfg.Tracking.ClickIDParam,
		PartnerParam: cfg.Tracking.PartnerParam,
	}, log)

	r := NewFiberRouter(Handlers{
		Redirect:   handlers.NewRedirectHandler(flow, signals, log),
		Impression: handlers.NewImpressionHandler(businessflow.NewImpressionFlow(index, recorder), signals, log),
		Health:     handlers.NewHealthHandler(index, "test"),
	}, cfg, log)
	r.SetupRoutes()
	return r, clicks, recorder
}

// doRequest sends req through the app. httptest fills RequestURI with the absolute URL,
// and fiber only keeps the Host header when it is empty.
func doRequest(r Router, req *http.Request) (*http.Response, error) {
	req.RequestURI = ""
	return r.GetApp().Test(req)
}

func TestRouter_RedirectScenario(t *testing.T) {
	r, clicks, recorder := newTestRouter(t)

	resp, err := doRequest(r, httptest.NewRequest(http.MethodGet, "http://offers.example.com/r", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://vendor-one.example.net/hop?aff=1", resp.Header.Get(fiber.HeaderLocation))
	assert.Equal(t, "no-store", resp.Header.Get(fiber.HeaderCacheControl))
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))

	recorder.Wait()
	rows := clicks.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, uint(1), rows[0].DomainID)
	assert.Equal(t, uint(100), *rows[0].OfferID)
	assert.Nil(t, rows[0].PartnerID)
	assert.Nil(t, rows[0].IPHash)
}

func TestRouter_RedirectWithPartnerPath(t *testing.T) {
	r, _, recorder := newTestRouter(t)
	defer recorder.Wait()

	resp, err := doRequest(r, httptest.NewRequest(http.MethodGet, "http://offers.example.com/r/XYZ", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusFound, resp.StatusCode)

	location, err := url.Parse(resp.Header.Get(fiber.HeaderLocation))
	require.NoError(t, err)
	assert.Equal(t, "1", location.Query().Get("aff"))
	assert.Equal(t, "XYZ", location.Query().Get("tid"))
}

func TestRouter_ImpressionReflectsOrigin(t *testing.T) {
	r, _, _ := newTestRouter(t)

	form := url.Values{"partner": {"XYZ"}}
	req := httptest.NewRequest(http.MethodPost, "http://offers.example.com/impression", strings.NewReader(form.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	req.Header.Set(fiber.HeaderOrigin, "https://publisher.example.org")

	resp, err := doRequest(r, req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "https://publisher.example.org", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
	assert.Equal(t, "true", resp.Header.Get(fiber.HeaderAccessControlAllowCredentials))
}

func TestRouter_ImpressionPreflight(t *testing.T) {
	r, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "http://offers.example.com/impression", nil)
	req.Header.Set(fiber.HeaderOrigin, "https://publisher.example.org")
	req.Header.Set(fiber.HeaderAccessControlRequestMethod, fiber.MethodPost)

	resp, err := doRequest(r, req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://publisher.example.org", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
}

func TestRouter_NotFound(t *testing.T) {
	r, _, _ := newTestRouter(t)

	resp, err := doRequest(r, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "NOT_FOUND")
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	r, _, _ := newTestRouter(t)

	resp, err := doRequest(r, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = doRequest(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "hopgate_rule_index_generation")
}

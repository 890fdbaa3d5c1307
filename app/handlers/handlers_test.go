package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/amirphl/hopgate/app/dto"
	"github.com/amirphl/hopgate/app/services"
	businessflow "github.com/amirphl/hopgate/business_flow"
	testingutil "github.com/amirphl/hopgate/testing"
	"github.com/amirphl/hopgate/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fallbackURL = "https://hopgate.example.com/offer-unavailable"

type handlerFixture struct {
	app         *fiber.App
	index       *businessflow.RuleIndex
	clicks      *testingutil.MemoryClickLogStore
	impressions *testingutil.MemoryImpressionStore
	recorder    *businessflow.AttributionRecorderImpl
}

func newHandlerFixture(t *testing.T, loadIndex bool) *handlerFixture {
	t.Helper()
	log, _ := test.NewNullLogger()

	index := businessflow.NewRuleIndex(testingutil.NewMemoryRoutingSource(testingutil.ExampleRoutingTables()), log)
	if loadIndex {
		require.NoError(t, index.Refresh(context.Background()))
	}
	hasher, err := services.NewFingerprintService("")
	require.NoError(t, err)

	f := &handlerFixture{
		index:       index,
		clicks:      testingutil.NewMemoryClickLogStore(),
		impressions: testingutil.NewMemoryImpressionStore(),
	}
	f.recorder = businessflow.NewAttributionRecorder(f.clicks, f.impressions, hasher, nil, time.Second, log)

	signals := ClientSignals{ProxyHeader: "X-Real-IP"}
	redirect := NewRedirectHandler(
		businessflow.NewRedirectFlow(index, businessflow.NewRuleMatcher(index), f.recorder,
			businessflow.RedirectOptions{FallbackURL: fallbackURL, ClickIDParam: "cid", PartnerParam: "tid"}, log),
		signals, log)
	impression := NewImpressionHandler(businessflow.NewImpressionFlow(index, f.recorder), signals, log)
	health := NewHealthHandler(index, "test")

	f.app = fiber.New()
	f.app.Get("/r", redirect.Redirect)
	f.app.Get("/r/:partner", redirect.Redirect)
	f.app.Get("/r/:partner/:offer", redirect.Redirect)
	f.app.Post("/impression", impression.Record)
	f.app.Get("/api/v1/health", health.Health)
	return f
}

func (f *handlerFixture) do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	// httptest fills RequestURI with the absolute URL and fiber then drops the Host header
	req.RequestURI = ""
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	return resp
}

func decodeResponse(t *testing.T, resp *http.Response) dto.APIResponse {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out dto.APIResponse
	require.NoError(t, json.Unmarshal(body, &out), string(body))
	return out
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	out := decodeResponse(t, resp)
	detail, ok := out.Error.(map[string]any)
	require.True(t, ok)
	code, _ := detail["code"].(string)
	return code
}

func impressionRequest(form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "http://offers.example.com/impression", strings.NewReader(form.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	return req
}

func TestRedirectHandler_MatchedClick(t *testing.T) {
	f := newHandlerFixture(t, true)

	req := httptest.NewRequest(http.MethodGet, "http://offers.example.com/r", nil)
	req.Header.Set("X-Real-IP", "203.0.113.7")
	req.Header.Set(fiber.HeaderUserAgent, "Mozilla/5.0")
	req.Header.Set(fiber.HeaderReferer, "https://blog.example.org/review")
	resp := f.do(t, req)

	require.Equal(t, fiber.StatusFound, resp.StatusCode)
	location, err := url.Parse(resp.Header.Get(fiber.HeaderLocation))
	require.NoError(t, err)
	assert.Equal(t, "vendor-one.example.net", location.Host)
	assert.Equal(t, "/hop", location.Path)
	assert.NotEmpty(t, location.Query().Get("cid"))
	assert.Empty(t, location.Query().Get("tid"))

	f.recorder.Wait()
	rows := f.clicks.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, uint(100), *rows[0].OfferID)
	assert.Nil(t, rows[0].PartnerID)
	assert.NotNil(t, rows[0].IPHash)
	assert.NotNil(t, rows[0].UserAgentHash)
	assert.Equal(t, "https://blog.example.org/review", *rows[0].Referer)
	assert.Equal(t, location.Query().Get("cid"), rows[0].UUID.String())
}

func TestRedirectHandler_PartnerFromPathAndQuery(t *testing.T) {
	f := newHandlerFixture(t, true)

	resp := f.do(t, httptest.NewRequest(http.MethodGet, "http://offers.example.com/r/XYZ/100", nil))
	require.Equal(t, fiber.StatusFound, resp.StatusCode)
	location, err := url.Parse(resp.Header.Get(fiber.HeaderLocation))
	require.NoError(t, err)
	assert.Equal(t, "XYZ", location.Query().Get("tid"))

	// query overrides a malformed path value
	resp = f.do(t, httptest.NewRequest(http.MethodGet, "http://offers.example.com/r/bad!code?partner=XYZ", nil))
	require.Equal(t, fiber.StatusFound, resp.StatusCode)

	f.recorder.Wait()
	rows := f.clicks.Rows()
	require.Len(t, rows, 2)
	for _, row := range rows {
		require.NotNil(t, row.PartnerID)
		assert.Equal(t, uint(10), *row.PartnerID)
	}
}

func TestRedirectHandler_Fallback(t *testing.T) {
	f := newHandlerFixture(t, true)

	resp := f.do(t, httptest.NewRequest(http.MethodGet, "http://paused.example.com/r", nil))
	require.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, fallbackURL, resp.Header.Get(fiber.HeaderLocation))

	f.recorder.Wait()
	require.Len(t, f.clicks.Rows(), 1)
}

func TestRedirectHandler_FailingStoreStillRedirects(t *testing.T) {
	f := newHandlerFixture(t, true)
	f.clicks.SetFaults(testingutil.StoreFaults{Err: errors.New("store unavailable")})

	resp := f.do(t, httptest.NewRequest(http.MethodGet, "http://offers.example.com/r", nil))
	require.Equal(t, fiber.StatusFound, resp.StatusCode)

	f.recorder.Wait()
	assert.Equal(t, 1, f.clicks.Attempts())
	assert.Empty(t, f.clicks.Rows())
}

func TestRedirectHandler_Errors(t *testing.T) {
	f := newHandlerFixture(t, true)

	tests := []struct {
		name   string
		target string
		status int
		code   string
	}{
		{"unknown domain", "http://unknown.example.com/r", fiber.StatusNotFound, "TRACKING_DOMAIN_NOT_FOUND"},
		{"inactive domain", "http://retired.example.com/r", fiber.StatusNotFound, "TRACKING_DOMAIN_NOT_FOUND"},
		{"malformed partner", "http://offers.example.com/r?partner=%3Cscript%3E", fiber.StatusBadRequest, "INVALID_PARTNER_CODE"},
		{"non-numeric offer", "http://offers.example.com/r/XYZ/abc", fiber.StatusBadRequest, "INVALID_OFFER_HINT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.do(t, httptest.NewRequest(http.MethodGet, tt.target, nil))
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, errorCode(t, resp))
		})
	}

	f.recorder.Wait()
	assert.Zero(t, f.clicks.Attempts())
}

func TestRedirectHandler_IndexNotLoaded(t *testing.T) {
	f := newHandlerFixture(t, false)

	resp := f.do(t, httptest.NewRequest(http.MethodGet, "http://offers.example.com/r", nil))
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestImpressionHandler(t *testing.T) {
	t.Run("approved partner without ip stores null ip hash", func(t *testing.T) {
		f := newHandlerFixture(t, true)

		resp := f.do(t, impressionRequest(url.Values{"partner": {"XYZ"}, "creative_id": {"9"}}))
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)
		assert.True(t, decodeResponse(t, resp).Success)

		rows := f.impressions.Rows()
		require.Len(t, rows, 1)
		assert.Equal(t, uint(10), rows[0].PartnerID)
		assert.Equal(t, uint(9), *rows[0].CreativeID)
		assert.Nil(t, rows[0].IPHash)
	})

	t.Run("proxy header ip is hashed", func(t *testing.T) {
		f := newHandlerFixture(t, true)

		req := impressionRequest(url.Values{"partner": {"XYZ"}})
		req.Header.Set("X-Real-IP", "198.51.100.4, 10.0.0.1")
		resp := f.do(t, req)
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)

		rows := f.impressions.Rows()
		require.Len(t, rows, 1)
		require.NotNil(t, rows[0].IPHash)
		hasher, _ := services.NewFingerprintService("")
		assert.Equal(t, *hasher.Hash(utils.ToPtr("198.51.100.4")), *rows[0].IPHash)
	})

	t.Run("pending partner is not found and nothing is stored", func(t *testing.T) {
		f := newHandlerFixture(t, true)

		resp := f.do(t, impressionRequest(url.Values{"partner": {"ABC123"}}))
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "PARTNER_NOT_FOUND", errorCode(t, resp))
		assert.Zero(t, f.impressions.Attempts())
	})

	t.Run("missing partner", func(t *testing.T) {
		f := newHandlerFixture(t, true)

		resp := f.do(t, impressionRequest(url.Values{}))
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "VALIDATION_ERROR", errorCode(t, resp))
	})

	t.Run("bad creative id", func(t *testing.T) {
		f := newHandlerFixture(t, true)

		resp := f.do(t, impressionRequest(url.Values{"partner": {"XYZ"}, "creative_id": {"x1"}}))
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("store failure", func(t *testing.T) {
		f := newHandlerFixture(t, true)
		f.impressions.SetFaults(testingutil.StoreFaults{Err: errors.New("store unavailable")})

		resp := f.do(t, impressionRequest(url.Values{"partner": {"XYZ"}}))
		assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, "IMPRESSION_RECORD_FAILED", errorCode(t, resp))
	})
}

func TestHealthHandler(t *testing.T) {
	f := newHandlerFixture(t, false)
	resp := f.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	require.NoError(t, f.index.Refresh(context.Background()))
	resp = f.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	out := decodeResponse(t, resp)
	data, ok := out.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), data["rule_generation"])
}

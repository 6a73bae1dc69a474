package crawl

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-pubcrawl/internal/app/models"
	"github.com/FACorreiaa/go-pubcrawl/internal/pkg/geo"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Generate(ctx context.Context, req Request) (*models.CrawlResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CrawlResult), args.Error(1)
}

func setupRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/generate-crawl", h.GenerateCrawl)
	return r
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error
}

func TestGenerateCrawlHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := new(MockService)
		svc.On("Generate", mock.Anything, Request{Origin: geo.Point{Lon: -3.53, Lat: 50.72}, StartPubID: 7}).
			Return(&models.CrawlResult{
				Route:         json.RawMessage(sampleRoute),
				TotalDuration: 540,
				PubIDs:        []int64{7, 12, 19},
			}, nil)
		r := setupRouter(NewHandler(svc, nil, zap.NewNop()))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/generate-crawl?lng=-3.53&lat=50.72&start_pub_id=7", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Route         json.RawMessage `json:"route"`
			TotalDuration float64         `json:"totalDuration"`
			PubIDs        []int64         `json:"pubIds"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.JSONEq(t, sampleRoute, string(body.Route))
		assert.Equal(t, 540.0, body.TotalDuration)
		assert.Equal(t, []int64{7, 12, 19}, body.PubIDs)
		svc.AssertExpectations(t)
	})

	t.Run("missing coordinate", func(t *testing.T) {
		svc := new(MockService)
		r := setupRouter(NewHandler(svc, nil, zap.NewNop()))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/generate-crawl?lat=50.72&start_pub_id=7", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, MissingInputMessage, decodeError(t, w))
		svc.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	})

	t.Run("configuration error wins over bad input", func(t *testing.T) {
		svc := new(MockService)
		cfgErr := models.NewConfiguration("Server configuration error.", errors.New("missing environment variables: ORS_API_KEY"))
		r := setupRouter(NewHandler(svc, cfgErr, zap.NewNop()))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/generate-crawl", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "Server configuration error.", decodeError(t, w))
		svc.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	})

	t.Run("not enough pubs", func(t *testing.T) {
		svc := new(MockService)
		svc.On("Generate", mock.Anything, mock.Anything).Return(nil, models.NewNotFound(NotEnoughPubsMessage))
		r := setupRouter(NewHandler(svc, nil, zap.NewNop()))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/generate-crawl?lng=-3.53&lat=50.72&start_pub_id=7", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, NotEnoughPubsMessage, decodeError(t, w))
	})

	t.Run("provider message is passed through", func(t *testing.T) {
		svc := new(MockService)
		svc.On("Generate", mock.Anything, mock.Anything).
			Return(nil, models.NewUpstream("Route could not be found", nil))
		r := setupRouter(NewHandler(svc, nil, zap.NewNop()))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/generate-crawl?lng=-3.53&lat=50.72&start_pub_id=7", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "Route could not be found", decodeError(t, w))
	})

	t.Run("unexpected error", func(t *testing.T) {
		svc := new(MockService)
		svc.On("Generate", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))
		r := setupRouter(NewHandler(svc, nil, zap.NewNop()))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/generate-crawl?lng=-3.53&lat=50.72&start_pub_id=7", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "connection refused", decodeError(t, w))
	})
}

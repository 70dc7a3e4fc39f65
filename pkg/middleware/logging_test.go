package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestLogging_SetsCorrelationHeader(t *testing.T) {
	var buf bytes.Buffer
	handler := RequestLogging(newBufferLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/cart/items", nil))

	assert.NotEmpty(t, rec.Header().Get(CorrelationHeader))
	out := decodeLogLine(t, &buf)
	assert.Equal(t, "http request", out["msg"])
	assert.EqualValues(t, http.StatusCreated, out["status"])
	assert.Equal(t, rec.Header().Get(CorrelationHeader), out["correlation_id"])
}

func TestRequestLogging_ReusesInboundCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	handler := RequestLogging(newBufferLogger(&buf))(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CorrelationHeader, "upstream-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "upstream-1", rec.Header().Get(CorrelationHeader))
}

func TestRequestLogging_ServerErrorLogsAtErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	handler := RequestLogging(newBufferLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "ERROR", decodeLogLine(t, &buf)["level"])
}

func TestStatusWriter_FlushReachesUnderlyingWriter(t *testing.T) {
	var buf bytes.Buffer
	chain := RequestLogging(newBufferLogger(&buf))(
		PrometheusMetrics("test")(
			Tracing("test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("data: hello\n\n"))
				require.NoError(t, http.NewResponseController(w).Flush())
			})),
		),
	)

	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/1/events", nil))

	assert.True(t, rec.Flushed)
	assert.Equal(t, "data: hello\n\n", rec.Body.String())
}

func TestNewStatusWriter_DoesNotDoubleWrap(t *testing.T) {
	sw := newStatusWriter(httptest.NewRecorder())
	assert.Same(t, sw, newStatusWriter(sw))
}

package httpapi_test

import (
	"net/http"
	"testing"

	"github.com/MrEthical07/authflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestRequestSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	srv := newTestServer(t, func(c *authflow.Config) { c.RateLimit.Enabled = false })
	srv.do(t, http.MethodGet, "/api/auth/check-auth", "")
	srv.redis.Close()
	srv.do(t, http.MethodPost, "/api/auth/login", `{"email":"a@x.com","password":"Passw0rd!"}`)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	checkAuth := spans[0]
	assert.Equal(t, "GET /api/auth/check-auth", checkAuth.Name())
	assert.Contains(t, checkAuth.Attributes(), attribute.Int("http.response.status_code", http.StatusUnauthorized))
	assert.Equal(t, codes.Unset, checkAuth.Status().Code)

	login := spans[1]
	assert.Equal(t, "POST /api/auth/login", login.Name())
	assert.Equal(t, codes.Error, login.Status().Code)
}

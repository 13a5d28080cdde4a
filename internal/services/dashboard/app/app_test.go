package app_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	kitlog "github.com/go-kit/kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/agritech_dashboard/internal/services/dashboard"
	"github.com/LeonardoBeccarini/agritech_dashboard/internal/services/dashboard/app"
	"github.com/LeonardoBeccarini/agritech_dashboard/pkg/rabbitmq"
	"github.com/LeonardoBeccarini/agritech_dashboard/pkg/rabbitmq/rabbitmqtest"
)

func newApp() *app.App {
	return app.NewApp(&app.Config{
		Addr:       "127.0.0.1:0",
		BackendURL: "http://127.0.0.1:1",
		Logger:     kitlog.NewNopLogger(),
	})
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHandlerBeforeConnect(t *testing.T) {
	h := newApp().Handler(nil)

	rec := get(t, h, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	var st dashboard.HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "down", st.Status)
	assert.False(t, st.InfluxEnabled)

	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/readyz").Code)

	rec = get(t, h, "/api/sensor-data")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"offline"`)

	rec = get(t, h, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), dashboard.DefaultUser)
}

func TestHandlerWithBroker(t *testing.T) {
	client := rabbitmqtest.NewClient()
	h := newApp().Handler(client)

	rec := get(t, h, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ready":true}`, rec.Body.String())
}

func TestStartFailsWithoutBroker(t *testing.T) {
	a := app.NewApp(&app.Config{
		Addr: "127.0.0.1:0",
		Rabbit: rabbitmq.RabbitMQConfig{
			Host:           "127.0.0.1",
			Port:           1,
			ClientID:       "app-test",
			MaxRetries:     1,
			ConnectTimeout: 200 * time.Millisecond,
		},
		Logger: kitlog.NewNopLogger(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := a.Start(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not establish MQTT connection")
}

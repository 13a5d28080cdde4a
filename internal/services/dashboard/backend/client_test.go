package backend_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/agritech_dashboard/internal/services/dashboard/backend"
)

func newBackend(t *testing.T, handler http.HandlerFunc) (*backend.Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return backend.NewClient(backend.Config{BaseURL: srv.URL + "/", Timeout: 2 * time.Second}), srv
}

func respond(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

func TestPredictYield(t *testing.T) {
	var got map[string]string
	client, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/predict_yield", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Contains(t, r.Header.Get("User-Agent"), "agritech/")
		require.Nil(t, json.NewDecoder(r.Body).Decode(&got))

		respond(w, http.StatusOK, `{
			"predicted_yield": "6.42 tons/hectare",
			"yield_category": "High",
			"confidence_score": 91.27,
			"smart_advice": "• Test soil\n• Irrigate early"
		}`)
	})

	out, err := client.PredictYield(context.Background(), backend.Form{"crop": "Rice", "area": "2.5"})
	require.Nil(t, err)

	assert.Equal(t, backend.Form{"crop": "Rice", "area": "2.5"}, backend.Form(got))
	assert.Equal(t, "6.42 tons/hectare", out.PredictedYield)
	assert.Equal(t, "High", out.YieldCategory)
	require.NotNil(t, out.ConfidenceScore)
	assert.Equal(t, 91.27, *out.ConfidenceScore)
}

func TestApplicationError(t *testing.T) {
	testcases := []struct {
		label  string
		status int
	}{
		{"ok status", http.StatusOK},
		{"bad request", http.StatusBadRequest},
		{"server error", http.StatusInternalServerError},
	}

	for _, tc := range testcases {
		t.Run(tc.label, func(t *testing.T) {
			client, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
				respond(w, tc.status, `{"error": "Invalid input"}`)
			})

			out, err := client.PredictYield(context.Background(), backend.Form{})
			assert.Nil(t, out)

			var appErr *backend.ApplicationError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, "Invalid input", appErr.Message)
			assert.Equal(t, backend.OpPredictYield, appErr.Op)
			assert.Equal(t, tc.status, appErr.StatusCode)
		})
	}
}

func TestMalformedResponse(t *testing.T) {
	testcases := []struct {
		label string
		body  string
		want  string
	}{
		{"not json", `<html>oops</html>`, "not a JSON object"},
		{"missing field", `{"predicted_yield": "3 t/ha"}`, "yield_category"},
		{"wrong type", `{"predicted_yield": "3 t/ha", "yield_category": 7}`, "unexpected field type"},
		{"null field", `{"predicted_yield": null, "yield_category": "Low"}`, "predicted_yield"},
	}

	for _, tc := range testcases {
		t.Run(tc.label, func(t *testing.T) {
			client, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
				respond(w, http.StatusOK, tc.body)
			})

			_, err := client.PredictYield(context.Background(), backend.Form{})
			var mErr *backend.MalformedResponseError
			require.True(t, errors.As(err, &mErr), "got %v", err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestNestedRequiredFields(t *testing.T) {
	client, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, `{"risk_level": "High", "climate_risks": {"drought_risk": 80}}`)
	})

	_, err := client.AssessClimateRisk(context.Background(), backend.Form{})
	var mErr *backend.MalformedResponseError
	require.True(t, errors.As(err, &mErr))
	assert.Contains(t, err.Error(), "climate_risks.heat_stress_risk")
	assert.NotContains(t, err.Error(), "climate_risks.drought_risk")
}

func TestTransportErrors(t *testing.T) {
	client, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := client.TraceCrop(context.Background(), 99)
	var tErr *backend.TransportError
	require.True(t, errors.As(err, &tErr))
	assert.Equal(t, http.StatusNotFound, tErr.StatusCode)
	assert.Equal(t, backend.OpTraceCrop, tErr.Op)
}

func TestNotConfigured(t *testing.T) {
	client := backend.NewClient(backend.Config{})
	_, err := client.WeatherForecast(context.Background())

	var tErr *backend.TransportError
	require.True(t, errors.As(err, &tErr))
	assert.Equal(t, backend.NotConfiguredError, tErr.Err)
}

func TestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		respond(w, http.StatusOK, `{"advice": "late"}`)
	}))
	defer srv.Close()

	client := backend.NewClient(backend.Config{BaseURL: srv.URL, Timeout: 20 * time.Millisecond})
	_, err := client.SmartAdvice(context.Background(), "hello")

	var tErr *backend.TransportError
	require.True(t, errors.As(err, &tErr))
	assert.Equal(t, backend.TimeoutError, tErr.Err)
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := backend.NewClient(backend.Config{
		BaseURL:         srv.URL,
		BreakerFailures: 2,
		BreakerOpenFor:  time.Minute,
	})

	for i := 0; i < 2; i++ {
		_, err := client.WeatherForecast(context.Background())
		var tErr *backend.TransportError
		require.True(t, errors.As(err, &tErr))
		assert.Equal(t, http.StatusServiceUnavailable, tErr.StatusCode)
	}
	assert.Equal(t, gobreaker.StateOpen, client.BreakerState(backend.OpWeatherForecast))

	_, err := client.WeatherForecast(context.Background())
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))

	// other operations keep their own breaker
	assert.Equal(t, gobreaker.StateClosed, client.BreakerState(backend.OpUserProgress))
}

func TestApplicationErrorsDoNotTripBreaker(t *testing.T) {
	client, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusInternalServerError, `{"error": "Image processing failed"}`)
	})

	for i := 0; i < 8; i++ {
		_, err := client.AnalyzeCropHealth(context.Background(), &backend.Upload{Filename: "leaf.png", ContentType: "image/png", Data: []byte("png")})
		var appErr *backend.ApplicationError
		require.True(t, errors.As(err, &appErr))
	}
	assert.Equal(t, gobreaker.StateClosed, client.BreakerState(backend.OpCropHealth))
}

func TestRecommendCropDecodesPairs(t *testing.T) {
	client, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, `{"recommendations": [["Rice", 0.91], ["Maize", 0.7]], "smart_advice": "• Sell early"}`)
	})

	out, err := client.RecommendCrop(context.Background(), backend.Form{"season": "Kharif"})
	require.Nil(t, err)
	require.Len(t, out.Recommendations, 2)
	assert.Equal(t, backend.CropScore{Crop: "Rice", Confidence: 0.91}, out.Recommendations[0])
	assert.Equal(t, backend.CropScore{Crop: "Maize", Confidence: 0.7}, out.Recommendations[1])

	b, err := json.Marshal(out.Recommendations[0])
	require.Nil(t, err)
	assert.JSONEq(t, `["Rice", 0.91]`, string(b))
}

func TestRecommendCropBadPair(t *testing.T) {
	client, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, `{"recommendations": [["Rice"]]}`)
	})

	_, err := client.RecommendCrop(context.Background(), backend.Form{})
	var mErr *backend.MalformedResponseError
	assert.True(t, errors.As(err, &mErr))
}

func TestAnalyzeCropHealthMultipart(t *testing.T) {
	client, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/crop-health-analysis", r.URL.Path)
		file, header, err := r.FormFile("image")
		require.Nil(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)

		assert.Equal(t, "leaf.jpg", header.Filename)
		assert.Equal(t, "image/jpeg", header.Header.Get("Content-Type"))
		assert.Equal(t, "jpeg-bytes", string(data))

		respond(w, http.StatusOK, `{
			"health_score": 84.5,
			"disease_detected": false,
			"disease_confidence": 12.3,
			"disease_type": "Healthy",
			"color_analysis": {"green_percentage": 71.2, "yellow_percentage": 8.1, "brown_percentage": 2.4},
			"stress_indicators": [],
			"treatment_suggestions": ["Continue regular monitoring"],
			"recommendations": ["Maintain current practices"]
		}`)
	})

	out, err := client.AnalyzeCropHealth(context.Background(), &backend.Upload{
		Filename:    "leaf.jpg",
		ContentType: "image/jpeg",
		Data:        []byte("jpeg-bytes"),
	})
	require.Nil(t, err)
	assert.Equal(t, 84.5, out.HealthScore)
	assert.False(t, out.DiseaseDetected)
	assert.Equal(t, 71.2, out.ColorAnalysis.GreenPercentage)
	assert.Equal(t, []string{"Continue regular monitoring"}, out.TreatmentSuggestions)
}

func TestUserProgressAndAward(t *testing.T) {
	client, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/user-progress":
			assert.Equal(t, "farmer one", r.URL.Query().Get("user"))
			respond(w, http.StatusOK, `{
				"level": 3, "level_title": "Skilled Farmer", "progress_percentage": 50,
				"points": 250, "next_level_points": 300,
				"achievements_earned": [{"points": 10, "title": "First Prediction", "description": "Made your first yield prediction", "icon": "fas fa-chart-line"}],
				"badges": [{"name": "First Steps", "icon": "fas fa-seedling", "color": "success"}]
			}`)
		case "/api/award-points":
			var in map[string]string
			require.Nil(t, json.NewDecoder(r.Body).Decode(&in))
			assert.Equal(t, map[string]string{"action": "climate_warrior", "user": "farmer one"}, in)
			respond(w, http.StatusOK, `{
				"success": true, "points_awarded": 25, "total_points": 275, "level_up": false,
				"achievement": {"points": 25, "title": "Climate Warrior", "description": "Completed climate risk assessment", "icon": "fas fa-cloud-sun"}
			}`)
		}
	})

	progress, err := client.UserProgress(context.Background(), "farmer one")
	require.Nil(t, err)
	assert.Equal(t, 3, progress.Level)
	assert.Equal(t, "Skilled Farmer", progress.LevelTitle)
	require.Len(t, progress.AchievementsEarned, 1)
	require.Len(t, progress.Badges, 1)

	award, err := client.AwardPoints(context.Background(), "farmer one", backend.ActionClimateWarrior)
	require.Nil(t, err)
	assert.True(t, award.Success)
	assert.Equal(t, 25, award.PointsAwarded)
	assert.Equal(t, "Climate Warrior", award.Achievement.Title)
}

func TestAwardWithoutAchievementIsMalformed(t *testing.T) {
	client, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, `{"success": true, "points_awarded": 10}`)
	})

	_, err := client.AwardPoints(context.Background(), "u", backend.ActionFirstPrediction)
	var mErr *backend.MalformedResponseError
	assert.True(t, errors.As(err, &mErr))
}

func TestAwardRefused(t *testing.T) {
	client, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, `{"success": false, "message": "Achievement already earned"}`)
	})

	award, err := client.AwardPoints(context.Background(), "u", backend.ActionFirstPrediction)
	require.Nil(t, err)
	assert.False(t, award.Success)
	assert.Equal(t, "Achievement already earned", award.Message)
}

package dashboard

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	kitlog "github.com/go-kit/kit/log"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LeonardoBeccarini/agritech_dashboard/internal/model"
	"github.com/LeonardoBeccarini/agritech_dashboard/internal/services/dashboard/backend"
	"github.com/LeonardoBeccarini/agritech_dashboard/internal/services/dashboard/views"
)

const (
	maxFormMemory = 1 << 20
	maxUploadBody = backend.MaxUploadBytes + maxFormMemory
)

// RouterConfig collects what the HTTP surface serves.
type RouterConfig struct {
	Controller *Controller
	Relay      *Relay
	Health     http.Handler
	Ready      http.Handler
	// RateLimiter, when set, guards the routes that submit work to the
	// farm backend.
	RateLimiter *RateLimiter
	// AccessLog receives one combined log line per request when set.
	AccessLog io.Writer
	Logger    kitlog.Logger
}

type server struct {
	ctrl   *Controller
	logger kitlog.Logger
}

// NewRouter builds the dashboard routes wrapped in panic recovery, metrics
// and access logging.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = kitlog.NewNopLogger()
	}
	s := &server{ctrl: cfg.Controller, logger: kitlog.With(cfg.Logger, "module", "http")}

	r := mux.NewRouter()
	r.HandleFunc("/", s.page).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	if cfg.Relay != nil {
		r.Handle("/ws", cfg.Relay).Methods(http.MethodGet)
	}
	if cfg.Health != nil {
		r.Handle("/healthz", cfg.Health).Methods(http.MethodGet)
	}
	if cfg.Ready != nil {
		r.Handle("/readyz", cfg.Ready).Methods(http.MethodGet)
	}
	r.HandleFunc("/api/sensor-data", s.sensorData).Methods(http.MethodGet)

	// /ui routes live on the root router so a wrong method gets 405, not 404.
	r.HandleFunc("/ui/live", s.live).Methods(http.MethodGet)
	r.HandleFunc("/ui/charts", s.charts).Methods(http.MethodGet)
	r.HandleFunc("/ui/notifications", s.notifications).Methods(http.MethodGet)
	limit := func(h http.HandlerFunc) http.Handler {
		if cfg.RateLimiter == nil {
			return h
		}
		return cfg.RateLimiter.Handler(h)
	}
	r.Handle("/ui/yield", limit(s.formHandler(s.yield))).Methods(http.MethodPost)
	r.Handle("/ui/crop", limit(s.formHandler(s.crop))).Methods(http.MethodPost)
	r.Handle("/ui/climate", limit(s.formHandler(s.climate))).Methods(http.MethodPost)
	r.Handle("/ui/health", limit(s.health)).Methods(http.MethodPost)
	r.Handle("/ui/record", limit(s.formHandler(s.record))).Methods(http.MethodPost)
	r.HandleFunc("/ui/trace", s.trace).Methods(http.MethodGet)
	r.HandleFunc("/ui/trace/{id}", s.trace).Methods(http.MethodGet)
	r.Handle("/ui/chat", limit(s.formHandler(s.chat))).Methods(http.MethodPost)
	r.HandleFunc("/ui/weather", s.weather).Methods(http.MethodGet)
	r.HandleFunc("/ui/progress", s.progress).Methods(http.MethodGet)
	r.HandleFunc("/ui/analytics", s.analytics).Methods(http.MethodGet)

	var h http.Handler = r
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(&recoveryLogger{logger: s.logger, notifier: s.ctrl.Notifier()}),
	)(h)
	h = MetricsMiddleware(h)
	if cfg.AccessLog != nil {
		h = handlers.CombinedLoggingHandler(cfg.AccessLog, h)
	}
	return h
}

// recoveryLogger turns a recovered panic into a log line and the generic
// "please refresh" toast.
type recoveryLogger struct {
	logger   kitlog.Logger
	notifier *Notifier
}

func (l *recoveryLogger) Println(v ...interface{}) {
	l.logger.Log("level", "error", "msg", "recovered from panic", "err", fmt.Sprint(v...))
	l.notifier.Notify(model.SeverityDanger, MsgUnexpected)
}

func (s *server) render(w http.ResponseWriter, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := views.Render(w, name, data); err != nil {
		s.logger.Log("msg", "render failed", "template", name, "err", err)
		http.Error(w, MsgUnexpected, http.StatusInternalServerError)
	}
}

// fragment writes f, or 204 when the outcome was only a toast.
func (s *server) fragment(w http.ResponseWriter, f *Fragment) {
	if f == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.render(w, f.Template, f.Data)
}

func (s *server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Log("msg", "failed to encode response", "err", err)
	}
}

// readForm accepts url encoded and multipart bodies and keeps the first
// value of every field.
func readForm(r *http.Request) (backend.Form, error) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, errors.Wrap(err, "failed to parse form")
	}
	form := backend.Form{}
	for k, v := range r.PostForm {
		if len(v) > 0 {
			form[k] = strings.TrimSpace(v[0])
		}
	}
	return form, nil
}

// formHandler adapts a controller operation taking a submitted form.
func (s *server) formHandler(op func(r *http.Request, form backend.Form) *Fragment) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, err := readForm(r)
		if err != nil {
			s.logger.Log("msg", "bad form", "path", r.URL.Path, "err", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.fragment(w, op(r, form))
	}
}

func (s *server) page(w http.ResponseWriter, r *http.Request) {
	s.render(w, views.TplPage, s.ctrl.Page())
}

func (s *server) live(w http.ResponseWriter, r *http.Request) {
	s.render(w, views.TplLive, s.ctrl.Live())
}

func (s *server) charts(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.ctrl.Charts())
}

func (s *server) notifications(w http.ResponseWriter, r *http.Request) {
	s.render(w, views.TplNotifications, s.ctrl.Notifications())
}

func (s *server) sensorData(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.ctrl.SensorSummary())
}

func (s *server) yield(r *http.Request, form backend.Form) *Fragment {
	return s.ctrl.PredictYield(r.Context(), form)
}

func (s *server) crop(r *http.Request, form backend.Form) *Fragment {
	return s.ctrl.RecommendCrop(r.Context(), form)
}

func (s *server) climate(r *http.Request, form backend.Form) *Fragment {
	return s.ctrl.AssessClimate(r.Context(), form)
}

func (s *server) record(r *http.Request, form backend.Form) *Fragment {
	return s.ctrl.CreateRecord(r.Context(), form)
}

func (s *server) chat(r *http.Request, form backend.Form) *Fragment {
	return s.ctrl.Chat(r.Context(), form["prompt"])
}

// health selects the posted image, if any, then analyses the pending one.
func (s *server) health(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)

	file, header, err := r.FormFile("image")
	switch {
	case err == nil:
		defer file.Close()
		if err := s.ctrl.SelectImage(file, header); err != nil {
			s.fragment(w, nil)
			return
		}
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.ctrl.Notifier().Notify(model.SeverityWarning, backend.MsgImageTooLarge)
			s.fragment(w, nil)
			return
		}
		s.logger.Log("msg", "bad upload", "err", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.fragment(w, s.ctrl.AnalyzeHealth(r.Context()))
}

func (s *server) trace(w http.ResponseWriter, r *http.Request) {
	s.fragment(w, s.ctrl.Trace(r.Context(), mux.Vars(r)["id"]))
}

func (s *server) weather(w http.ResponseWriter, r *http.Request) {
	refresh := r.URL.Query().Get("refresh") != ""
	s.fragment(w, s.ctrl.Weather(r.Context(), refresh))
}

func (s *server) progress(w http.ResponseWriter, r *http.Request) {
	s.fragment(w, s.ctrl.Progress(r.Context()))
}

func (s *server) analytics(w http.ResponseWriter, r *http.Request) {
	s.fragment(w, s.ctrl.Analytics(r.Context()))
}

package dashboard

import (
	"context"
	"mime/multipart"
	"sync"
	"time"

	kitlog "github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	"github.com/LeonardoBeccarini/agritech_dashboard/internal/model"
	"github.com/LeonardoBeccarini/agritech_dashboard/internal/services/dashboard/backend"
	"github.com/LeonardoBeccarini/agritech_dashboard/internal/services/dashboard/views"
	"github.com/LeonardoBeccarini/agritech_dashboard/pkg/version"
)

// DefaultUser is the gamification user when none is configured.
const DefaultUser = "default_user"

// Toasts raised when a backend call fails.
const (
	MsgPredictionFailed = "Error making prediction. Please try again."
	MsgRecommendFailed  = "Error getting recommendations. Please try again."
	MsgClimateFailed    = "Error assessing climate risks. Please try again."
	MsgHealthFailed     = "Error analyzing image. Please try again."
	MsgRecordFailed     = "Error creating blockchain record. Please try again."
	MsgTraceFailed      = "Error tracing crop record. Please try again."
	MsgChatFailed       = "Sorry, I encountered an error. Please try again."
	MsgAnalyzing        = "Analyzing crop health..."
	MsgWeatherRefreshed = "Weather data refreshed"
	MsgUnexpected       = "An unexpected error occurred. Please refresh the page."
)

// FarmBackend is the part of the backend client the controller uses.
type FarmBackend interface {
	PredictYield(ctx context.Context, form backend.Form) (*backend.YieldPrediction, error)
	RecommendCrop(ctx context.Context, form backend.Form) (*backend.CropRecommendation, error)
	AssessClimateRisk(ctx context.Context, form backend.Form) (*backend.ClimateAssessment, error)
	AnalyzeCropHealth(ctx context.Context, img *backend.Upload) (*backend.CropHealth, error)
	CreateCropRecord(ctx context.Context, form backend.Form) (*backend.CropRecordReceipt, error)
	TraceCrop(ctx context.Context, recordID int) (*backend.CropTrace, error)
	SmartAdvice(ctx context.Context, prompt string) (*backend.Advice, error)
	WeatherForecast(ctx context.Context) (*backend.WeatherForecast, error)
	UserProgress(ctx context.Context, user string) (*backend.UserProgress, error)
	AwardPoints(ctx context.Context, user, action string) (*backend.AwardResult, error)
	Analytics(ctx context.Context) (*backend.Analytics, error)
}

// Fragment is a template and its data. A nil Fragment means there is nothing
// to render, the outcome was reported through a toast.
type Fragment struct {
	Template string
	Data     interface{}
}

func errorFragment(message string) *Fragment {
	return &Fragment{Template: views.TplError, Data: views.ErrorView{Message: message}}
}

type ControllerConfig struct {
	Feed     *Feed
	Notifier *Notifier
	History  *History
	Backend  FarmBackend
	User     string
	Logger   kitlog.Logger
	Clock    func() time.Time
}

// Controller owns the page session state: the live feed, the toasts, the
// current user and the image waiting to be analysed.
type Controller struct {
	feed     *Feed
	notifier *Notifier
	history  *History
	backend  FarmBackend
	user     string
	logger   kitlog.Logger
	now      func() time.Time

	mu      sync.Mutex
	pending *backend.Upload
}

func NewController(cfg ControllerConfig) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = kitlog.NewNopLogger()
	}
	if cfg.User == "" {
		cfg.User = DefaultUser
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Notifier == nil {
		cfg.Notifier = NewNotifier(cfg.Logger)
	}
	if cfg.History == nil {
		cfg.History = NewHistory(nil)
	}
	return &Controller{
		feed:     cfg.Feed,
		notifier: cfg.Notifier,
		history:  cfg.History,
		backend:  cfg.Backend,
		user:     cfg.User,
		logger:   kitlog.With(cfg.Logger, "module", "controller"),
		now:      cfg.Clock,
	}
}

func (c *Controller) User() string { return c.user }

func (c *Controller) Notifier() *Notifier { return c.notifier }

// failed maps a backend error onto the page: application errors replace the
// result, input errors and transport failures become toasts.
func (c *Controller) failed(op string, err error, toast string) *Fragment {
	var appErr *backend.ApplicationError
	if errors.As(err, &appErr) {
		return errorFragment(appErr.Message)
	}
	var inErr *backend.InputError
	if errors.As(err, &inErr) {
		c.notifier.Notify(model.SeverityWarning, inErr.Message)
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	c.logger.Log("msg", "backend call failed", "op", op, "err", err)
	c.notifier.Notify(model.SeverityDanger, toast)
	return nil
}

// quiet is failed for panels that load in the background and never toast.
func (c *Controller) quiet(op string, err error) *Fragment {
	var appErr *backend.ApplicationError
	if errors.As(err, &appErr) {
		return errorFragment(appErr.Message)
	}
	c.logger.Log("msg", "panel load failed", "op", op, "err", err)
	return nil
}

// award asks the backend for the points of action and raises the matching
// toasts. Failures are only logged.
func (c *Controller) award(ctx context.Context, action string) {
	res, err := c.backend.AwardPoints(ctx, c.user, action)
	if err != nil {
		c.logger.Log("msg", "points award failed", "action", action, "err", err)
		return
	}
	if !res.Success {
		return
	}
	c.notifier.Achievement(res.Achievement.Icon, res.Achievement.Title, res.Achievement.Description, res.PointsAwarded)
	if res.LevelUp {
		c.notifier.LevelUp()
	}
}

func (c *Controller) PredictYield(ctx context.Context, form backend.Form) *Fragment {
	res, err := c.backend.PredictYield(ctx, form)
	if err != nil {
		return c.failed(backend.OpPredictYield, err, MsgPredictionFailed)
	}
	c.award(ctx, backend.ActionFirstPrediction)
	return &Fragment{Template: views.TplYield, Data: views.Yield(res)}
}

func (c *Controller) RecommendCrop(ctx context.Context, form backend.Form) *Fragment {
	res, err := c.backend.RecommendCrop(ctx, form)
	if err != nil {
		return c.failed(backend.OpRecommendCrop, err, MsgRecommendFailed)
	}
	return &Fragment{Template: views.TplCrop, Data: views.Crops(res)}
}

func (c *Controller) AssessClimate(ctx context.Context, form backend.Form) *Fragment {
	res, err := c.backend.AssessClimateRisk(ctx, form)
	if err != nil {
		return c.failed(backend.OpClimateRisk, err, MsgClimateFailed)
	}
	c.award(ctx, backend.ActionClimateWarrior)
	return &Fragment{Template: views.TplClimate, Data: views.Climate(res)}
}

// SelectImage validates an uploaded image and keeps it as the pending one.
// A rejected image raises a warning toast and leaves the previous one in
// place.
func (c *Controller) SelectImage(file multipart.File, header *multipart.FileHeader) error {
	up, err := backend.ReadUpload(file, header)
	if err != nil {
		var inErr *backend.InputError
		if errors.As(err, &inErr) {
			c.notifier.Notify(model.SeverityWarning, inErr.Message)
		}
		return err
	}
	c.mu.Lock()
	c.pending = up
	c.mu.Unlock()
	return nil
}

// AnalyzeHealth sends the pending image.
func (c *Controller) AnalyzeHealth(ctx context.Context) *Fragment {
	c.mu.Lock()
	up := c.pending
	c.mu.Unlock()
	if up == nil {
		c.notifier.Notify(model.SeverityWarning, backend.MsgNoImage)
		return nil
	}

	c.notifier.Notify(model.SeverityInfo, MsgAnalyzing)
	res, err := c.backend.AnalyzeCropHealth(ctx, up)
	if err != nil {
		return c.failed(backend.OpCropHealth, err, MsgHealthFailed)
	}
	c.award(ctx, backend.ActionTechPioneer)
	return &Fragment{Template: views.TplHealth, Data: views.Health(res)}
}

func (c *Controller) CreateRecord(ctx context.Context, form backend.Form) *Fragment {
	res, err := c.backend.CreateCropRecord(ctx, form)
	if err != nil {
		return c.failed(backend.OpCreateRecord, err, MsgRecordFailed)
	}
	c.award(ctx, backend.ActionBlockchainFarmer)
	return &Fragment{Template: views.TplRecord, Data: views.Record(res)}
}

func (c *Controller) Trace(ctx context.Context, rawID string) *Fragment {
	id, err := backend.ParseTraceID(rawID)
	if err != nil {
		return c.failed(backend.OpTraceCrop, err, MsgTraceFailed)
	}
	res, err := c.backend.TraceCrop(ctx, id)
	if err != nil {
		return c.failed(backend.OpTraceCrop, err, MsgTraceFailed)
	}
	return &Fragment{Template: views.TplTrace, Data: views.Trace(res)}
}

// Chat returns the user message followed by the assistant reply. An empty
// message renders nothing.
func (c *Controller) Chat(ctx context.Context, prompt string) *Fragment {
	prompt, err := backend.ValidateChatMessage(prompt)
	if err != nil {
		return nil
	}
	msgs := []views.ChatMessage{views.Chat(views.SenderUser, prompt, c.now())}

	reply := MsgChatFailed
	res, err := c.backend.SmartAdvice(ctx, prompt)
	var appErr *backend.ApplicationError
	switch {
	case err == nil:
		reply = res.Advice
	case errors.As(err, &appErr):
		reply = appErr.Message
	default:
		c.logger.Log("msg", "chat failed", "err", err)
	}
	msgs = append(msgs, views.Chat(views.SenderAI, reply, c.now()))
	return &Fragment{Template: views.TplChat, Data: msgs}
}

// Weather loads the forecast. A refresh always raises the info toast, like
// the refresh button did.
func (c *Controller) Weather(ctx context.Context, refresh bool) *Fragment {
	if refresh {
		defer c.notifier.Notify(model.SeverityInfo, MsgWeatherRefreshed)
	}
	res, err := c.backend.WeatherForecast(ctx)
	if err != nil {
		return c.quiet(backend.OpWeatherForecast, err)
	}
	return &Fragment{Template: views.TplWeather, Data: views.Weather(res)}
}

func (c *Controller) Progress(ctx context.Context) *Fragment {
	res, err := c.backend.UserProgress(ctx, c.user)
	if err != nil {
		return c.quiet(backend.OpUserProgress, err)
	}
	return &Fragment{Template: views.TplProgress, Data: views.Progress(res)}
}

func (c *Controller) Analytics(ctx context.Context) *Fragment {
	res, err := c.backend.Analytics(ctx)
	if err != nil {
		return c.quiet(backend.OpAnalytics, err)
	}
	return &Fragment{Template: views.TplAnalytics, Data: views.Analytics(res)}
}

// Live renders the current feed snapshot. Alerts older than AlertVisibility
// are hidden, the count still reports every active alert.
func (c *Controller) Live() views.LiveView {
	return LiveView(c.feed.Snapshot(), c.now())
}

// LiveView converts a snapshot for the live panel template.
func LiveView(snap *Snapshot, now time.Time) views.LiveView {
	return views.LiveView{
		Connected:   snap.Connected,
		Temperature: snap.Display.Temperature,
		Moisture:    snap.Display.Moisture,
		PH:          snap.Display.PH,
		Alerts:      snap.Alerts.Visible(now),
		AlertCount:  snap.Alerts.Count,
	}
}

func (c *Controller) Charts() Charts {
	return c.feed.Snapshot().Charts
}

func (c *Controller) Notifications() []model.Notification {
	return c.notifier.Active()
}

func (c *Controller) SensorSummary() SensorSummary {
	return c.history.Summary()
}

func (c *Controller) Page() views.PageView {
	return views.PageView{
		User:    c.user,
		Version: version.Version,
		Live:    c.Live(),
	}
}

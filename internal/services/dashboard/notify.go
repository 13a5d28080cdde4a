package dashboard

import (
	"strconv"
	"sync"
	"time"

	kitlog "github.com/go-kit/kit/log"
	"github.com/google/uuid"

	"github.com/LeonardoBeccarini/agritech_dashboard/internal/model"
)

const (
	// NotificationTTL matches the toast autohide delay.
	NotificationTTL = 5 * time.Second

	maxNotifications = 50
)

var notificationIcons = map[model.Severity]string{
	model.SeveritySuccess: "fas fa-check-circle",
	model.SeverityWarning: "fas fa-exclamation-triangle",
	model.SeverityDanger:  "fas fa-exclamation-circle",
	model.SeverityInfo:    "fas fa-info-circle",
}

func notificationIcon(sev model.Severity) string {
	if icon, ok := notificationIcons[sev]; ok {
		return icon
	}
	return notificationIcons[model.SeverityInfo]
}

// Notifier keeps the toasts raised by the controller and the feed, and fans
// each new one out to its listeners.
type Notifier struct {
	mu        sync.Mutex
	items     []model.Notification
	listeners []func(model.Notification)
	now       func() time.Time
	logger    kitlog.Logger
}

func NewNotifier(logger kitlog.Logger) *Notifier {
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}
	return &Notifier{
		now:    time.Now,
		logger: kitlog.With(logger, "module", "notifier"),
	}
}

// Listen registers fn to be called, outside of the notifier lock, for every
// notification raised afterwards.
func (n *Notifier) Listen(fn func(model.Notification)) {
	n.mu.Lock()
	n.listeners = append(n.listeners, fn)
	n.mu.Unlock()
}

// Notify raises a plain toast.
func (n *Notifier) Notify(sev model.Severity, message string) model.Notification {
	return n.push(model.Notification{
		Type:    sev,
		Title:   "Notification",
		Icon:    notificationIcon(sev),
		Message: message,
	})
}

// Achievement raises the toast shown when points are awarded.
func (n *Notifier) Achievement(icon, title, description string, points int) model.Notification {
	return n.push(model.Notification{
		Type:    model.SeveritySuccess,
		Title:   "Achievement Unlocked!",
		Icon:    icon,
		Message: title,
		Detail:  description,
		Badge:   "+" + strconv.Itoa(points) + " XP",
	})
}

func (n *Notifier) LevelUp() model.Notification {
	return n.push(model.Notification{
		Type:    model.SeverityWarning,
		Title:   "Level Up!",
		Icon:    "fas fa-medal",
		Message: "Congratulations!",
		Detail:  "You've reached a new farmer level!",
	})
}

func (n *Notifier) push(item model.Notification) model.Notification {
	item.ID = uuid.New().String()

	n.mu.Lock()
	item.Created = n.now()
	n.items = append(n.items, item)
	if len(n.items) > maxNotifications {
		n.items = append([]model.Notification(nil), n.items[len(n.items)-maxNotifications:]...)
	}
	listeners := make([]func(model.Notification), len(n.listeners))
	copy(listeners, n.listeners)
	n.mu.Unlock()

	notificationsRaised.WithLabelValues(string(item.Type)).Inc()
	n.logger.Log("msg", "notification", "type", item.Type, "title", item.Title, "message", item.Message)
	for _, fn := range listeners {
		fn(item)
	}
	return item
}

// Active returns the toasts that have not yet been hidden, oldest first, and
// forgets the expired ones.
func (n *Notifier) Active() []model.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	kept := n.items[:0]
	for _, item := range n.items {
		if !item.Expired(now, NotificationTTL) {
			kept = append(kept, item)
		}
	}
	n.items = kept
	return append([]model.Notification(nil), kept...)
}

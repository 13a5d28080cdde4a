package dashboard

import (
	"time"

	"github.com/LeonardoBeccarini/agritech_dashboard/internal/model"
	"github.com/LeonardoBeccarini/agritech_dashboard/internal/services/dashboard/views"
)

const (
	lowMoistureThreshold = 30.0
	highTempThreshold    = 35.0
	phLowerBound         = 6.0
	phUpperBound         = 7.5
	highHumidityThresh   = 90.0

	// AlertVisibility is how long a rendered alert list stays on screen.
	AlertVisibility = 15 * time.Second
)

// DeriveAlerts evaluates the threshold rules against r. Rules are independent
// and the result keeps rule order: moisture, temperature, pH, humidity.
func DeriveAlerts(r model.SensorReading) []model.Alert {
	alerts := []model.Alert{}

	if r.SoilMoisture < lowMoistureThreshold {
		alerts = append(alerts, model.Alert{
			Severity: model.SeverityWarning,
			Title:    "Low Soil Moisture",
			Message:  "Soil moisture is at " + views.Percent(r.SoilMoisture) + ". Irrigation recommended.",
			Icon:     "fas fa-tint",
		})
	}
	if r.AmbientTemperature > highTempThreshold {
		alerts = append(alerts, model.Alert{
			Severity: model.SeverityDanger,
			Title:    "High Temperature Alert",
			Message:  "Temperature is " + views.Temperature(r.AmbientTemperature) + ". Monitor crop stress levels.",
			Icon:     "fas fa-thermometer-full",
		})
	}
	if r.SoilPH < phLowerBound || r.SoilPH > phUpperBound {
		alerts = append(alerts, model.Alert{
			Severity: model.SeverityInfo,
			Title:    "pH Alert",
			Message:  "Soil pH is " + views.PH(r.SoilPH) + ". Consider soil amendment.",
			Icon:     "fas fa-flask",
		})
	}
	if r.Humidity > highHumidityThresh {
		alerts = append(alerts, model.Alert{
			Severity: model.SeverityWarning,
			Title:    "High Humidity",
			Message:  "Humidity is " + views.Percent(r.Humidity) + ". Risk of fungal diseases.",
			Icon:     "fas fa-cloud",
		})
	}
	return alerts
}

// AlertPanel is the rendered alert list of one reading. Count always equals
// the list length; the list itself is only shown until HiddenAt.
type AlertPanel struct {
	Alerts     []model.Alert `json:"alerts"`
	Count      int           `json:"count"`
	RenderedAt time.Time     `json:"rendered_at"`
	HiddenAt   time.Time     `json:"hidden_at"`
}

func newAlertPanel(alerts []model.Alert, now time.Time) AlertPanel {
	return AlertPanel{
		Alerts:     alerts,
		Count:      len(alerts),
		RenderedAt: now,
		HiddenAt:   now.Add(AlertVisibility),
	}
}

// Visible returns the alerts still on screen at now. Dismissal is a timer
// effect: conditions are not re-checked.
func (p AlertPanel) Visible(now time.Time) []model.Alert {
	if len(p.Alerts) == 0 || !now.Before(p.HiddenAt) {
		return nil
	}
	return p.Alerts
}

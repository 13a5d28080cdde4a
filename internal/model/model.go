package model

import (
	"github.com/LeonardoBeccarini/agritech_dashboard/internal/model/entities"
	"github.com/LeonardoBeccarini/agritech_dashboard/internal/model/messages"
)

// Alias per esporre tipi comuni ai servizi

type (
	SensorReading = messages.SensorReading
	NPKLevels     = messages.NPKLevels
	Alert         = entities.Alert
	Notification  = entities.Notification
	Severity      = entities.Severity
)

const (
	SeverityInfo    = entities.SeverityInfo
	SeverityWarning = entities.SeverityWarning
	SeverityDanger  = entities.SeverityDanger
	SeveritySuccess = entities.SeveritySuccess
)

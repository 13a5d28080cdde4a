package views

import (
	"strings"
	"time"

	"github.com/LeonardoBeccarini/agritech_dashboard/internal/model"
	"github.com/LeonardoBeccarini/agritech_dashboard/internal/services/dashboard/backend"
)

// ChatTimeLayout stamps chat messages.
const ChatTimeLayout = "15:04:05"

// ErrorView replaces a result region with the {error} text.
type ErrorView struct {
	Message string
}

type YieldView struct {
	Class          model.Severity
	PredictedYield string
	Category       string
	Confidence     string
	Advice         []string
}

func Yield(p *backend.YieldPrediction) YieldView {
	v := YieldView{
		Class:          categoryClass(p.YieldCategory),
		PredictedYield: p.PredictedYield,
		Category:       p.YieldCategory,
		Confidence:     "N/A",
		Advice:         AdviceList(p.SmartAdvice),
	}
	if p.ConfidenceScore != nil {
		v.Confidence = Fixed1(*p.ConfidenceScore) + "%"
	}
	return v
}

func categoryClass(category string) model.Severity {
	switch category {
	case "High":
		return model.SeveritySuccess
	case "Medium":
		return model.SeverityWarning
	}
	return model.SeverityInfo
}

type CropChoice struct {
	Crop       string
	Confidence string
}

type CropView struct {
	Crops  []CropChoice
	Advice []string
}

func Crops(r *backend.CropRecommendation) CropView {
	v := CropView{Advice: AdviceList(r.SmartAdvice)}
	for _, c := range r.Recommendations {
		v.Crops = append(v.Crops, CropChoice{Crop: c.Crop, Confidence: Fixed1(c.Confidence * 100)})
	}
	return v
}

type RiskIndicator struct {
	Name  string
	Icon  string
	Color string
	Value string
}

type ClimateView struct {
	Class      model.Severity
	Level      string
	Score      string
	Indicators []RiskIndicator
	Strategies []string
}

func Climate(a *backend.ClimateAssessment) ClimateView {
	class := model.SeveritySuccess
	switch a.RiskLevel {
	case "High":
		class = model.SeverityDanger
	case "Medium":
		class = model.SeverityWarning
	}
	risks := a.ClimateRisks
	return ClimateView{
		Class: class,
		Level: a.RiskLevel,
		Score: Fixed1(risks.OverallRiskScore),
		Indicators: []RiskIndicator{
			{Name: "Drought Risk", Icon: "fas fa-sun", Color: "#FF9800", Value: Fixed1(risks.DroughtRisk)},
			{Name: "Heat Stress", Icon: "fas fa-thermometer-full", Color: "#F44336", Value: Fixed1(risks.HeatStressRisk)},
			{Name: "Flood Risk", Icon: "fas fa-tint", Color: "#2196F3", Value: Fixed1(risks.FloodRisk)},
			{Name: "Pest/Disease", Icon: "fas fa-bug", Color: "#4CAF50", Value: Fixed1(risks.PestDiseaseRisk)},
		},
		Strategies: AdviceList(a.AIRecommendations),
	}
}

type HealthView struct {
	Class             model.Severity
	Score             string
	DiseaseClass      model.Severity
	DiseaseDetected   bool
	DiseaseConfidence string
	DiseaseType       string
	Green             string
	Yellow            string
	Brown             string
	Stress            []string
	Treatment         []string
	Recommendations   []string
}

func Health(h *backend.CropHealth) HealthView {
	v := HealthView{
		Class:             model.SeverityDanger,
		Score:             Plain(h.HealthScore),
		DiseaseClass:      model.SeveritySuccess,
		DiseaseDetected:   h.DiseaseDetected,
		DiseaseConfidence: Fixed1(h.DiseaseConfidence),
		DiseaseType:       h.DiseaseType,
		Green:             Fixed1(h.ColorAnalysis.GreenPercentage),
		Yellow:            Fixed1(h.ColorAnalysis.YellowPercentage),
		Brown:             Fixed1(h.ColorAnalysis.BrownPercentage),
		Stress:            h.StressIndicators,
		Treatment:         AdviceList(strings.Join(h.TreatmentSuggestions, "\n")),
		Recommendations:   AdviceList(strings.Join(h.Recommendations, "\n")),
	}
	switch {
	case h.HealthScore >= 80:
		v.Class = model.SeveritySuccess
	case h.HealthScore >= 60:
		v.Class = model.SeverityWarning
	}
	if h.DiseaseDetected {
		v.DiseaseClass = model.SeverityDanger
	}
	if v.DiseaseType == "" {
		v.DiseaseType = "N/A"
	}
	return v
}

type RecordView struct {
	RecordID   int
	HashPrefix string
	QRCode     string
}

func Record(r *backend.CropRecordReceipt) RecordView {
	prefix := r.Hash
	if len(prefix) > 16 {
		prefix = prefix[:16]
	}
	return RecordView{RecordID: r.RecordID, HashPrefix: prefix + "...", QRCode: r.QRCodeData}
}

type StageView struct {
	Name        string
	Icon        string
	Date        string
	Details     string
	Status      string
	StatusClass string
	Color       string
}

type TraceView struct {
	Farmer   string
	Crop     string
	Location string
	Area     string
	Carbon   string
	Water    string
	Score    string
	Stages   []StageView
}

var stageIcons = map[string]string{
	"Seed Preparation":        "seedling",
	"Planting":                "leaf",
	"Growing Phase":           "tree",
	"Pre-Harvest Inspection":  "search",
	"Harvest":                 "cut",
	"Post-Harvest Processing": "cogs",
	"Quality Certification":   "certificate",
	"Distribution":            "truck",
}

var statusColors = map[string]string{
	"completed":   "success",
	"in progress": "primary",
	"pending":     "warning",
	"in transit":  "info",
}

// StageIcon is the font awesome icon of a supply chain stage.
func StageIcon(stage string) string {
	if icon, ok := stageIcons[stage]; ok {
		return "fas fa-" + icon
	}
	return "fas fa-circle"
}

// StatusColor maps a stage status, case insensitively, to a badge colour.
func StatusColor(status string) string {
	if c, ok := statusColors[strings.ToLower(status)]; ok {
		return c
	}
	return "secondary"
}

func Trace(t *backend.CropTrace) TraceView {
	v := TraceView{
		Farmer:   t.CropRecord.FarmerName,
		Crop:     t.CropRecord.CropType,
		Location: t.CropRecord.Location,
		Area:     Fixed2(t.CropRecord.AreaHectares),
		Carbon:   Plain(t.SustainabilityMetrics.CarbonFootprint),
		Water:    Plain(t.SustainabilityMetrics.WaterUsage),
		Score:    Plain(t.SustainabilityMetrics.SustainabilityScore),
	}
	for _, s := range t.SupplyChainJourney {
		v.Stages = append(v.Stages, StageView{
			Name:        s.Stage,
			Icon:        StageIcon(s.Stage),
			Date:        s.Date,
			Details:     s.Details,
			Status:      s.Status,
			StatusClass: strings.ToLower(s.Status),
			Color:       StatusColor(s.Status),
		})
	}
	return v
}

// Chat senders.
const (
	SenderAI   = "ai"
	SenderUser = "user"
)

type ChatMessage struct {
	Sender string
	Avatar string
	Name   string
	Time   string
	Lines  []string
}

func Chat(sender, text string, at time.Time) ChatMessage {
	m := ChatMessage{
		Sender: sender,
		Avatar: "fas fa-user",
		Name:   "You",
		Time:   at.Format(ChatTimeLayout),
		Lines:  AdviceList(text),
	}
	if sender == SenderAI {
		m.Avatar = "fas fa-robot"
		m.Name = "AI Assistant"
	}
	return m
}

type DayView struct {
	Name string
	Icon string
	Max  string
	Min  string
	Rain string
}

var weatherIcons = map[string]string{
	"sunny":         "fas fa-sun text-warning",
	"partly_cloudy": "fas fa-cloud-sun text-info",
	"cloudy":        "fas fa-cloud text-secondary",
	"rainy":         "fas fa-cloud-rain text-primary",
	"thunderstorm":  "fas fa-bolt text-danger",
}

func WeatherIcon(condition string) string {
	if icon, ok := weatherIcons[condition]; ok {
		return icon
	}
	return "fas fa-cloud text-secondary"
}

func Weather(f *backend.WeatherForecast) []DayView {
	days := make([]DayView, 0, len(f.Forecast))
	for _, d := range f.Forecast {
		days = append(days, DayView{
			Name: d.DayName,
			Icon: WeatherIcon(d.WeatherCondition),
			Max:  Plain(d.TemperatureMax),
			Min:  Plain(d.TemperatureMin),
			Rain: Plain(d.RainfallProbability),
		})
	}
	return days
}

type ProgressView struct {
	Level        int
	Title        string
	Percent      string
	Points       string
	Achievements []backend.Achievement
	Badges       []backend.Badge
}

func Progress(p *backend.UserProgress) ProgressView {
	return ProgressView{
		Level:        p.Level,
		Title:        p.LevelTitle,
		Percent:      Plain(p.ProgressPercentage),
		Points:       itoa(p.Points) + "/" + itoa(p.NextLevelPoints) + " XP",
		Achievements: p.AchievementsEarned,
		Badges:       p.Badges,
	}
}

type AnalyticsView struct {
	TotalPredictions string
	ActiveFarms      string
	YieldImprovement string
	CarbonSaved      string
	WaterSaved       string
	AreaMonitored    string
	Trending         []backend.TrendingCrop
	Regions          []backend.RegionalPerformance
}

func Analytics(a *backend.Analytics) AnalyticsView {
	s := a.CurrentStats
	return AnalyticsView{
		TotalPredictions: itoa(s.TotalPredictions),
		ActiveFarms:      itoa(s.ActiveFarms),
		YieldImprovement: Fixed1(s.AvgYieldImprovement) + "%",
		CarbonSaved:      Plain(s.CarbonSaved),
		WaterSaved:       Plain(s.WaterSaved),
		AreaMonitored:    Plain(s.TotalAreaMonitored),
		Trending:         a.TrendingCrops,
		Regions:          a.RegionalPerformance,
	}
}

// LiveView is the metric cards and alert list of the live feed.
type LiveView struct {
	Connected   bool
	Temperature string
	Moisture    string
	PH          string
	Alerts      []model.Alert
	AlertCount  int
}

// PageView is the initial state of the page shell.
type PageView struct {
	User    string
	Version string
	Live    LiveView
}

package backend

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// Form is a submitted HTML form forwarded as a flat JSON object of strings.
type Form map[string]string

// YieldPrediction is the body of POST /predict_yield.
type YieldPrediction struct {
	PredictedYield  string   `json:"predicted_yield"`
	YieldCategory   string   `json:"yield_category"`
	ConfidenceScore *float64 `json:"confidence_score"`
	SmartAdvice     string   `json:"smart_advice"`
}

func (YieldPrediction) required() []string {
	return []string{"predicted_yield", "yield_category"}
}

// CropScore is one [crop, confidence] pair.
type CropScore struct {
	Crop       string
	Confidence float64
}

func (c *CropScore) UnmarshalJSON(b []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return errors.Errorf("expected [crop, confidence], got %d elements", len(pair))
	}
	if err := json.Unmarshal(pair[0], &c.Crop); err != nil {
		return errors.Wrap(err, "crop name")
	}
	if err := json.Unmarshal(pair[1], &c.Confidence); err != nil {
		return errors.Wrap(err, "crop confidence")
	}
	return nil
}

func (c CropScore) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{c.Crop, c.Confidence})
}

// CropRecommendation is the body of POST /recommend_crop.
type CropRecommendation struct {
	Recommendations []CropScore `json:"recommendations"`
	SmartAdvice     string      `json:"smart_advice"`
}

func (CropRecommendation) required() []string {
	return []string{"recommendations"}
}

type ClimateRisks struct {
	DroughtRisk      float64 `json:"drought_risk"`
	HeatStressRisk   float64 `json:"heat_stress_risk"`
	FloodRisk        float64 `json:"flood_risk"`
	PestDiseaseRisk  float64 `json:"pest_disease_risk"`
	ExtremeWeather   float64 `json:"extreme_weather_risk"`
	OverallRiskScore float64 `json:"overall_risk_score"`
}

// ClimateAssessment is the body of POST /climate-risk-assessment.
type ClimateAssessment struct {
	RiskLevel            string       `json:"risk_level"`
	ClimateRisks         ClimateRisks `json:"climate_risks"`
	AIRecommendations    string       `json:"ai_recommendations"`
	AdaptationStrategies []string     `json:"adaptation_strategies"`
	MitigationPriority   []string     `json:"mitigation_priority"`
}

func (ClimateAssessment) required() []string {
	return []string{
		"risk_level",
		"climate_risks.drought_risk",
		"climate_risks.heat_stress_risk",
		"climate_risks.flood_risk",
		"climate_risks.pest_disease_risk",
		"climate_risks.overall_risk_score",
	}
}

type ColorAnalysis struct {
	GreenPercentage     float64 `json:"green_percentage"`
	YellowPercentage    float64 `json:"yellow_percentage"`
	BrownPercentage     float64 `json:"brown_percentage"`
	DarkSpotsPercentage float64 `json:"dark_spots_percentage"`
}

// CropHealth is the body of POST /crop-health-analysis.
type CropHealth struct {
	HealthScore          float64       `json:"health_score"`
	DiseaseDetected      bool          `json:"disease_detected"`
	DiseaseConfidence    float64       `json:"disease_confidence"`
	DiseaseType          string        `json:"disease_type"`
	ColorAnalysis        ColorAnalysis `json:"color_analysis"`
	LeafCoverage         float64       `json:"leaf_coverage"`
	StressIndicators     []string      `json:"stress_indicators"`
	TreatmentSuggestions []string      `json:"treatment_suggestions"`
	Recommendations      []string      `json:"recommendations"`
}

func (CropHealth) required() []string {
	return []string{
		"health_score",
		"disease_detected",
		"disease_confidence",
		"color_analysis.green_percentage",
		"color_analysis.yellow_percentage",
		"color_analysis.brown_percentage",
		"stress_indicators",
		"treatment_suggestions",
		"recommendations",
	}
}

// CropRecordReceipt is the body of POST /api/create-crop-record.
type CropRecordReceipt struct {
	RecordID           int    `json:"record_id"`
	Hash               string `json:"hash"`
	QRCodeData         string `json:"qr_code_data"`
	BlockchainVerified bool   `json:"blockchain_verified"`
}

func (CropRecordReceipt) required() []string {
	return []string{"record_id", "hash", "qr_code_data"}
}

type CropRecord struct {
	ID             int      `json:"id"`
	FarmerName     string   `json:"farmer_name"`
	CropType       string   `json:"crop_type"`
	Variety        string   `json:"variety"`
	Location       string   `json:"location"`
	AreaHectares   float64  `json:"area_hectares"`
	PlantingDate   string   `json:"planting_date"`
	Certifications []string `json:"certifications"`
}

type SustainabilityMetrics struct {
	CarbonFootprint     float64 `json:"carbon_footprint"`
	WaterUsage          float64 `json:"water_usage"`
	SustainabilityScore float64 `json:"sustainability_score"`
	OrganicCertified    bool    `json:"organic_certified"`
	LocalSourced        bool    `json:"local_sourced"`
}

type JourneyStage struct {
	Stage    string `json:"stage"`
	Date     string `json:"date"`
	Location string `json:"location"`
	Details  string `json:"details"`
	Status   string `json:"status"`
}

// CropTrace is the body of GET /api/trace-crop/{id}.
type CropTrace struct {
	CropRecord            CropRecord            `json:"crop_record"`
	SustainabilityMetrics SustainabilityMetrics `json:"sustainability_metrics"`
	SupplyChainJourney    []JourneyStage        `json:"supply_chain_journey"`
	VerificationStatus    string                `json:"verification_status"`
	BlockchainHash        string                `json:"blockchain_hash"`
}

func (CropTrace) required() []string {
	return []string{
		"crop_record.farmer_name",
		"crop_record.crop_type",
		"crop_record.location",
		"crop_record.area_hectares",
		"sustainability_metrics.carbon_footprint",
		"sustainability_metrics.water_usage",
		"sustainability_metrics.sustainability_score",
		"supply_chain_journey",
	}
}

// Advice is the body of POST /smart_advice.
type Advice struct {
	Advice string `json:"advice"`
}

func (Advice) required() []string {
	return []string{"advice"}
}

type ForecastDay struct {
	Date                string  `json:"date"`
	DayName             string  `json:"day_name"`
	WeatherCondition    string  `json:"weather_condition"`
	TemperatureMax      float64 `json:"temperature_max"`
	TemperatureMin      float64 `json:"temperature_min"`
	RainfallProbability float64 `json:"rainfall_probability"`
	FarmingAdvisory     string  `json:"farming_advisory"`
}

// WeatherForecast is the body of GET /api/weather-forecast.
type WeatherForecast struct {
	Forecast    []ForecastDay `json:"forecast"`
	Location    string        `json:"location"`
	LastUpdated string        `json:"last_updated"`
}

func (WeatherForecast) required() []string {
	return []string{"forecast"}
}

type Achievement struct {
	Points      int    `json:"points"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type Badge struct {
	Name  string `json:"name"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

// UserProgress is the body of GET /api/user-progress.
type UserProgress struct {
	Level              int           `json:"level"`
	LevelTitle         string        `json:"level_title"`
	ProgressPercentage float64       `json:"progress_percentage"`
	Points             int           `json:"points"`
	NextLevelPoints    int           `json:"next_level_points"`
	AchievementsEarned []Achievement `json:"achievements_earned"`
	TotalAchievements  int           `json:"total_achievements"`
	Badges             []Badge       `json:"badges"`
}

func (UserProgress) required() []string {
	return []string{"level", "level_title", "progress_percentage", "points", "next_level_points", "achievements_earned"}
}

// AwardResult is the body of POST /api/award-points. A refused award has
// Success false and a Message.
type AwardResult struct {
	Success       bool         `json:"success"`
	Achievement   *Achievement `json:"achievement"`
	PointsAwarded int          `json:"points_awarded"`
	TotalPoints   int          `json:"total_points"`
	LevelUp       bool         `json:"level_up"`
	Message       string       `json:"message"`
}

func (AwardResult) required() []string {
	return []string{"success"}
}

func (a AwardResult) validate() error {
	if a.Success && a.Achievement == nil {
		return errors.New("successful award without achievement")
	}
	return nil
}

type AnalyticsStats struct {
	TotalPredictions    int     `json:"total_predictions"`
	ActiveFarms         int     `json:"active_farms"`
	AvgYieldImprovement float64 `json:"avg_yield_improvement"`
	CarbonSaved         float64 `json:"carbon_saved"`
	WaterSaved          float64 `json:"water_saved"`
	TotalAreaMonitored  float64 `json:"total_area_monitored"`
}

type TrendingCrop struct {
	Crop        string  `json:"crop"`
	Predictions int     `json:"predictions"`
	AvgYield    float64 `json:"avg_yield"`
}

type RegionalPerformance struct {
	State        string  `json:"state"`
	YieldIndex   float64 `json:"yield_index"`
	AdoptionRate float64 `json:"adoption_rate"`
}

// Analytics is the body of GET /api/analytics-dashboard.
type Analytics struct {
	CurrentStats        AnalyticsStats        `json:"current_stats"`
	TrendingCrops       []TrendingCrop        `json:"trending_crops"`
	RegionalPerformance []RegionalPerformance `json:"regional_performance"`
}

func (Analytics) required() []string {
	return []string{"current_stats", "trending_crops"}
}

// response is implemented by every typed body.
type response interface {
	required() []string
}

type validator interface {
	validate() error
}

// decodeResponse checks the required dotted paths of out on the raw body,
// then decodes it.
func decodeResponse(body []byte, out response) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return errors.Wrap(err, "body is not a JSON object")
	}
	var missing []string
	for _, path := range out.required() {
		if !hasPath(raw, path) {
			missing = append(missing, path)
		}
	}
	if len(missing) > 0 {
		return errors.Errorf("missing %s", strings.Join(missing, ", "))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "unexpected field type")
	}
	if v, ok := out.(validator); ok {
		return v.validate()
	}
	return nil
}

func hasPath(obj map[string]json.RawMessage, path string) bool {
	head, rest, nested := strings.Cut(path, ".")
	v, ok := obj[head]
	if !ok || string(v) == "null" {
		return false
	}
	if !nested {
		return true
	}
	var child map[string]json.RawMessage
	if err := json.Unmarshal(v, &child); err != nil {
		return false
	}
	return hasPath(child, rest)
}

// applicationError extracts a non-empty {error} message, if any.
func applicationError(body []byte) (string, bool) {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return "", false
	}
	return e.Error, e.Error != ""
}

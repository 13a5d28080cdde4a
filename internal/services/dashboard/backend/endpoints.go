package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// Operation names, also used as breaker names and metric labels.
const (
	OpPredictYield    = "predict_yield"
	OpRecommendCrop   = "recommend_crop"
	OpClimateRisk     = "climate_risk"
	OpCropHealth      = "crop_health"
	OpCreateRecord    = "create_crop_record"
	OpTraceCrop       = "trace_crop"
	OpSmartAdvice     = "smart_advice"
	OpWeatherForecast = "weather_forecast"
	OpUserProgress    = "user_progress"
	OpAwardPoints     = "award_points"
	OpAnalytics       = "analytics"
)

// Award actions sent to /api/award-points.
const (
	ActionFirstPrediction  = "first_prediction"
	ActionClimateWarrior   = "climate_warrior"
	ActionTechPioneer      = "tech_pioneer"
	ActionBlockchainFarmer = "blockchain_farmer"
)

func (c *Client) PredictYield(ctx context.Context, form Form) (*YieldPrediction, error) {
	var out YieldPrediction
	if err := c.postJSON(ctx, OpPredictYield, "/predict_yield", form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RecommendCrop(ctx context.Context, form Form) (*CropRecommendation, error) {
	var out CropRecommendation
	if err := c.postJSON(ctx, OpRecommendCrop, "/recommend_crop", form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AssessClimateRisk(ctx context.Context, form Form) (*ClimateAssessment, error) {
	var out ClimateAssessment
	if err := c.postJSON(ctx, OpClimateRisk, "/climate-risk-assessment", form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AnalyzeCropHealth uploads an image that already passed ValidateUpload.
func (c *Client) AnalyzeCropHealth(ctx context.Context, img *Upload) (*CropHealth, error) {
	body, contentType, err := img.multipartBody("image")
	if err != nil {
		return nil, err
	}
	var out CropHealth
	if err := c.do(ctx, OpCropHealth, http.MethodPost, "/crop-health-analysis", contentType, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateCropRecord(ctx context.Context, form Form) (*CropRecordReceipt, error) {
	var out CropRecordReceipt
	if err := c.postJSON(ctx, OpCreateRecord, "/api/create-crop-record", form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) TraceCrop(ctx context.Context, recordID int) (*CropTrace, error) {
	var out CropTrace
	if err := c.getJSON(ctx, OpTraceCrop, "/api/trace-crop/"+strconv.Itoa(recordID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SmartAdvice(ctx context.Context, prompt string) (*Advice, error) {
	var out Advice
	in := map[string]string{"prompt": prompt}
	if err := c.postJSON(ctx, OpSmartAdvice, "/smart_advice", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) WeatherForecast(ctx context.Context) (*WeatherForecast, error) {
	var out WeatherForecast
	if err := c.getJSON(ctx, OpWeatherForecast, "/api/weather-forecast", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UserProgress(ctx context.Context, user string) (*UserProgress, error) {
	var out UserProgress
	path := "/api/user-progress?user=" + url.QueryEscape(user)
	if err := c.getJSON(ctx, OpUserProgress, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AwardPoints(ctx context.Context, user, action string) (*AwardResult, error) {
	var out AwardResult
	in := map[string]string{"action": action, "user": user}
	if err := c.postJSON(ctx, OpAwardPoints, "/api/award-points", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Analytics(ctx context.Context) (*Analytics, error) {
	var out Analytics
	if err := c.getJSON(ctx, OpAnalytics, "/api/analytics-dashboard", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

package views_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/LeonardoBeccarini/agritech_dashboard/internal/services/dashboard/views"
)

func TestFixed1(t *testing.T) {
	testcases := []struct {
		in       float64
		expected string
	}{
		{21.96, "22.0"},
		{21.94, "21.9"},
		{21.95, "22.0"},
		{2.25, "2.3"},
		{0.05, "0.1"},
		{1.15, "1.2"},
		{7, "7.0"},
		{6.5, "6.5"},
		{99.99, "100.0"},
		{-3.25, "-3.3"},
		{-3.24, "-3.2"},
		{0, "0.0"},
	}

	for _, tc := range testcases {
		assert.Equal(t, tc.expected, views.Fixed1(tc.in), "input %v", tc.in)
	}
}

func TestDisplayFormats(t *testing.T) {
	assert.Equal(t, "22.0°C", views.Temperature(21.96))
	assert.Equal(t, "21.9°C", views.Temperature(21.94))
	assert.Equal(t, "42.5%", views.Percent(42.5))
	assert.Equal(t, "6.8", views.PH(6.8))
	assert.Equal(t, "2.50", views.Fixed2(2.5))
	assert.Equal(t, "1.37", views.Plain(1.37))
	assert.Equal(t, "450", views.Plain(450))
}

func TestAdviceList(t *testing.T) {
	got := views.AdviceList("• Water early\n\n   \n  • Mulch beds  \n")
	assert.Equal(t, []string{"• Water early", "• Mulch beds"}, got)
	assert.Empty(t, views.AdviceList(""))
}

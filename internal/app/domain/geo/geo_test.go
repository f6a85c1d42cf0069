package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineSamePoint(t *testing.T) {
	d := Haversine(21.0285, 105.8542, 21.0285, 105.8542)
	assert.Equal(t, 0.0, d)
}

func TestHaversineKnownDistance(t *testing.T) {
	// Hanoi to Ho Chi Minh City, roughly 1140 km great-circle.
	d := Haversine(21.0285, 105.8542, 10.8231, 106.6297)
	assert.Greater(t, d, 1100.0)
	assert.Less(t, d, 1180.0)
}

func TestHaversineSymmetricAndBounded(t *testing.T) {
	ab := Haversine(48.8566, 2.3522, 51.5074, -0.1278)
	ba := Haversine(51.5074, -0.1278, 48.8566, 2.3522)
	assert.InDelta(t, ab, ba, 1e-9)
	assert.GreaterOrEqual(t, ab, 0.0)

	antipodal := Haversine(0, 0, 0, 180)
	assert.LessOrEqual(t, antipodal, math.Pi*EarthRadiusKm+1e-6)
}

func TestTravelTimeMin(t *testing.T) {
	tests := []struct {
		name       string
		distanceKm float64
		mode       string
		rushHour   bool
		want       int
	}{
		{"walk 1km", 1, ModeWalk, false, 25},
		{"walk zero distance keeps base buffer", 0, ModeWalk, false, 10},
		{"taxi off peak", 6, ModeTaxi, false, 27},
		{"taxi rush hour slows down", 6, ModeTaxi, true, 30},
		{"bus keeps the base buffer only", 6, ModeBus, false, 25},
		{"metro long haul gets extra buffer", 30, ModeMetro, false, 72},
		{"unknown mode uses taxi profile", 6, "hoverboard", false, 27},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TravelTimeMin(tt.distanceKm, tt.mode, tt.rushHour)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got, 5)
		})
	}
}

func TestTravelTimeRushHourOnlyAffectsStreetTraffic(t *testing.T) {
	assert.Equal(t,
		TravelTimeMin(6, ModeBus, false),
		TravelTimeMin(6, ModeBus, true),
	)
	assert.Equal(t,
		TravelTimeMin(6, ModeMetro, false),
		TravelTimeMin(6, ModeMetro, true),
	)
}

func TestTransportCost(t *testing.T) {
	tests := []struct {
		name       string
		distanceKm float64
		mode       string
		want       float64
	}{
		{"walking is free", 3, ModeWalk, 0},
		{"bike flat rental", 10, ModeBike, 2},
		{"taxi per km", 10, ModeTaxi, 12.0},
		{"short metered ride hits minimum fare", 0.5, ModeTaxi, 1.0},
		{"metro short hop floors at one dollar", 2, ModeMetro, 1.0},
		{"bus per km", 10, ModeBus, 3.0},
		{"cost rounded to one decimal", 1.234, ModeTaxi, 1.5},
		{"unknown mode priced as taxi", 10, "rickshaw", 12.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TransportCost(tt.distanceKm, tt.mode))
		})
	}
}

func TestIsRushHour(t *testing.T) {
	for _, h := range []int{7, 8, 17, 18, 19} {
		assert.True(t, IsRushHour(h), "hour %d", h)
	}
	for _, h := range []int{0, 6, 9, 12, 16, 20, 23} {
		assert.False(t, IsRushHour(h), "hour %d", h)
	}
}

func TestDefaultDistanceKm(t *testing.T) {
	assert.Equal(t, 1.0, DefaultDistanceKm(ModeWalk))
	assert.Equal(t, 3.0, DefaultDistanceKm(ModeBike))
	assert.Equal(t, 5.0, DefaultDistanceKm(ModeTaxi))
	assert.Equal(t, 8.0, DefaultDistanceKm(ModeMetro))
	assert.Equal(t, 5.0, DefaultDistanceKm("gondola"))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "walking", DisplayName(ModeWalk))
	assert.Equal(t, "bicycle", DisplayName(ModeBike))
	assert.Equal(t, "motorbike", DisplayName(ModeScooter))
	assert.Equal(t, "metro", DisplayName(ModeMetro))
	// catalog tags pass through untouched
	assert.Equal(t, "River Ferry", DisplayName("River Ferry"))
}

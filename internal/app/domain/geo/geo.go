// Package geo is the deterministic distance/time/cost layer. Every number
// the final schedule reports for a transfer comes from here, never from the
// LLM draft.
package geo

import (
	"math"
)

// EarthRadiusKm is the sphere radius used by Haversine.
const EarthRadiusKm = 6371.0

// Canonical transport modes. Catalog mode tags outside this set are priced
// and timed with the taxi profile.
const (
	ModeWalk    = "walk"
	ModeBike    = "bike"
	ModeScooter = "scooter"
	ModeTaxi    = "taxi"
	ModeBus     = "bus"
	ModeMetro   = "metro"
	ModeCar     = "car"
)

// speeds in km/h per mode.
var baseSpeedKmh = map[string]float64{
	ModeWalk:    4,
	ModeBike:    12,
	ModeScooter: 25,
	ModeTaxi:    30,
	ModeBus:     25,
	ModeMetro:   35,
	ModeCar:     30,
}

// per-km fares; walk and bike are handled separately.
var perKmCost = map[string]float64{
	ModeScooter: 0.5,
	ModeTaxi:    1.2,
	ModeBus:     0.3,
	ModeMetro:   0.4,
	ModeCar:     1.0,
}

// modes slowed by street congestion during rush hours.
var rushSensitive = map[string]bool{
	ModeScooter: true,
	ModeTaxi:    true,
	ModeCar:     true,
}

// fallback distance when either endpoint has no coordinates.
var defaultDistanceKm = map[string]float64{
	ModeWalk:    1,
	ModeBike:    3,
	ModeScooter: 5,
	ModeTaxi:    5,
	ModeBus:     8,
	ModeMetro:   8,
}

var displayName = map[string]string{
	ModeWalk:    "walking",
	ModeBike:    "bicycle",
	ModeScooter: "motorbike",
	ModeTaxi:    "taxi",
	ModeBus:     "bus",
	ModeMetro:   "metro",
}

// CanonicalModes lists the modes the kernel has first-class profiles for.
var CanonicalModes = []string{ModeWalk, ModeBike, ModeScooter, ModeTaxi, ModeBus, ModeMetro, ModeCar}

// IsCanonicalMode reports whether mode is one of the kernel's profiles.
func IsCanonicalMode(mode string) bool {
	_, ok := baseSpeedKmh[mode]
	return ok
}

// Haversine returns the great-circle distance in km between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// IsRushHour reports whether the local hour falls in a commute window.
func IsRushHour(hour int) bool {
	switch hour {
	case 7, 8, 17, 18, 19:
		return true
	}
	return false
}

// TravelTimeMin estimates door-to-door minutes for a distance and mode.
// Rush hour slows motorized street traffic by 20%. A fixed buffer covers
// waiting and boarding: 10 min base, +5 for motorized street modes, +10
// more on long hauls over 20 km. The result is rounded up and never below 5.
func TravelTimeMin(distanceKm float64, mode string, rushHour bool) int {
	speed, ok := baseSpeedKmh[mode]
	if !ok {
		speed = baseSpeedKmh[ModeTaxi]
		mode = ModeTaxi
	}
	if rushHour && rushSensitive[mode] {
		speed *= 0.8
	}

	minutes := distanceKm / speed * 60

	buffer := 10.0
	if rushSensitive[mode] {
		buffer += 5
	}
	if distanceKm > 20 {
		buffer += 10
	}

	total := int(math.Ceil(minutes + buffer))
	if total < 5 {
		total = 5
	}
	return total
}

// TransportCost estimates the fare in USD for a distance and mode. Walking
// is free, bikes are a flat rental, metered modes charge per km with a $1
// minimum fare. Rounded to one decimal.
func TransportCost(distanceKm float64, mode string) float64 {
	switch mode {
	case ModeWalk:
		return 0
	case ModeBike:
		return 2
	}

	rate, ok := perKmCost[mode]
	if !ok {
		rate = perKmCost[ModeTaxi]
	}

	cost := distanceKm * rate
	if cost < 1 {
		cost = 1
	}
	return math.Round(cost*10) / 10
}

// DefaultDistanceKm is the assumed leg length when either endpoint lacks
// coordinates. Unknown modes fall back to 5 km.
func DefaultDistanceKm(mode string) float64 {
	if d, ok := defaultDistanceKm[mode]; ok {
		return d
	}
	return 5
}

// DisplayName returns the human label used for transfer place names.
func DisplayName(mode string) string {
	if n, ok := displayName[mode]; ok {
		return n
	}
	return mode
}

package models

// City is a catalog city row.
type City struct {
	ID      int    `json:"city_id"`
	Name    string `json:"name"`
	Country string `json:"country"`
}

// PlaceVariant tags the four catalog entity kinds. Components dispatch on the
// tag instead of matching free-form strings.
type PlaceVariant string

const (
	VariantHotel      PlaceVariant = "hotel"
	VariantRestaurant PlaceVariant = "restaurant"
	VariantActivity   PlaceVariant = "activity"
	VariantTransport  PlaceVariant = "transport"
)

// Place is the tagged variant over hotels, restaurants, activities and
// transports. Common fields are always set; variant fields only for the
// matching tag. Latitude/Longitude are nil when the catalog has no
// coordinates for the row.
type Place struct {
	Variant     PlaceVariant `json:"-"`
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	CityID      int          `json:"-"`
	Rating      float64      `json:"rating"`
	Description string       `json:"description,omitempty"`
	Latitude    *float64     `json:"latitude"`
	Longitude   *float64     `json:"longitude"`

	// Hotel
	PricePerNight float64 `json:"price_per_night,omitempty"`
	// Restaurant
	PriceAvg    float64 `json:"price_avg,omitempty"`
	CuisineType string  `json:"cuisine_type,omitempty"`
	// Activity
	Price      float64 `json:"price,omitempty"`
	DurationHr float64 `json:"duration_hr,omitempty"`
	Kind       string  `json:"type,omitempty"`
	// Transport
	AvgPricePerKm float64 `json:"avg_price_per_km,omitempty"`
	MinPrice      float64 `json:"min_price,omitempty"`
	MaxCapacity   int     `json:"max_capacity,omitempty"`
	Mode          string  `json:"mode,omitempty"`
}

// UnitCost returns the price the budget envelope charges for one use of the
// place: a night for hotels, an average meal for restaurants, the ticket
// price for activities.
func (p Place) UnitCost() float64 {
	switch p.Variant {
	case VariantHotel:
		return p.PricePerNight
	case VariantRestaurant:
		return p.PriceAvg
	case VariantActivity:
		return p.Price
	default:
		return 0
	}
}

// HasCoords reports whether the place carries usable coordinates.
func (p Place) HasCoords() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// Preferences holds liked/disliked identifier sets per category. Before
// resolution the transport sets may contain raw transport ids or free-form
// labels; after resolution they contain canonical mode tags only and the
// liked/disliked sets are disjoint.
type Preferences struct {
	LikedHotels            []string `json:"liked_hotels"`
	DislikedHotels         []string `json:"disliked_hotels"`
	LikedRestaurants       []string `json:"liked_restaurants"`
	DislikedRestaurants    []string `json:"disliked_restaurants"`
	LikedActivities        []string `json:"liked_activities"`
	DislikedActivities     []string `json:"disliked_activities"`
	LikedTransportModes    []string `json:"liked_transport_modes"`
	DislikedTransportModes []string `json:"disliked_transport_modes"`
}

// LikedFor returns the liked id set for a place variant.
func (p Preferences) LikedFor(v PlaceVariant) []string {
	switch v {
	case VariantHotel:
		return p.LikedHotels
	case VariantRestaurant:
		return p.LikedRestaurants
	case VariantActivity:
		return p.LikedActivities
	case VariantTransport:
		return p.LikedTransportModes
	}
	return nil
}

// DislikedFor returns the disliked id set for a place variant.
func (p Preferences) DislikedFor(v PlaceVariant) []string {
	switch v {
	case VariantHotel:
		return p.DislikedHotels
	case VariantRestaurant:
		return p.DislikedRestaurants
	case VariantActivity:
		return p.DislikedActivities
	case VariantTransport:
		return p.DislikedTransportModes
	}
	return nil
}

// TourRequest is the engine input. GuestCount, DurationDays and TargetBudget
// are nullable; when absent the similarity engine imputes them before
// candidate selection.
type TourRequest struct {
	UserID            string      `json:"user_id"`
	StartCityID       *int        `json:"start_city_id"`
	DestinationCityID int         `json:"destination_city_id"`
	GuestCount        *int        `json:"guest_count"`
	DurationDays      *int        `json:"duration_days"`
	TargetBudget      *float64    `json:"target_budget"`
	HotelIDs          []string    `json:"hotel_ids"`
	ActivityIDs       []string    `json:"activity_ids"`
	RestaurantIDs     []string    `json:"restaurant_ids"`
	TransportIDs      []string    `json:"transport_ids"`
	Preferences       Preferences `json:"user_preferences"`
}

// Guests returns the guest count or 1 when unset.
func (r TourRequest) Guests() int {
	if r.GuestCount != nil && *r.GuestCount > 0 {
		return *r.GuestCount
	}
	return 1
}

// Days returns the trip length or 1 when unset.
func (r TourRequest) Days() int {
	if r.DurationDays != nil && *r.DurationDays > 0 {
		return *r.DurationDays
	}
	return 1
}

// Budget returns the target budget or 0 when unset.
func (r TourRequest) Budget() float64 {
	if r.TargetBudget != nil {
		return *r.TargetBudget
	}
	return 0
}

// TourOption is a historical tour stored in the catalog, used for similarity
// scoring, imputation and seeding. The numeric fields mirror the nullable
// storage columns.
type TourOption struct {
	OptionID          string
	UserID            string
	StartCityID       *int
	DestinationCityID int
	GuestCount        *int
	DurationDays      *int
	TargetBudget      *float64
	Rating            *float64
	HotelIDs          []string
	ActivityIDs       []string
	RestaurantIDs     []string
	TransportIDs      []string
}

// NormalizedBudget returns budget per guest per day, the quantity the
// similarity budget term compares. ok is false when any component is missing.
func (o TourOption) NormalizedBudget() (float64, bool) {
	if o.TargetBudget == nil || o.GuestCount == nil || o.DurationDays == nil {
		return 0, false
	}
	guests := *o.GuestCount
	days := *o.DurationDays
	if guests <= 0 || days <= 0 {
		return 0, false
	}
	return *o.TargetBudget / float64(guests*days), true
}

// ScheduleItem is one time-slotted atom of a day plan. Times are 24-hour
// HH:MM. DistanceKm and TravelTimeMin stay nil on non-transfers and on
// transfer drafts until the post-processor fills them.
type ScheduleItem struct {
	StartTime     string   `json:"start_time"`
	EndTime       string   `json:"end_time"`
	Type          string   `json:"type"`
	PlaceID       string   `json:"place_id,omitempty"`
	PlaceName     string   `json:"place_name"`
	Description   string   `json:"description,omitempty"`
	TransportMode string   `json:"transport_mode,omitempty"`
	DistanceKm    *float64 `json:"distance_km"`
	TravelTimeMin *float64 `json:"travel_time_min"`
	Cost          float64  `json:"cost"`
}

// Schedule item types.
const (
	ItemActivity = "activity"
	ItemMeal     = "meal"
	ItemHotel    = "hotel"
	ItemTransfer = "transfer"
)

// IsTransfer reports whether the item is a transfer leg.
func (s ScheduleItem) IsTransfer() bool {
	return s.Type == ItemTransfer
}

// DaySchedule is the ordered item list for one day. The per-day array keeps
// the wire name "activities" for compatibility with the consumer frontend.
type DaySchedule struct {
	Day        int            `json:"day"`
	Activities []ScheduleItem `json:"activities"`
}

// CostBreakdown groups the tour cost by item category.
type CostBreakdown struct {
	Hotels            float64 `json:"hotels"`
	Activities        float64 `json:"activities"`
	Meals             float64 `json:"meals"`
	TransportEstimate float64 `json:"transport_estimate"`
}

// Tour is the final engine output.
type Tour struct {
	TourID             string        `json:"tour_id"`
	UserID             string        `json:"user_id"`
	StartCity          string        `json:"start_city"`
	DestinationCity    string        `json:"destination_city"`
	DurationDays       int           `json:"duration_days"`
	GuestCount         int           `json:"guest_count"`
	Budget             float64       `json:"budget"`
	TotalEstimatedCost float64       `json:"total_estimated_cost"`
	WithinBudget       bool          `json:"within_budget"`
	CostBreakdown      CostBreakdown `json:"cost_breakdown"`
	Schedule           []DaySchedule `json:"schedule"`
	ErrorNote          string        `json:"error,omitempty"`
}

// RecommendationInfo describes how the plan was seeded; it rides alongside
// the tour in the HTTP envelope.
type RecommendationInfo struct {
	AlgorithmUsed   string      `json:"algorithm_used"`
	PreferencesUsed Preferences `json:"preferences_used"`
	Destination     string      `json:"destination"`
	AIModel         string      `json:"ai_model"`
	SeedOptionID    string      `json:"seed_option_id,omitempty"`
}

package planner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/FACorreiaa/wanderplan/internal/app/domain/selection"
	"github.com/FACorreiaa/wanderplan/internal/app/models"
)

// TimeSlot is one window of the canonical daily template.
type TimeSlot struct {
	StartTime string
	EndTime   string
	Type      string
}

// TimeSlots is the canonical daily template: four activity windows, two
// meals at fixed lunch/dinner windows, three hotel blocks.
var TimeSlots = []TimeSlot{
	{"08:00", "09:30", models.ItemActivity},
	{"09:30", "11:00", models.ItemActivity},
	{"11:00", "12:00", models.ItemHotel},
	{"12:00", "14:00", models.ItemMeal},
	{"14:00", "15:00", models.ItemActivity},
	{"15:00", "16:30", models.ItemActivity},
	{"16:30", "18:00", models.ItemHotel},
	{"18:00", "20:00", models.ItemMeal},
	{"20:00", "23:00", models.ItemHotel},
}

// promptPlace is the candidate serialization offered to the model.
type promptPlace struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Price       float64  `json:"price"`
	Rating      float64  `json:"rating"`
	Description string   `json:"description"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

func toPromptPlaces(places []models.Place) []promptPlace {
	out := make([]promptPlace, 0, len(places))
	for _, p := range places {
		out = append(out, promptPlace{
			ID:          p.ID,
			Name:        p.Name,
			Price:       p.UnitCost(),
			Rating:      p.Rating,
			Description: p.Description,
			Latitude:    p.Latitude,
			Longitude:   p.Longitude,
		})
	}
	return out
}

func jsonBlock(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(b)
}

func jsonList(ids []string) string {
	if len(ids) == 0 {
		return "[]"
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// buildPrompt composes the planning prompt: trip input, the three candidate
// pools, the liked/disliked preferences and the rule set the post-processor
// later enforces anyway.
func buildPrompt(request models.TourRequest, destinationName string, picks selection.Picks, prefs models.Preferences) string {
	duration := request.Days()
	guests := request.Guests()
	budget := request.Budget()

	var b strings.Builder
	b.WriteString("You are an AI travel planner. Create a detailed itinerary based on the input data. Produce ONLY valid JSON (no comments, no prose).\n\n")

	fmt.Fprintf(&b, "TRIP INPUT DATA:\n")
	fmt.Fprintf(&b, "Destination: %s\n", destinationName)
	fmt.Fprintf(&b, "Duration: %d days\n", duration)
	fmt.Fprintf(&b, "Guests: %d people\n", guests)
	fmt.Fprintf(&b, "Budget: $%.2f USD (total for all guests)\n", budget)
	fmt.Fprintf(&b, "Daily Budget: $%.2f USD per day\n\n", budget/float64(duration))

	fmt.Fprintf(&b, "AVAILABLE DATA:\nActivities (%d available):\n%s\n\n", len(picks.Activities), jsonBlock(toPromptPlaces(picks.Activities)))
	fmt.Fprintf(&b, "Restaurants (%d available):\n%s\n\n", len(picks.Restaurants), jsonBlock(toPromptPlaces(picks.Restaurants)))
	fmt.Fprintf(&b, "Hotels (%d available):\n%s\n\n", len(picks.Hotels), jsonBlock(toPromptPlaces(picks.Hotels)))

	b.WriteString("USER PREFERENCES:\nLIKED (prioritize these):\n")
	fmt.Fprintf(&b, "- Activities: %s\n", jsonList(prefs.LikedActivities))
	fmt.Fprintf(&b, "- Restaurants: %s\n", jsonList(prefs.LikedRestaurants))
	fmt.Fprintf(&b, "- Hotels: %s\n", jsonList(prefs.LikedHotels))
	fmt.Fprintf(&b, "- Transport Modes: %s\n\n", jsonList(prefs.LikedTransportModes))
	b.WriteString("DISLIKED (avoid these completely):\n")
	fmt.Fprintf(&b, "- Activities: %s\n", jsonList(prefs.DislikedActivities))
	fmt.Fprintf(&b, "- Restaurants: %s\n", jsonList(prefs.DislikedRestaurants))
	fmt.Fprintf(&b, "- Hotels: %s\n", jsonList(prefs.DislikedHotels))
	fmt.Fprintf(&b, "- Transport Modes: %s\n\n", jsonList(prefs.DislikedTransportModes))

	rooms := (guests + 1) / 2
	if rooms < 1 {
		rooms = 1
	}

	b.WriteString("PLANNING RULES & CONSTRAINTS:\n")
	fmt.Fprintf(&b, "1) Stay WITHIN the total budget of $%.2f USD for %d guests over %d days. Hotels cost price_per_night x nights x %d rooms (2 people per room max); activities and meals cost price x guests. If impossible, still output a plan with \"within_budget\": false.\n", budget, guests, duration, rooms)
	fmt.Fprintf(&b, "2) NEVER use any transport mode in the disliked list: %s.\n", jsonList(prefs.DislikedTransportModes))
	if len(prefs.LikedTransportModes) > 0 {
		fmt.Fprintf(&b, "3) ALWAYS use the liked transport modes for every transfer: %s.\n", jsonList(prefs.LikedTransportModes))
	} else {
		b.WriteString("3) No liked transport modes given; default to \"taxi\" for transfers.\n")
	}
	b.WriteString("4) Insert exactly one \"transfer\" item between every pair of consecutive non-transfer items.\n")
	b.WriteString("5) For transfer items specify transport_mode but leave distance_km and travel_time_min null; they are calculated later from real coordinates.\n")
	b.WriteString("6) Times in 24h HH:MM format, no overlaps, items sorted by start_time.\n")
	b.WriteString("7) Follow the daily template windows:\n")
	for _, slot := range TimeSlots {
		fmt.Fprintf(&b, "   %s-%s %s\n", slot.StartTime, slot.EndTime, slot.Type)
	}
	b.WriteString("   Lunch 12:00-14:00 and dinner 18:00-20:00 are meals at restaurants from the data; hotel blocks reuse one hotel.\n")
	b.WriteString("8) Use only place ids from AVAILABLE DATA; exclude every disliked id; no duplicate places within the same day.\n")
	b.WriteString("9) Output JSON only.\n\n")

	b.WriteString("REQUIRED OUTPUT FORMAT:\n")
	fmt.Fprintf(&b, `{
  "destination": %q,
  "guests": %d,
  "duration_days": %d,
  "within_budget": true,
  "total_cost": <number>,
  "cost_breakdown": {"hotels": <number>, "activities": <number>, "meals": <number>, "transport_estimate": <number>},
  "days": [
    {
      "day": 1,
      "activities": [
        {
          "start_time": "08:00",
          "end_time": "09:30",
          "type": "activity" | "meal" | "hotel" | "transfer",
          "place_id": "<id or null>",
          "place_name": "<string>",
          "description": "<string>",
          "transport_mode": "walk|bike|scooter|taxi|bus|metro",
          "distance_km": null,
          "travel_time_min": null,
          "cost": <number>
        }
      ]
    }
  ]
}`, destinationName, guests, duration)
	b.WriteString("\n")

	return b.String()
}

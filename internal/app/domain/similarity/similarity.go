// Package similarity scores the current request against historical tour
// options, picks seed options for both user branches and imputes missing
// request fields from the option history.
package similarity

import (
	"math"
	"sort"

	"github.com/FACorreiaa/wanderplan/internal/app/models"
)

const (
	// DefaultTopK is the neighbor count for the cold-start branch.
	DefaultTopK = 5
	// DefaultBudget is the terminal fallback when nothing can be imputed
	// or regressed.
	DefaultBudget = 1000.0

	epsilon = 1e-9
)

// Seeding branch labels, surfaced in recommendation_info.
const (
	AlgorithmExistingUser = "existing_user"
	AlgorithmColdStart    = "cold_start"
)

// Neighbor is one scored historical option.
type Neighbor struct {
	UserID string
	Score  float64
	Option models.TourOption
}

// SharedFraction returns |a ∩ b| / |a|, 0 when a is empty. The denominator
// is always the first argument's size: the fraction of the query user's
// items the other side also has. Not symmetric Jaccard.
func SharedFraction(a, b []string) float64 {
	if len(a) == 0 {
		return 0
	}
	other := make(map[string]struct{}, len(b))
	for _, id := range b {
		other[id] = struct{}{}
	}
	shared := 0
	for _, id := range a {
		if _, ok := other[id]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(a))
}

// Score rates other against self. Defined only for the same destination and
// a different user; everything else is -Inf.
func Score(self, other models.TourOption) float64 {
	if self.DestinationCityID != other.DestinationCityID {
		return math.Inf(-1)
	}
	if self.UserID == other.UserID {
		return math.Inf(-1)
	}

	score := SharedFraction(self.HotelIDs, other.HotelIDs) +
		SharedFraction(self.ActivityIDs, other.ActivityIDs) +
		SharedFraction(self.RestaurantIDs, other.RestaurantIDs) +
		SharedFraction(self.TransportIDs, other.TransportIDs)

	nSelf, okSelf := self.NormalizedBudget()
	nOther, okOther := other.NormalizedBudget()
	if okSelf && okOther {
		score += math.Abs(nSelf-nOther) / (nSelf + nOther + epsilon)
	}
	return score
}

// TopK returns the k best-scoring options for self, -Inf entries dropped.
// Ties keep input order.
func TopK(self models.TourOption, options []models.TourOption, k int) []Neighbor {
	if k <= 0 {
		k = DefaultTopK
	}
	var neighbors []Neighbor
	for _, opt := range options {
		score := Score(self, opt)
		if math.IsInf(score, -1) {
			continue
		}
		neighbors = append(neighbors, Neighbor{UserID: opt.UserID, Score: score, Option: opt})
	}
	sort.SliceStable(neighbors, func(i, j int) bool { return neighbors[i].Score > neighbors[j].Score })
	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors
}

// BlendRank ranks a seed candidate: half budget closeness, half rating.
func BlendRank(option models.TourOption, nSelf float64) float64 {
	n := optionNorm(option)
	budgetSim := 1 - math.Abs(n-nSelf)/(n+nSelf+epsilon)
	rating := 0.0
	if option.Rating != nil {
		rating = *option.Rating
	}
	return 0.5*budgetSim + 0.5*(rating/10)
}

// optionNorm is budget per guest per day with the historical defaults for
// missing fields: budget 1000, one guest, three days.
func optionNorm(o models.TourOption) float64 {
	budget, guests, days := DefaultBudget, 1.0, 3.0
	if o.TargetBudget != nil {
		budget = *o.TargetBudget
	}
	if o.GuestCount != nil && *o.GuestCount > 0 {
		guests = float64(*o.GuestCount)
	}
	if o.DurationDays != nil && *o.DurationDays > 0 {
		days = float64(*o.DurationDays)
	}
	return budget / (guests * days)
}

// RequestNorm is the request-side normalized budget with the same defaults
// as optionNorm.
func RequestNorm(req models.TourRequest) float64 {
	budget, guests, days := DefaultBudget, 1.0, 3.0
	if req.TargetBudget != nil {
		budget = *req.TargetBudget
	}
	if req.GuestCount != nil && *req.GuestCount > 0 {
		guests = float64(*req.GuestCount)
	}
	if req.DurationDays != nil && *req.DurationDays > 0 {
		days = float64(*req.DurationDays)
	}
	return budget / (guests * days)
}

// OptionFromRequest projects the request into the option shape Score
// operates on.
func OptionFromRequest(req models.TourRequest) models.TourOption {
	return models.TourOption{
		UserID:            req.UserID,
		StartCityID:       req.StartCityID,
		DestinationCityID: req.DestinationCityID,
		GuestCount:        req.GuestCount,
		DurationDays:      req.DurationDays,
		TargetBudget:      req.TargetBudget,
		HotelIDs:          req.HotelIDs,
		ActivityIDs:       req.ActivityIDs,
		RestaurantIDs:     req.RestaurantIDs,
		TransportIDs:      req.TransportIDs,
	}
}

// Impute fills missing request fields. Numerics take the neighbor mean,
// start city the neighbor mode, empty id sets the three most frequent ids.
// A budget that stays missing after the mean stage is regressed from
// (duration, guests) over the full option history, with 1000 as the last
// resort. The input request is not mutated.
func Impute(req models.TourRequest, neighbors, all []models.TourOption) models.TourRequest {
	out := req

	if len(neighbors) > 0 {
		if out.GuestCount == nil {
			g := meanInt(neighbors, func(o models.TourOption) *int { return o.GuestCount })
			out.GuestCount = &g
		}
		if out.DurationDays == nil {
			d := meanInt(neighbors, func(o models.TourOption) *int { return o.DurationDays })
			out.DurationDays = &d
		}
		if out.TargetBudget == nil {
			if mean, ok := meanFloat(neighbors, func(o models.TourOption) *float64 { return o.TargetBudget }); ok {
				out.TargetBudget = &mean
			}
		}
		if out.StartCityID == nil {
			if mode, ok := modeInt(neighbors, func(o models.TourOption) *int { return o.StartCityID }); ok {
				out.StartCityID = &mode
			}
		}
		if len(out.HotelIDs) == 0 {
			out.HotelIDs = frequentIDs(neighbors, func(o models.TourOption) []string { return o.HotelIDs }, 3)
		}
		if len(out.ActivityIDs) == 0 {
			out.ActivityIDs = frequentIDs(neighbors, func(o models.TourOption) []string { return o.ActivityIDs }, 3)
		}
		if len(out.RestaurantIDs) == 0 {
			out.RestaurantIDs = frequentIDs(neighbors, func(o models.TourOption) []string { return o.RestaurantIDs }, 3)
		}
		if len(out.TransportIDs) == 0 {
			out.TransportIDs = frequentIDs(neighbors, func(o models.TourOption) []string { return o.TransportIDs }, 3)
		}
	}

	if out.TargetBudget == nil {
		budget := regressBudget(all, out)
		out.TargetBudget = &budget
	}
	return out
}

// meanInt averages the non-nil values, rounded, at least 1. No values at
// all also gives 1.
func meanInt(options []models.TourOption, get func(models.TourOption) *int) int {
	sum, n := 0, 0
	for _, o := range options {
		if v := get(o); v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return 1
	}
	mean := int(math.Round(float64(sum) / float64(n)))
	if mean < 1 {
		return 1
	}
	return mean
}

func meanFloat(options []models.TourOption, get func(models.TourOption) *float64) (float64, bool) {
	sum, n := 0.0, 0
	for _, o := range options {
		if v := get(o); v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// modeInt picks the most frequent non-nil value, smallest value on ties.
func modeInt(options []models.TourOption, get func(models.TourOption) *int) (int, bool) {
	counts := make(map[int]int)
	for _, o := range options {
		if v := get(o); v != nil {
			counts[*v]++
		}
	}
	if len(counts) == 0 {
		return 0, false
	}
	best, bestCount := 0, -1
	for v, c := range counts {
		if c > bestCount || (c == bestCount && v < best) {
			best, bestCount = v, c
		}
	}
	return best, true
}

// frequentIDs returns the limit most frequent ids across the options,
// first-seen order on ties.
func frequentIDs(options []models.TourOption, get func(models.TourOption) []string, limit int) []string {
	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	order := 0
	for _, o := range options {
		for _, id := range get(o) {
			if _, ok := counts[id]; !ok {
				firstSeen[id] = order
				order++
			}
			counts[id]++
		}
	}
	if len(counts) == 0 {
		return nil
	}

	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if counts[ids[i]] != counts[ids[j]] {
			return counts[ids[i]] > counts[ids[j]]
		}
		return firstSeen[ids[i]] < firstSeen[ids[j]]
	})
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids
}

// regressBudget fits target_budget ~ b0 + b1*duration + b2*guests over the
// complete historical rows and predicts for the request. Too little data, a
// singular system or a nonsense prediction all fall back to DefaultBudget.
func regressBudget(all []models.TourOption, req models.TourRequest) float64 {
	type row struct{ d, g, y float64 }
	var rows []row
	for _, o := range all {
		if o.TargetBudget == nil || o.GuestCount == nil || o.DurationDays == nil {
			continue
		}
		rows = append(rows, row{float64(*o.DurationDays), float64(*o.GuestCount), *o.TargetBudget})
	}
	if len(rows) < 3 {
		return DefaultBudget
	}

	// normal equations for y = b0 + b1*d + b2*g
	var n, sd, sg, sdd, sdg, sgg, sy, sdy, sgy float64
	for _, r := range rows {
		n++
		sd += r.d
		sg += r.g
		sdd += r.d * r.d
		sdg += r.d * r.g
		sgg += r.g * r.g
		sy += r.y
		sdy += r.d * r.y
		sgy += r.g * r.y
	}

	det := det3(
		n, sd, sg,
		sd, sdd, sdg,
		sg, sdg, sgg,
	)
	if math.Abs(det) < 1e-12 {
		return DefaultBudget
	}

	b0 := det3(
		sy, sd, sg,
		sdy, sdd, sdg,
		sgy, sdg, sgg,
	) / det
	b1 := det3(
		n, sy, sg,
		sd, sdy, sdg,
		sg, sgy, sgg,
	) / det
	b2 := det3(
		n, sd, sy,
		sd, sdd, sdy,
		sg, sdg, sgy,
	) / det

	predicted := b0 + b1*float64(req.Days()) + b2*float64(req.Guests())
	if math.IsNaN(predicted) || math.IsInf(predicted, 0) || predicted <= 0 {
		return DefaultBudget
	}
	return predicted
}

func det3(a, b, c, d, e, f, g, h, i float64) float64 {
	return a*(e*i-f*h) - b*(d*i-f*g) + c*(d*h-e*g)
}

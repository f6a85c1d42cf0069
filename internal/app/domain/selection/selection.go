// Package selection picks the candidate place pools the planner offers the
// LLM: hotels, restaurants and activities for the destination, filtered by
// preferences and a per-day budget envelope.
package selection

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/wanderplan/internal/app/domain/catalog"
	"github.com/FACorreiaa/wanderplan/internal/app/models"
)

var _ Selector = (*SelectorImpl)(nil)

// Catalog pool limits, best rated first.
const (
	activityPoolLimit   = 20
	restaurantPoolLimit = 15
	hotelPoolLimit      = 10
)

// Slots the canonical daily template reserves per category. The three hotel
// slots reuse a single hotel, so only one unique hotel is ever needed.
const (
	ActivitySlotsPerDay   = 4
	RestaurantSlotsPerDay = 2
)

// Budget envelope weights per category.
var categoryWeight = map[models.PlaceVariant]float64{
	models.VariantActivity:   0.4,
	models.VariantRestaurant: 0.3,
	models.VariantHotel:      0.3,
}

// Pools holds the three rating-ordered candidate pools for a destination.
type Pools struct {
	Activities  []models.Place
	Restaurants []models.Place
	Hotels      []models.Place
}

// Picks is the selector output: the items offered to the day planner.
type Picks struct {
	Activities  []models.Place
	Restaurants []models.Place
	Hotels      []models.Place
}

type Selector interface {
	Pools(ctx context.Context, destinationCityID int) (Pools, error)
	Select(pools Pools, request models.TourRequest, prefs models.Preferences) Picks
}

type SelectorImpl struct {
	logger  *zap.Logger
	catalog catalog.Repository
}

func NewSelector(catalogRepo catalog.Repository, logger *zap.Logger) *SelectorImpl {
	return &SelectorImpl{logger: logger, catalog: catalogRepo}
}

// Pools fetches the three candidate pools concurrently. Any catalog failure
// fails the whole fetch; the facade treats that as fatal.
func (s *SelectorImpl) Pools(ctx context.Context, destinationCityID int) (Pools, error) {
	ctx, span := otel.Tracer("CandidateSelector").Start(ctx, "Pools")
	defer span.End()
	span.SetAttributes(attribute.Int("destination.city_id", destinationCityID))

	var pools Pools
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pools.Activities, err = s.catalog.PlacesByCity(gctx, destinationCityID, models.VariantActivity, activityPoolLimit)
		return err
	})
	g.Go(func() error {
		var err error
		pools.Restaurants, err = s.catalog.PlacesByCity(gctx, destinationCityID, models.VariantRestaurant, restaurantPoolLimit)
		return err
	})
	g.Go(func() error {
		var err error
		pools.Hotels, err = s.catalog.PlacesByCity(gctx, destinationCityID, models.VariantHotel, hotelPoolLimit)
		return err
	})

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pool fetch failed")
		return Pools{}, fmt.Errorf("failed to fetch candidate pools: %w", err)
	}

	span.SetAttributes(
		attribute.Int("pool.activities", len(pools.Activities)),
		attribute.Int("pool.restaurants", len(pools.Restaurants)),
		attribute.Int("pool.hotels", len(pools.Hotels)),
	)
	span.SetStatus(codes.Ok, "pools fetched")
	return pools, nil
}

// Select builds the per-category picks. Pure: no I/O, deterministic given
// its inputs. The request must already be imputed; missing numerics fall
// back to one guest, one day, zero budget.
func (s *SelectorImpl) Select(pools Pools, request models.TourRequest, prefs models.Preferences) Picks {
	days := request.Days()
	dailyBudget := request.Budget() / float64(days)

	uniqueActivities := ActivitySlotsPerDay * days
	if uniqueActivities > len(pools.Activities) {
		uniqueActivities = len(pools.Activities)
	}
	uniqueRestaurants := RestaurantSlotsPerDay * days
	if uniqueRestaurants > len(pools.Restaurants) {
		uniqueRestaurants = len(pools.Restaurants)
	}

	picks := Picks{
		Activities:  pickWithBudget(pools.Activities, likedUnion(prefs.LikedActivities, request.ActivityIDs), prefs.DislikedActivities, dailyBudget, uniqueActivities),
		Restaurants: pickWithBudget(pools.Restaurants, likedUnion(prefs.LikedRestaurants, request.RestaurantIDs), prefs.DislikedRestaurants, dailyBudget, uniqueRestaurants),
		Hotels:      pickWithBudget(pools.Hotels, likedUnion(prefs.LikedHotels, request.HotelIDs), prefs.DislikedHotels, dailyBudget, 1),
	}

	s.logger.Debug("candidate selection complete",
		zap.Int("activities", len(picks.Activities)),
		zap.Int("restaurants", len(picks.Restaurants)),
		zap.Int("hotels", len(picks.Hotels)),
		zap.Float64("daily_budget", dailyBudget))
	return picks
}

// likedUnion merges the resolved liked set with the request's raw id set,
// keeping first occurrences.
func likedUnion(liked, requested []string) []string {
	seen := make(map[string]struct{}, len(liked)+len(requested))
	var out []string
	for _, id := range append(append([]string{}, liked...), requested...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// pickWithBudget is the greedy envelope fill: prefer the liked subset (full
// pool when it is empty), best rated first, admit while the running cost
// stays inside the category's share of the daily budget, then top up with
// the cheapest leftovers until k items are picked. Disliked ids never make
// it in.
func pickWithBudget(pool []models.Place, likedIDs, dislikedIDs []string, dailyBudget float64, k int) []models.Place {
	if k <= 0 || len(pool) == 0 {
		return nil
	}

	disliked := make(map[string]struct{}, len(dislikedIDs))
	for _, id := range dislikedIDs {
		disliked[id] = struct{}{}
	}
	var candidates []models.Place
	for _, p := range pool {
		if _, ok := disliked[p.ID]; !ok {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	liked := make(map[string]struct{}, len(likedIDs))
	for _, id := range likedIDs {
		liked[id] = struct{}{}
	}
	var sel []models.Place
	for _, p := range candidates {
		if _, ok := liked[p.ID]; ok {
			sel = append(sel, p)
		}
	}
	if len(sel) == 0 {
		sel = candidates
	}

	sorted := make([]models.Place, len(sel))
	copy(sorted, sel)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Rating > sorted[j].Rating })

	weight := categoryWeight[sorted[0].Variant]
	envelope := dailyBudget * weight

	var picked []models.Place
	pickedIDs := make(map[string]struct{})
	total := 0.0
	for _, item := range sorted {
		c := item.UnitCost()
		if total+c <= envelope || len(picked) < 1 {
			picked = append(picked, item)
			pickedIDs[item.ID] = struct{}{}
			total += c
		}
		if len(picked) == k {
			break
		}
	}

	if len(picked) < k {
		var remaining []models.Place
		for _, item := range sorted {
			if _, ok := pickedIDs[item.ID]; !ok {
				remaining = append(remaining, item)
			}
		}
		sort.SliceStable(remaining, func(i, j int) bool { return remaining[i].UnitCost() < remaining[j].UnitCost() })
		if need := k - len(picked); need < len(remaining) {
			remaining = remaining[:need]
		}
		picked = append(picked, remaining...)
	}

	return picked
}

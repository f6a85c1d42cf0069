// Package schedule is the deterministic post-processor. The oracle draft is
// untrusted input: this package enforces the transport-mode policy, computes
// every distance, travel time and transfer cost from real coordinates, and
// repairs structural violations before the tour is assembled.
package schedule

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/FACorreiaa/wanderplan/internal/app/domain/catalog"
	"github.com/FACorreiaa/wanderplan/internal/app/domain/geo"
	"github.com/FACorreiaa/wanderplan/internal/app/models"
	"github.com/FACorreiaa/wanderplan/internal/app/observability/metrics"
)

var _ Processor = (*ProcessorImpl)(nil)

var transportIDPattern = regexp.MustCompile(`^T\d+$`)

// Result is the validated, enriched schedule plus the figures the tour
// reports. Totals are computed after the invariant sweep so the sum always
// matches the emitted items.
type Result struct {
	Days               []models.DaySchedule
	TotalEstimatedCost float64
	WithinBudget       bool
	CostBreakdown      models.CostBreakdown
	Repairs            int
}

type Processor interface {
	Process(ctx context.Context, days []models.DaySchedule, prefs models.Preferences, targetBudget float64) Result
}

type ProcessorImpl struct {
	logger  *zap.Logger
	catalog catalog.Repository
}

func NewProcessor(catalogRepo catalog.Repository, logger *zap.Logger) *ProcessorImpl {
	return &ProcessorImpl{logger: logger, catalog: catalogRepo}
}

// Process runs the full pass: transport-mode enforcement, place-name fill,
// geo enrichment, invariant sweep, totals. The input slice is not mutated.
func (p *ProcessorImpl) Process(ctx context.Context, days []models.DaySchedule, prefs models.Preferences, targetBudget float64) Result {
	ctx, span := otel.Tracer("ScheduleProcessor").Start(ctx, "Process")
	defer span.End()
	span.SetAttributes(attribute.Int("days", len(days)))

	out := make([]models.DaySchedule, len(days))
	for i, day := range days {
		items := make([]models.ScheduleItem, len(day.Activities))
		copy(items, day.Activities)
		out[i] = models.DaySchedule{Day: day.Day, Activities: items}
	}

	repairs := 0
	likedRotation := 0
	for i := range out {
		p.enforceTransportModes(ctx, out[i].Activities, prefs, &likedRotation)
		fillTransferNames(out[i].Activities)
		p.enrichTransfers(ctx, out[i].Activities)
		out[i].Activities, repairs = p.sweep(out[i].Activities, out[i].Day, repairs)
	}

	total, breakdown := totals(out)
	span.SetAttributes(
		attribute.Float64("total_estimated_cost", total),
		attribute.Int("repairs", repairs),
	)
	if repairs > 0 {
		metrics.Get().ScheduleRepairsTotal.Add(ctx, int64(repairs))
	}

	return Result{
		Days:               out,
		TotalEstimatedCost: total,
		WithinBudget:       total <= targetBudget,
		CostBreakdown:      breakdown,
		Repairs:            repairs,
	}
}

// enforceTransportModes applies the mode policy to every transfer in order:
// liked modes rotate for variety, disliked modes are swapped out, id-shaped
// modes are resolved through the catalog, null and unknown become taxi.
// The rotation index is shared across days so consecutive days differ too.
func (p *ProcessorImpl) enforceTransportModes(ctx context.Context, items []models.ScheduleItem, prefs models.Preferences, rotation *int) {
	liked := prefs.LikedTransportModes
	disliked := make(map[string]struct{}, len(prefs.DislikedTransportModes))
	for _, mode := range prefs.DislikedTransportModes {
		disliked[strings.ToLower(mode)] = struct{}{}
	}
	_, taxiDisliked := disliked[geo.ModeTaxi]
	safeDefault := geo.ModeTaxi
	if taxiDisliked {
		safeDefault = geo.ModeBus
	}

	for i := range items {
		if !items[i].IsTransfer() {
			continue
		}
		current := strings.TrimSpace(items[i].TransportMode)
		lowered := strings.ToLower(current)
		_, isDisliked := disliked[lowered]

		switch {
		case len(liked) > 0:
			items[i].TransportMode = liked[*rotation%len(liked)]
			*rotation++
		case isDisliked:
			p.logger.Debug("replacing disliked transport mode",
				zap.String("from", current), zap.String("to", safeDefault))
			items[i].TransportMode = safeDefault
		case transportIDPattern.MatchString(current):
			mode, err := p.catalog.TransportMode(ctx, current)
			if err != nil {
				p.logger.Warn("transfer mode id lookup failed, falling back to taxi",
					zap.String("transport_id", current), zap.Error(err))
				items[i].TransportMode = safeDefault
			} else {
				items[i].TransportMode = strings.ToLower(mode)
			}
		case current == "" || lowered == "null" || lowered == "unknown":
			items[i].TransportMode = geo.ModeTaxi
		case geo.IsCanonicalMode(lowered):
			items[i].TransportMode = lowered
		default:
			// catalog mode tag, accepted as-is
		}
	}
}

// fillTransferNames synthesizes a place name for transfers that lack one.
func fillTransferNames(items []models.ScheduleItem) {
	for i := range items {
		if !items[i].IsTransfer() {
			continue
		}
		name := strings.TrimSpace(items[i].PlaceName)
		if name == "" || strings.EqualFold(name, "null") {
			items[i].PlaceName = fmt.Sprintf("Transfer by %s", geo.DisplayName(items[i].TransportMode))
		}
	}
}

// enrichTransfers computes distance, travel time and cost for every
// transfer from the surrounding items' coordinates. Missing coordinates or
// missing neighbors degrade to the mode's default distance. The end time is
// shifted to start + travel time.
func (p *ProcessorImpl) enrichTransfers(ctx context.Context, items []models.ScheduleItem) {
	for i := range items {
		if !items[i].IsTransfer() {
			continue
		}

		prev := previousStop(items, i)
		next := nextStop(items, i)
		if prev == nil || next == nil {
			p.applyDefaultLeg(&items[i])
			continue
		}

		fromLat, fromLon, errFrom := p.coords(ctx, *prev)
		toLat, toLon, errTo := p.coords(ctx, *next)
		if errFrom != nil || errTo != nil {
			p.logger.Debug("transfer endpoint coordinates missing, using mode default",
				zap.String("from", prev.PlaceName),
				zap.String("to", next.PlaceName),
				zap.String("mode", items[i].TransportMode))
			p.applyDefaultLeg(&items[i])
			continue
		}

		distance := math.Round(geo.Haversine(fromLat, fromLon, toLat, toLon)*100) / 100
		rush := geo.IsRushHour(hourOf(items[i].StartTime))
		travelTime := geo.TravelTimeMin(distance, items[i].TransportMode, rush)
		p.writeLeg(&items[i], distance, travelTime)
	}
}

func (p *ProcessorImpl) applyDefaultLeg(item *models.ScheduleItem) {
	distance := geo.DefaultDistanceKm(item.TransportMode)
	travelTime := geo.TravelTimeMin(distance, item.TransportMode, false)
	p.writeLeg(item, distance, travelTime)
}

func (p *ProcessorImpl) writeLeg(item *models.ScheduleItem, distanceKm float64, travelTimeMin int) {
	tt := float64(travelTimeMin)
	item.DistanceKm = &distanceKm
	item.TravelTimeMin = &tt
	item.Cost = geo.TransportCost(distanceKm, item.TransportMode)

	if start, err := parseHHMM(item.StartTime); err == nil {
		item.EndTime = formatHHMM(start + travelTimeMin)
	}
}

// coords resolves a schedule item to catalog coordinates; the item type
// decides which table holds the place.
func (p *ProcessorImpl) coords(ctx context.Context, item models.ScheduleItem) (float64, float64, error) {
	if item.PlaceID == "" {
		return 0, 0, models.ErrMissingCoordinates
	}
	var variant models.PlaceVariant
	switch item.Type {
	case models.ItemActivity:
		variant = models.VariantActivity
	case models.ItemMeal:
		variant = models.VariantRestaurant
	case models.ItemHotel:
		variant = models.VariantHotel
	default:
		return 0, 0, models.ErrMissingCoordinates
	}
	return p.catalog.PlaceCoords(ctx, variant, item.PlaceID)
}

func previousStop(items []models.ScheduleItem, i int) *models.ScheduleItem {
	for j := i - 1; j >= 0; j-- {
		if !items[j].IsTransfer() {
			return &items[j]
		}
	}
	return nil
}

func nextStop(items []models.ScheduleItem, i int) *models.ScheduleItem {
	for j := i + 1; j < len(items); j++ {
		if !items[j].IsTransfer() {
			return &items[j]
		}
	}
	return nil
}

// sweep enforces the structural invariants: parseable, positive-length
// intervals, start-time ordering, no overlaps (the later item loses), and
// at most one transfer between consecutive non-transfer stops. Repairs are
// deterministic and counted.
func (p *ProcessorImpl) sweep(items []models.ScheduleItem, day int, repairs int) ([]models.ScheduleItem, int) {
	var valid []models.ScheduleItem
	for _, item := range items {
		start, errStart := parseHHMM(item.StartTime)
		end, errEnd := parseHHMM(item.EndTime)
		if errStart != nil || errEnd != nil || end <= start {
			p.logger.Warn("dropping schedule item with invalid time window",
				zap.Int("day", day),
				zap.String("place_name", item.PlaceName),
				zap.String("start_time", item.StartTime),
				zap.String("end_time", item.EndTime))
			repairs++
			continue
		}
		if item.Cost < 0 {
			p.logger.Warn("clamping negative item cost",
				zap.Int("day", day), zap.String("place_name", item.PlaceName))
			item.Cost = 0
			repairs++
		}
		valid = append(valid, item)
	}

	sort.SliceStable(valid, func(i, j int) bool {
		si, _ := parseHHMM(valid[i].StartTime)
		sj, _ := parseHHMM(valid[j].StartTime)
		return si < sj
	})

	var out []models.ScheduleItem
	lastEnd := -1
	transferPending := false
	for _, item := range valid {
		start, _ := parseHHMM(item.StartTime)
		end, _ := parseHHMM(item.EndTime)
		if start < lastEnd {
			p.logger.Warn("dropping overlapping schedule item",
				zap.Int("day", day),
				zap.String("place_name", item.PlaceName),
				zap.String("start_time", item.StartTime))
			repairs++
			continue
		}
		if item.IsTransfer() {
			if transferPending {
				p.logger.Warn("dropping duplicate transfer between stops",
					zap.Int("day", day), zap.String("start_time", item.StartTime))
				repairs++
				continue
			}
			transferPending = true
		} else {
			if len(out) > 0 && !transferPending && !out[len(out)-1].IsTransfer() {
				p.logger.Warn("consecutive stops without a transfer between them",
					zap.Int("day", day),
					zap.String("from", out[len(out)-1].PlaceName),
					zap.String("to", item.PlaceName))
			}
			transferPending = false
		}
		out = append(out, item)
		lastEnd = end
	}
	return out, repairs
}

// totals sums every item cost and splits it by category. Rounded to 2
// decimals the way the gateway rounds currency.
func totals(days []models.DaySchedule) (float64, models.CostBreakdown) {
	var breakdown models.CostBreakdown
	total := 0.0
	for _, day := range days {
		for _, item := range day.Activities {
			total += item.Cost
			switch item.Type {
			case models.ItemHotel:
				breakdown.Hotels += item.Cost
			case models.ItemActivity:
				breakdown.Activities += item.Cost
			case models.ItemMeal:
				breakdown.Meals += item.Cost
			case models.ItemTransfer:
				breakdown.TransportEstimate += item.Cost
			}
		}
	}
	return round2(total), models.CostBreakdown{
		Hotels:            round2(breakdown.Hotels),
		Activities:        round2(breakdown.Activities),
		Meals:             round2(breakdown.Meals),
		TransportEstimate: round2(breakdown.TransportEstimate),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// parseHHMM converts a 24-hour HH:MM string to minutes since midnight.
func parseHHMM(s string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour*60 + minute, nil
}

// formatHHMM renders minutes since midnight, clamped to 23:59 so a shifted
// transfer end time never wraps past midnight below its own start.
func formatHHMM(minutes int) string {
	if minutes > 23*60+59 {
		minutes = 23*60 + 59
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func hourOf(s string) int {
	minutes, err := parseHHMM(s)
	if err != nil {
		return 8
	}
	return minutes / 60
}

// Package tours is the planning facade: it validates the request, runs the
// seeding branch, drives selection, the oracle draft and the post-processor,
// and assembles the final tour. It also owns the HTTP surface.
package tours

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/FACorreiaa/wanderplan/internal/app/domain/catalog"
	"github.com/FACorreiaa/wanderplan/internal/app/domain/planner"
	"github.com/FACorreiaa/wanderplan/internal/app/domain/preferences"
	"github.com/FACorreiaa/wanderplan/internal/app/domain/schedule"
	"github.com/FACorreiaa/wanderplan/internal/app/domain/selection"
	"github.com/FACorreiaa/wanderplan/internal/app/domain/similarity"
	"github.com/FACorreiaa/wanderplan/internal/app/models"
)

var _ Service = (*ServiceImpl)(nil)

var titleCaser = cases.Title(language.English)

type Service interface {
	GenerateTour(ctx context.Context, request models.TourRequest) (*models.Tour, *models.RecommendationInfo, error)
	Cities(ctx context.Context) ([]models.City, error)
}

type ServiceImpl struct {
	logger    *zap.Logger
	catalog   catalog.Repository
	resolver  preferences.Resolver
	selector  selection.Selector
	planner   planner.Service
	processor schedule.Processor
	aiModel   string
}

func NewService(
	catalogRepo catalog.Repository,
	resolver preferences.Resolver,
	selector selection.Selector,
	plannerSvc planner.Service,
	processor schedule.Processor,
	aiModel string,
	logger *zap.Logger,
) *ServiceImpl {
	return &ServiceImpl{
		logger:    logger,
		catalog:   catalogRepo,
		resolver:  resolver,
		selector:  selector,
		planner:   plannerSvc,
		processor: processor,
		aiModel:   aiModel,
	}
}

// GenerateTour runs the full planning pipeline. Catalog failures on the
// destination or the candidate pools are fatal; everything else degrades.
func (s *ServiceImpl) GenerateTour(ctx context.Context, request models.TourRequest) (*models.Tour, *models.RecommendationInfo, error) {
	ctx, span := otel.Tracer("TourService").Start(ctx, "GenerateTour")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", request.UserID),
		attribute.Int("destination.city_id", request.DestinationCityID),
	)

	l := s.logger.With(
		zap.String("method", "GenerateTour"),
		zap.String("request_id", uuid.New().String()),
		zap.String("user_id", request.UserID),
		zap.Int("destination_city_id", request.DestinationCityID),
	)

	if err := validateRequest(request); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, err
	}

	destinationName, err := s.catalog.CityName(ctx, request.DestinationCityID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "destination lookup failed")
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil, fmt.Errorf("destination city %d: %w", request.DestinationCityID, models.ErrInvalidRequest)
		}
		return nil, nil, fmt.Errorf("failed to resolve destination: %w", err)
	}
	destination := titleCaser.String(destinationName)

	prefs := s.resolver.Resolve(ctx, request.Preferences)

	request, seed, algorithm := s.resolveSeed(ctx, request)
	span.SetAttributes(attribute.String("algorithm", algorithm))
	l.Info("seeding branch selected",
		zap.String("algorithm", algorithm),
		zap.Bool("seeded", seed != nil))

	pools, err := s.selector.Pools(ctx, request.DestinationCityID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pool fetch failed")
		return nil, nil, err
	}
	picks := s.selector.Select(pools, request, prefs)

	draft := s.planner.Plan(ctx, request, destination, picks, prefs)
	days := s.normalizeDayCount(draft.Days, request.Days(), prefs)
	result := s.processor.Process(ctx, days, prefs, request.Budget())

	tour := s.assembleTour(ctx, request, destination, draft, result)
	info := &models.RecommendationInfo{
		AlgorithmUsed:   algorithm,
		PreferencesUsed: prefs,
		Destination:     destination,
		AIModel:         s.aiModel,
	}
	if seed != nil {
		info.SeedOptionID = seed.OptionID
	}

	span.SetStatus(codes.Ok, "tour generated")
	l.Info("tour generated",
		zap.String("tour_id", tour.TourID),
		zap.Float64("total_estimated_cost", tour.TotalEstimatedCost),
		zap.Bool("within_budget", tour.WithinBudget),
		zap.Int("repairs", result.Repairs))
	return tour, info, nil
}

// Cities lists the catalog cities for the request form.
func (s *ServiceImpl) Cities(ctx context.Context) ([]models.City, error) {
	return s.catalog.ListCities(ctx)
}

func validateRequest(request models.TourRequest) error {
	if request.DestinationCityID <= 0 {
		return fmt.Errorf("destination_city_id is required: %w", models.ErrInvalidRequest)
	}
	if request.GuestCount != nil && *request.GuestCount < 0 {
		return fmt.Errorf("guest_count must not be negative: %w", models.ErrInvalidRequest)
	}
	if request.DurationDays != nil && *request.DurationDays < 0 {
		return fmt.Errorf("duration_days must not be negative: %w", models.ErrInvalidRequest)
	}
	if request.TargetBudget != nil && *request.TargetBudget < 0 {
		return fmt.Errorf("target_budget must not be negative: %w", models.ErrInvalidRequest)
	}
	return nil
}

// resolveSeed picks the seeding branch, acquires a seed option and fills the
// request's missing fields from it. Catalog failures here degrade to the
// cold-start branch and never fail the call.
func (s *ServiceImpl) resolveSeed(ctx context.Context, request models.TourRequest) (models.TourRequest, *models.TourOption, string) {
	ctx, span := otel.Tracer("TourService").Start(ctx, "resolveSeed")
	defer span.End()

	if request.UserID != "" {
		count, err := s.catalog.TourCountForUser(ctx, request.UserID)
		if err != nil {
			s.logger.Warn("tour count lookup failed, using cold start",
				zap.String("user_id", request.UserID), zap.Error(err))
		} else if count > 1 {
			if out, seed, ok := s.existingUserSeed(ctx, request); ok {
				span.SetAttributes(attribute.String("algorithm", similarity.AlgorithmExistingUser))
				return out, seed, similarity.AlgorithmExistingUser
			}
		}
	}

	out, seed := s.coldStartSeed(ctx, request)
	span.SetAttributes(attribute.String("algorithm", similarity.AlgorithmColdStart))
	return out, seed, similarity.AlgorithmColdStart
}

// existingUserSeed ranks the user's own options for the destination by
// BlendRank and merges the best one into the request. ok is false when the
// user has no option for this destination.
func (s *ServiceImpl) existingUserSeed(ctx context.Context, request models.TourRequest) (models.TourRequest, *models.TourOption, bool) {
	own, err := s.catalog.TourOptionsForUser(ctx, request.UserID)
	if err != nil {
		s.logger.Warn("user option lookup failed, using cold start",
			zap.String("user_id", request.UserID), zap.Error(err))
		return request, nil, false
	}

	var sameDestination []models.TourOption
	for _, opt := range own {
		if opt.DestinationCityID == request.DestinationCityID {
			sameDestination = append(sameDestination, opt)
		}
	}
	if len(sameDestination) == 0 {
		return request, nil, false
	}

	seed := bestByBlendRank(sameDestination, similarity.RequestNorm(request))
	out := mergeSeed(request, *seed)
	if out.GuestCount == nil || out.DurationDays == nil || out.TargetBudget == nil {
		out = similarity.Impute(out, sameDestination, s.optionHistory(ctx))
	}
	return out, seed, true
}

// coldStartSeed imputes missing request fields from the full option history,
// retrieves the destination's nearest neighbors for the imputed request and
// seeds from the best neighbor option, falling back to any option for the
// destination, then any option at all.
func (s *ServiceImpl) coldStartSeed(ctx context.Context, request models.TourRequest) (models.TourRequest, *models.TourOption) {
	destOptions, err := s.catalog.TourOptionsForDestination(ctx, request.DestinationCityID, request.UserID)
	if err != nil {
		s.logger.Warn("destination option lookup failed, seeding without history",
			zap.Int("destination_city_id", request.DestinationCityID), zap.Error(err))
	}
	history := s.optionHistory(ctx)

	// impute before scoring; a sparse request scores every candidate zero
	out := similarity.Impute(request, history, history)

	self := similarity.OptionFromRequest(out)
	neighbors := similarity.TopK(self, destOptions, similarity.DefaultTopK)
	neighborOptions := make([]models.TourOption, 0, len(neighbors))
	for _, n := range neighbors {
		neighborOptions = append(neighborOptions, n.Option)
	}

	norm := similarity.RequestNorm(out)
	seed := bestByBlendRank(neighborOptions, norm)
	if seed == nil {
		seed = bestByBlendRank(destOptions, norm)
	}
	if seed == nil {
		seed = bestByBlendRank(history, norm)
	}
	if seed != nil {
		out = mergeSeed(out, *seed)
	}
	return out, seed
}

// normalizeDayCount forces the draft to exactly the requested number of
// days. The oracle is untrusted input: extra days are dropped, missing
// days are padded with the planner's skeleton day so the schedule always
// matches duration_days.
func (s *ServiceImpl) normalizeDayCount(days []models.DaySchedule, want int, prefs models.Preferences) []models.DaySchedule {
	if len(days) == want {
		return days
	}
	s.logger.Warn("draft day count does not match requested duration",
		zap.Int("draft_days", len(days)), zap.Int("requested_days", want))
	if len(days) > want {
		return days[:want]
	}
	out := make([]models.DaySchedule, len(days), want)
	copy(out, days)
	for day := len(days) + 1; day <= want; day++ {
		out = append(out, planner.FallbackDay(day, prefs))
	}
	return out
}

// optionHistory is the full option table, the regression training set. A
// failure degrades to an empty history.
func (s *ServiceImpl) optionHistory(ctx context.Context) []models.TourOption {
	history, err := s.catalog.AllTourOptions(ctx)
	if err != nil {
		s.logger.Warn("option history lookup failed", zap.Error(err))
		return nil
	}
	return history
}

func bestByBlendRank(options []models.TourOption, norm float64) *models.TourOption {
	var best *models.TourOption
	bestRank := math.Inf(-1)
	for i := range options {
		if rank := similarity.BlendRank(options[i], norm); rank > bestRank {
			best, bestRank = &options[i], rank
		}
	}
	return best
}

// mergeSeed fills the request's missing fields from the seed option. Present
// fields always win.
func mergeSeed(request models.TourRequest, seed models.TourOption) models.TourRequest {
	out := request
	if out.StartCityID == nil {
		out.StartCityID = seed.StartCityID
	}
	if out.GuestCount == nil {
		out.GuestCount = seed.GuestCount
	}
	if out.DurationDays == nil {
		out.DurationDays = seed.DurationDays
	}
	if out.TargetBudget == nil {
		out.TargetBudget = seed.TargetBudget
	}
	if len(out.HotelIDs) == 0 {
		out.HotelIDs = seed.HotelIDs
	}
	if len(out.ActivityIDs) == 0 {
		out.ActivityIDs = seed.ActivityIDs
	}
	if len(out.RestaurantIDs) == 0 {
		out.RestaurantIDs = seed.RestaurantIDs
	}
	if len(out.TransportIDs) == 0 {
		out.TransportIDs = seed.TransportIDs
	}
	return out
}

// assembleTour builds the final tour from the processed schedule. The tour id
// comes from the catalog sequence; when that is unavailable a deterministic
// composite id keeps the response usable.
func (s *ServiceImpl) assembleTour(ctx context.Context, request models.TourRequest, destination string, draft planner.Draft, result schedule.Result) *models.Tour {
	tourID, err := s.catalog.NextTourID(ctx)
	if err != nil {
		user := request.UserID
		if user == "" {
			user = "anonymous"
		}
		tourID = fmt.Sprintf("gemini_%s_%d_%ddays", user, request.DestinationCityID, request.Days())
		s.logger.Warn("tour id allocation failed, using composite id",
			zap.String("tour_id", tourID), zap.Error(err))
	}

	startCity := ""
	if request.StartCityID != nil {
		name, err := s.catalog.CityName(ctx, *request.StartCityID)
		if err != nil {
			s.logger.Warn("start city lookup failed",
				zap.Int("start_city_id", *request.StartCityID), zap.Error(err))
		} else {
			startCity = titleCaser.String(name)
		}
	}

	return &models.Tour{
		TourID:             tourID,
		UserID:             request.UserID,
		StartCity:          startCity,
		DestinationCity:    destination,
		DurationDays:       request.Days(),
		GuestCount:         request.Guests(),
		Budget:             round2(request.Budget()),
		TotalEstimatedCost: result.TotalEstimatedCost,
		WithinBudget:       result.WithinBudget,
		CostBreakdown:      result.CostBreakdown,
		Schedule:           result.Days,
		ErrorNote:          draft.ErrorNote,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

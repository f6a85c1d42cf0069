// Package planner is the LLM adapter: it prompts the oracle with the trip
// input and candidate pools, extracts the JSON draft from whatever text
// comes back, and degrades to a deterministic skeleton when the oracle
// fails or emits garbage. The adapter never fails the pipeline.
package planner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/FACorreiaa/wanderplan/internal/app/domain/geo"
	"github.com/FACorreiaa/wanderplan/internal/app/domain/selection"
	"github.com/FACorreiaa/wanderplan/internal/app/models"
	"github.com/FACorreiaa/wanderplan/internal/app/observability/metrics"
)

var _ Service = (*ServiceImpl)(nil)

// Draft is the day-plan shape the oracle is asked to emit. Everything in it
// is untrusted until the post-processor has run.
type Draft struct {
	Destination   string               `json:"destination"`
	Guests        int                  `json:"guests"`
	DurationDays  int                  `json:"duration_days"`
	WithinBudget  bool                 `json:"within_budget"`
	TotalCost     float64              `json:"total_cost"`
	CostBreakdown models.CostBreakdown `json:"cost_breakdown"`
	Days          []models.DaySchedule `json:"days"`

	// ErrorNote is set on fallback drafts and carried through to the Tour.
	ErrorNote string `json:"-"`
}

type Service interface {
	Plan(ctx context.Context, request models.TourRequest, destinationName string, picks selection.Picks, prefs models.Preferences) Draft
}

type ServiceImpl struct {
	logger *zap.Logger
	oracle Oracle
	drafts *cache.Cache
}

func NewService(oracle Oracle, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		oracle: oracle,
		drafts: cache.New(5*time.Minute, 10*time.Minute),
	}
}

// draftCacheKey hashes the full prompt: budget, candidate picks and
// preferences all shape the draft, so two requests share a cached draft
// only when the oracle would see the exact same input.
func draftCacheKey(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return "itinerary:" + hex.EncodeToString(sum[:])
}

// Plan runs one oracle round trip. Oracle failures and unparseable output
// both produce the fallback draft; only a clean parse is cached.
func (s *ServiceImpl) Plan(ctx context.Context, request models.TourRequest, destinationName string, picks selection.Picks, prefs models.Preferences) Draft {
	ctx, span := otel.Tracer("PlannerAdapter").Start(ctx, "Plan")
	defer span.End()
	span.SetAttributes(
		attribute.Int("destination.city_id", request.DestinationCityID),
		attribute.Int("duration_days", request.Days()),
	)

	l := s.logger.With(zap.String("method", "Plan"))

	prompt := buildPrompt(request, destinationName, picks, prefs)
	span.SetAttributes(attribute.Int("prompt.length", len(prompt)))

	key := draftCacheKey(prompt)
	if cached, found := s.drafts.Get(key); found {
		l.Info("Serving cached draft", zap.String("cache_key", key))
		span.SetStatus(codes.Ok, "cache hit")
		return cached.(Draft)
	}

	response, err := s.oracle.Generate(ctx, prompt)
	if err != nil {
		l.Error("Oracle call failed, using fallback draft", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "oracle failed")
		return s.fallbackDraft(request, prefs, fmt.Sprintf("oracle request failed: %v", err))
	}

	draft, err := parseDraft(response)
	if err != nil {
		l.Warn("Failed to parse oracle response, using fallback draft",
			zap.Error(err),
			zap.Int("response_length", len(response)))
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		return s.fallbackDraft(request, prefs, "failed to parse oracle response")
	}

	l.Info("Draft parsed", zap.Int("days", len(draft.Days)))
	span.SetStatus(codes.Ok, "draft parsed")
	s.drafts.Set(key, draft, cache.DefaultExpiration)
	return draft
}

// parseDraft extracts and unmarshals the JSON object from the raw oracle
// text. A draft with no days at all counts as a parse failure.
func parseDraft(response string) (Draft, error) {
	var draft Draft
	cleaned := cleanJSONResponse(response)
	if cleaned == "" {
		return draft, fmt.Errorf("response carried no JSON object")
	}
	if err := json.Unmarshal([]byte(cleaned), &draft); err != nil {
		return draft, fmt.Errorf("failed to unmarshal draft: %w", err)
	}
	if len(draft.Days) == 0 {
		return draft, fmt.Errorf("draft has no days")
	}
	return draft, nil
}

// cleanJSONResponse strips markdown fences and isolates the first balanced
// JSON object, falling back to the last closing brace when the braces never
// balance.
func cleanJSONResponse(response string) string {
	response = strings.TrimSpace(response)

	if strings.HasPrefix(response, "```json") {
		response = strings.TrimPrefix(response, "```json")
	} else if strings.HasPrefix(response, "```") {
		response = strings.TrimPrefix(response, "```")
	}
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)

	firstBrace := strings.Index(response, "{")
	if firstBrace == -1 {
		return ""
	}

	braceCount := 0
	lastValidBrace := -1
	for i := firstBrace; i < len(response); i++ {
		switch response[i] {
		case '{':
			braceCount++
		case '}':
			braceCount--
			if braceCount == 0 {
				lastValidBrace = i
			}
		}
		if lastValidBrace != -1 {
			break
		}
	}

	if lastValidBrace == -1 {
		lastBrace := strings.LastIndex(response, "}")
		if lastBrace <= firstBrace {
			return ""
		}
		lastValidBrace = lastBrace
	}

	return strings.TrimSpace(response[firstBrace : lastValidBrace+1])
}

// FallbackMode picks the transfer mode for skeleton drafts: the first liked
// mode, bus when taxi is disliked and nothing is liked, taxi otherwise.
func FallbackMode(prefs models.Preferences) string {
	if len(prefs.LikedTransportModes) > 0 {
		return prefs.LikedTransportModes[0]
	}
	for _, mode := range prefs.DislikedTransportModes {
		if mode == geo.ModeTaxi {
			return geo.ModeBus
		}
	}
	return geo.ModeTaxi
}

// FallbackDay is one skeleton day: a single transfer placeholder over an
// assumed 5 km leg, costed and timed by the geo kernel.
func FallbackDay(day int, prefs models.Preferences) models.DaySchedule {
	mode := FallbackMode(prefs)
	const assumedKm = 5.0
	distance := assumedKm
	travelTime := float64(geo.TravelTimeMin(assumedKm, mode, false))
	return models.DaySchedule{
		Day: day,
		Activities: []models.ScheduleItem{{
			StartTime:     "09:00",
			EndTime:       "09:30",
			Type:          models.ItemTransfer,
			PlaceName:     fmt.Sprintf("Transfer by %s", geo.DisplayName(mode)),
			Description:   fmt.Sprintf("Placeholder leg to the first stop of the day by %s", geo.DisplayName(mode)),
			TransportMode: mode,
			DistanceKm:    &distance,
			TravelTimeMin: &travelTime,
			Cost:          geo.TransportCost(assumedKm, mode),
		}},
	}
}

// fallbackDraft is the deterministic skeleton: one transfer placeholder per
// day over an assumed 5 km leg, costed and timed by the geo kernel.
func (s *ServiceImpl) fallbackDraft(request models.TourRequest, prefs models.Preferences, note string) Draft {
	metrics.Get().FallbackDraftsTotal.Add(context.Background(), 1)

	days := make([]models.DaySchedule, 0, request.Days())
	for day := 1; day <= request.Days(); day++ {
		days = append(days, FallbackDay(day, prefs))
	}

	return Draft{
		Guests:       request.Guests(),
		DurationDays: request.Days(),
		WithinBudget: false,
		Days:         days,
		ErrorNote:    note,
	}
}

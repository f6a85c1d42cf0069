// Package preferences normalizes raw request preferences. Hotel, restaurant
// and activity ids pass through; transport entries are rewritten to canonical
// mode tags so downstream components never see raw identifiers or free-form
// labels.
package preferences

import (
	"context"
	"regexp"
	"strings"

	a "github.com/petar-dambovaliev/aho-corasick"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/FACorreiaa/wanderplan/internal/app/domain/catalog"
	"github.com/FACorreiaa/wanderplan/internal/app/domain/geo"
	"github.com/FACorreiaa/wanderplan/internal/app/models"
)

var _ Resolver = (*ResolverImpl)(nil)

// transportIDPattern is the catalog transport identifier shape.
var transportIDPattern = regexp.MustCompile(`^T\d+$`)

// Aho-Corasick matcher for free-form mode labels. Patterns and modes are
// parallel slices; the matcher is built once.
var (
	aliasPatterns = []string{
		"walking", "on foot", "foot",
		"bicycle", "cycling",
		"motorbike", "moped",
		"cab",
		"subway", "underground",
		"shuttle", "coach",
		"automobile", "drive",
	}
	aliasModes = []string{
		geo.ModeWalk, geo.ModeWalk, geo.ModeWalk,
		geo.ModeBike, geo.ModeBike,
		geo.ModeScooter, geo.ModeScooter,
		geo.ModeTaxi,
		geo.ModeMetro, geo.ModeMetro,
		geo.ModeBus, geo.ModeBus,
		geo.ModeCar, geo.ModeCar,
	}

	aliasBuilder = a.NewAhoCorasickBuilder(a.Opts{
		AsciiCaseInsensitive: true,
		MatchOnlyWholeWords:  true,
		MatchKind:            a.LeftMostLongestMatch,
		DFA:                  true,
	})
	aliasMatcher = aliasBuilder.Build(aliasPatterns)
)

type Resolver interface {
	Resolve(ctx context.Context, raw models.Preferences) models.Preferences
}

type ResolverImpl struct {
	logger  *zap.Logger
	catalog catalog.Repository
}

func NewResolver(catalogRepo catalog.Repository, logger *zap.Logger) *ResolverImpl {
	return &ResolverImpl{logger: logger, catalog: catalogRepo}
}

// Resolve returns a normalized copy of raw. Transport entries become
// canonical mode tags; liked and disliked sets end up disjoint with liked
// winning conflicts. Lookup failures degrade to taxi instead of failing the
// request.
func (r *ResolverImpl) Resolve(ctx context.Context, raw models.Preferences) models.Preferences {
	ctx, span := otel.Tracer("PreferencesResolver").Start(ctx, "Resolve")
	defer span.End()
	span.SetAttributes(
		attribute.Int("liked_transport_modes.raw", len(raw.LikedTransportModes)),
		attribute.Int("disliked_transport_modes.raw", len(raw.DislikedTransportModes)),
	)

	resolved := models.Preferences{
		LikedHotels:            dedupe(raw.LikedHotels),
		DislikedHotels:         dedupe(raw.DislikedHotels),
		LikedRestaurants:       dedupe(raw.LikedRestaurants),
		DislikedRestaurants:    dedupe(raw.DislikedRestaurants),
		LikedActivities:        dedupe(raw.LikedActivities),
		DislikedActivities:     dedupe(raw.DislikedActivities),
		LikedTransportModes:    r.resolveModes(ctx, raw.LikedTransportModes),
		DislikedTransportModes: r.resolveModes(ctx, raw.DislikedTransportModes),
	}

	resolved.DislikedHotels = dropLiked(r.logger, "hotels", resolved.LikedHotels, resolved.DislikedHotels)
	resolved.DislikedRestaurants = dropLiked(r.logger, "restaurants", resolved.LikedRestaurants, resolved.DislikedRestaurants)
	resolved.DislikedActivities = dropLiked(r.logger, "activities", resolved.LikedActivities, resolved.DislikedActivities)
	resolved.DislikedTransportModes = dropLiked(r.logger, "transport_modes", resolved.LikedTransportModes, resolved.DislikedTransportModes)

	return resolved
}

func (r *ResolverImpl) resolveModes(ctx context.Context, entries []string) []string {
	var modes []string
	for _, entry := range entries {
		mode := r.resolveMode(ctx, entry)
		if mode != "" {
			modes = append(modes, mode)
		}
	}
	return dedupe(modes)
}

// resolveMode maps one raw transport entry to a mode tag: canonical tags are
// kept, T-prefixed identifiers go through the catalog, free-form labels
// through the alias matcher, and anything left over becomes taxi.
func (r *ResolverImpl) resolveMode(ctx context.Context, entry string) string {
	trimmed := strings.TrimSpace(entry)
	if trimmed == "" {
		return ""
	}

	lowered := strings.ToLower(trimmed)
	if geo.IsCanonicalMode(lowered) {
		return lowered
	}

	if transportIDPattern.MatchString(trimmed) {
		mode, err := r.catalog.TransportMode(ctx, trimmed)
		if err != nil {
			r.logger.Warn("transport id lookup failed, falling back to taxi",
				zap.String("transport_id", trimmed),
				zap.Error(err))
			return geo.ModeTaxi
		}
		return strings.ToLower(mode)
	}

	matches := aliasMatcher.FindAll(lowered)
	if len(matches) > 0 {
		return aliasModes[matches[0].Pattern()]
	}

	r.logger.Warn("unrecognized transport preference, falling back to taxi",
		zap.String("entry", trimmed))
	return geo.ModeTaxi
}

// dedupe trims entries, drops blanks and keeps first occurrences in order.
func dedupe(entries []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		trimmed := strings.TrimSpace(entry)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

// dropLiked removes liked entries from the disliked set; liked wins every
// conflict.
func dropLiked(logger *zap.Logger, category string, liked, disliked []string) []string {
	if len(liked) == 0 || len(disliked) == 0 {
		return disliked
	}
	likedSet := make(map[string]struct{}, len(liked))
	for _, id := range liked {
		likedSet[id] = struct{}{}
	}

	var out []string
	var dropped []string
	for _, id := range disliked {
		if _, conflict := likedSet[id]; conflict {
			dropped = append(dropped, id)
			continue
		}
		out = append(out, id)
	}
	if len(dropped) > 0 {
		logger.Warn("preference conflict, keeping liked entries",
			zap.String("category", category),
			zap.Strings("dropped_from_disliked", dropped))
	}
	return out
}

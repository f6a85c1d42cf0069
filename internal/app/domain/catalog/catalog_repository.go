// Package catalog is the read-only gateway to the travel catalog. It owns
// the decimal-to-float conversion of currency columns and the classification
// of backing-store failures.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/FACorreiaa/wanderplan/internal/app/models"
	"github.com/FACorreiaa/wanderplan/internal/app/observability/metrics"
)

var _ Repository = (*RepositoryImpl)(nil)

// psql builds every catalog query with $n placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PGXPool is the slice of pgxpool.Pool the gateway needs. pgxmock satisfies
// it in tests.
type PGXPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository interface {
	CityName(ctx context.Context, cityID int) (string, error)
	ListCities(ctx context.Context) ([]models.City, error)
	PlacesByCity(ctx context.Context, cityID int, variant models.PlaceVariant, limit int) ([]models.Place, error)
	PlaceCoords(ctx context.Context, variant models.PlaceVariant, placeID string) (float64, float64, error)
	TransportMode(ctx context.Context, transportID string) (string, error)
	TourOptionsForDestination(ctx context.Context, destinationCityID int, excludeUserID string) ([]models.TourOption, error)
	TourOptionsForUser(ctx context.Context, userID string) ([]models.TourOption, error)
	AllTourOptions(ctx context.Context) ([]models.TourOption, error)
	TourCountForUser(ctx context.Context, userID string) (int, error)
	NextTourID(ctx context.Context) (string, error)
}

type RepositoryImpl struct {
	logger       *zap.Logger
	pgpool       PGXPool
	lookups      *cache.Cache
	queryTimeout time.Duration
}

// NewRepository creates the catalog gateway. queryTimeout bounds every
// single query; zero means the 5s default.
func NewRepository(pgpool PGXPool, logger *zap.Logger, queryTimeout time.Duration) *RepositoryImpl {
	if queryTimeout <= 0 {
		queryTimeout = 5 * time.Second
	}
	return &RepositoryImpl{
		logger:       logger,
		pgpool:       pgpool,
		lookups:      cache.New(5*time.Minute, 10*time.Minute),
		queryTimeout: queryTimeout,
	}
}

func (r *RepositoryImpl) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.queryTimeout)
}

func (r *RepositoryImpl) CityName(ctx context.Context, cityID int) (string, error) {
	key := fmt.Sprintf("city_name:%d", cityID)
	if name, found := r.lookups.Get(key); found {
		return name.(string), nil
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query, args, err := psql.Select("name").From("cities").Where(sq.Eq{"city_id": cityID}).ToSql()
	if err != nil {
		return "", fmt.Errorf("failed to build city query: %w", err)
	}

	var name string
	if err := r.pgpool.QueryRow(ctx, query, args...).Scan(&name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("city %d: %w", cityID, models.ErrNotFound)
		}
		r.logger.Error("failed to query city name", zap.Int("city_id", cityID), zap.Error(err))
		return "", fmt.Errorf("failed to query city name: %w", models.ErrCatalogUnavailable)
	}

	r.lookups.Set(key, name, cache.DefaultExpiration)
	return name, nil
}

func (r *RepositoryImpl) ListCities(ctx context.Context) ([]models.City, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query, args, err := psql.Select("city_id", "name", "country").
		From("cities").
		Where("name IS NOT NULL AND name <> '' AND country IS NOT NULL AND country <> ''").
		OrderBy("name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build cities query: %w", err)
	}

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to query cities", zap.Error(err))
		return nil, fmt.Errorf("failed to query cities: %w", models.ErrCatalogUnavailable)
	}
	defer rows.Close()

	var cities []models.City
	for rows.Next() {
		var c models.City
		if err := rows.Scan(&c.ID, &c.Name, &c.Country); err != nil {
			return nil, fmt.Errorf("failed to scan city row: %w", err)
		}
		cities = append(cities, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating city rows: %w", models.ErrCatalogUnavailable)
	}
	return cities, nil
}

// PlacesByCity returns up to limit places of one variant in a city, best
// rated first.
func (r *RepositoryImpl) PlacesByCity(ctx context.Context, cityID int, variant models.PlaceVariant, limit int) ([]models.Place, error) {
	ctx, span := otel.Tracer("CatalogRepository").Start(ctx, "PlacesByCity")
	defer span.End()
	span.SetAttributes(
		attribute.Int("city.id", cityID),
		attribute.String("place.variant", string(variant)),
		attribute.Int("limit", limit),
	)

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	m := metrics.Get()
	start := time.Now()
	defer func() {
		m.CatalogQuerySeconds.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("query", "places_by_city")))
	}()

	builder, err := placeSelect(variant)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	query, args, err := builder.
		Where(sq.Eq{"city_id": cityID}).
		OrderBy("rating DESC NULLS LAST").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build %s query: %w", variant, err)
	}

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		m.CatalogErrorsTotal.Add(ctx, 1,
			metric.WithAttributes(attribute.String("query", "places_by_city")))
		r.logger.Error("failed to query places",
			zap.String("variant", string(variant)),
			zap.Int("city_id", cityID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to query %ss: %w", variant, models.ErrCatalogUnavailable)
	}
	defer rows.Close()

	var places []models.Place
	for rows.Next() {
		place, err := scanPlace(variant, rows, cityID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", variant, err)
		}
		places = append(places, place)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating %s rows: %w", variant, models.ErrCatalogUnavailable)
	}

	span.SetStatus(codes.Ok, "places fetched")
	return places, nil
}

// placeSelect builds the per-variant column list. Currency columns are cast
// to float8 here so callers never see decimals.
func placeSelect(variant models.PlaceVariant) (sq.SelectBuilder, error) {
	switch variant {
	case models.VariantHotel:
		return psql.Select(
			"hotel_id", "name",
			"COALESCE(price_per_night, 0)::float8",
			"COALESCE(rating, 0)::float8",
			"COALESCE(description, '')",
			"latitude::float8", "longitude::float8",
		).From("hotels"), nil
	case models.VariantRestaurant:
		return psql.Select(
			"restaurant_id", "name",
			"COALESCE(price_avg, 0)::float8",
			"COALESCE(cuisine_type, '')",
			"COALESCE(rating, 0)::float8",
			"COALESCE(description, '')",
			"latitude::float8", "longitude::float8",
		).From("restaurants"), nil
	case models.VariantActivity:
		return psql.Select(
			"activity_id", "name",
			"COALESCE(price, 0)::float8",
			"COALESCE(duration_hr, 0)::float8",
			"COALESCE(type, '')",
			"COALESCE(rating, 0)::float8",
			"COALESCE(description, '')",
			"latitude::float8", "longitude::float8",
		).From("activities"), nil
	case models.VariantTransport:
		return psql.Select(
			"transport_id", "type",
			"COALESCE(avg_price_per_km, 0)::float8",
			"COALESCE(min_price, 0)::float8",
			"COALESCE(max_capacity, 0)",
			"COALESCE(rating, 0)::float8",
		).From("transports"), nil
	default:
		return sq.SelectBuilder{}, fmt.Errorf("unknown place variant %q: %w", variant, models.ErrInvalidRequest)
	}
}

func scanPlace(variant models.PlaceVariant, rows pgx.Rows, cityID int) (models.Place, error) {
	p := models.Place{Variant: variant, CityID: cityID}
	var err error
	switch variant {
	case models.VariantHotel:
		err = rows.Scan(&p.ID, &p.Name, &p.PricePerNight, &p.Rating, &p.Description, &p.Latitude, &p.Longitude)
	case models.VariantRestaurant:
		err = rows.Scan(&p.ID, &p.Name, &p.PriceAvg, &p.CuisineType, &p.Rating, &p.Description, &p.Latitude, &p.Longitude)
	case models.VariantActivity:
		err = rows.Scan(&p.ID, &p.Name, &p.Price, &p.DurationHr, &p.Kind, &p.Rating, &p.Description, &p.Latitude, &p.Longitude)
	case models.VariantTransport:
		err = rows.Scan(&p.ID, &p.Mode, &p.AvgPricePerKm, &p.MinPrice, &p.MaxCapacity, &p.Rating)
		p.Name = p.Mode
	}
	return p, err
}

// PlaceCoords fetches the coordinates of a single place. Transports carry no
// geometry; requesting them reports missing coordinates.
func (r *RepositoryImpl) PlaceCoords(ctx context.Context, variant models.PlaceVariant, placeID string) (float64, float64, error) {
	var table, idCol string
	switch variant {
	case models.VariantHotel:
		table, idCol = "hotels", "hotel_id"
	case models.VariantRestaurant:
		table, idCol = "restaurants", "restaurant_id"
	case models.VariantActivity:
		table, idCol = "activities", "activity_id"
	default:
		return 0, 0, fmt.Errorf("%s %s: %w", variant, placeID, models.ErrMissingCoordinates)
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query, args, err := psql.Select("latitude::float8", "longitude::float8").
		From(table).
		Where(sq.Eq{idCol: placeID}).
		ToSql()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to build coords query: %w", err)
	}

	var lat, lon *float64
	if err := r.pgpool.QueryRow(ctx, query, args...).Scan(&lat, &lon); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, fmt.Errorf("%s %s: %w", variant, placeID, models.ErrMissingCoordinates)
		}
		r.logger.Error("failed to query coordinates",
			zap.String("variant", string(variant)),
			zap.String("place_id", placeID),
			zap.Error(err))
		return 0, 0, fmt.Errorf("failed to query coordinates: %w", models.ErrCatalogUnavailable)
	}
	if lat == nil || lon == nil {
		return 0, 0, fmt.Errorf("%s %s: %w", variant, placeID, models.ErrMissingCoordinates)
	}
	return *lat, *lon, nil
}

// TransportMode resolves a transport id to its catalog mode tag.
func (r *RepositoryImpl) TransportMode(ctx context.Context, transportID string) (string, error) {
	key := "transport_mode:" + transportID
	if mode, found := r.lookups.Get(key); found {
		return mode.(string), nil
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query, args, err := psql.Select("type").From("transports").Where(sq.Eq{"transport_id": transportID}).ToSql()
	if err != nil {
		return "", fmt.Errorf("failed to build transport query: %w", err)
	}

	var mode string
	if err := r.pgpool.QueryRow(ctx, query, args...).Scan(&mode); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("transport %s: %w", transportID, models.ErrNotFound)
		}
		r.logger.Error("failed to query transport mode", zap.String("transport_id", transportID), zap.Error(err))
		return "", fmt.Errorf("failed to query transport mode: %w", models.ErrCatalogUnavailable)
	}

	r.lookups.Set(key, mode, cache.DefaultExpiration)
	return mode, nil
}

// optionColumns is shared by every tour-option query; junction ids are
// aggregated into arrays so one row carries the whole option.
func optionSelect() sq.SelectBuilder {
	return psql.Select(
		"t.option_id", "t.user_id", "t.start_city_id", "t.destination_city_id",
		"t.guest_count", "t.duration_days", "t.target_budget::float8", "t.rating::float8",
		"array_remove(array_agg(DISTINCT th.hotel_id), NULL) AS hotel_ids",
		"array_remove(array_agg(DISTINCT ta.activity_id), NULL) AS activity_ids",
		"array_remove(array_agg(DISTINCT tr.restaurant_id), NULL) AS restaurant_ids",
		"array_remove(array_agg(DISTINCT tt.transport_id), NULL) AS transport_ids",
	).
		From("tour_options t").
		LeftJoin("tour_options_hotels th ON t.option_id = th.option_id").
		LeftJoin("tour_options_activities ta ON t.option_id = ta.option_id").
		LeftJoin("tour_options_restaurants tr ON t.option_id = tr.option_id").
		LeftJoin("tour_options_transports tt ON t.option_id = tt.option_id").
		GroupBy("t.option_id")
}

// TourOptionsForDestination returns every stored tour option for a
// destination, excluding the requesting user's own history.
func (r *RepositoryImpl) TourOptionsForDestination(ctx context.Context, destinationCityID int, excludeUserID string) ([]models.TourOption, error) {
	ctx, span := otel.Tracer("CatalogRepository").Start(ctx, "TourOptionsForDestination")
	defer span.End()
	span.SetAttributes(attribute.Int("destination.city_id", destinationCityID))

	builder := optionSelect().Where(sq.Eq{"t.destination_city_id": destinationCityID})
	if excludeUserID != "" {
		builder = builder.Where(sq.NotEq{"t.user_id": excludeUserID})
	}
	return r.queryOptions(ctx, builder, "destination options")
}

// TourOptionsForUser returns the user's own stored options.
func (r *RepositoryImpl) TourOptionsForUser(ctx context.Context, userID string) ([]models.TourOption, error) {
	return r.queryOptions(ctx, optionSelect().Where(sq.Eq{"t.user_id": userID}), "user options")
}

// AllTourOptions returns the full option history, the budget-regression
// training set.
func (r *RepositoryImpl) AllTourOptions(ctx context.Context) ([]models.TourOption, error) {
	return r.queryOptions(ctx, optionSelect(), "all options")
}

func (r *RepositoryImpl) queryOptions(ctx context.Context, builder sq.SelectBuilder, what string) ([]models.TourOption, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	m := metrics.Get()
	start := time.Now()
	defer func() {
		m.CatalogQuerySeconds.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("query", "tour_options")))
	}()

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build %s query: %w", what, err)
	}

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		m.CatalogErrorsTotal.Add(ctx, 1,
			metric.WithAttributes(attribute.String("query", "tour_options")))
		r.logger.Error("failed to query tour options", zap.String("scope", what), zap.Error(err))
		return nil, fmt.Errorf("failed to query %s: %w", what, models.ErrCatalogUnavailable)
	}
	defer rows.Close()

	var options []models.TourOption
	for rows.Next() {
		var o models.TourOption
		if err := rows.Scan(
			&o.OptionID, &o.UserID, &o.StartCityID, &o.DestinationCityID,
			&o.GuestCount, &o.DurationDays, &o.TargetBudget, &o.Rating,
			&o.HotelIDs, &o.ActivityIDs, &o.RestaurantIDs, &o.TransportIDs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan tour option row: %w", err)
		}
		options = append(options, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s rows: %w", what, models.ErrCatalogUnavailable)
	}
	return options, nil
}

// TourCountForUser drives the warm/cold branch decision.
func (r *RepositoryImpl) TourCountForUser(ctx context.Context, userID string) (int, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query, args, err := psql.Select("COUNT(*)").From("tour_options").Where(sq.Eq{"user_id": userID}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var count int
	if err := r.pgpool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		r.logger.Error("failed to count user tours", zap.String("user_id", userID), zap.Error(err))
		return 0, fmt.Errorf("failed to count user tours: %w", models.ErrCatalogUnavailable)
	}
	return count, nil
}

// NextTourID allocates a recommendation id in the historical O-number
// format. The sequence starts at O0043 for continuity with the data the
// catalog ships with.
func (r *RepositoryImpl) NextTourID(ctx context.Context) (string, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query, args, err := psql.Select("COUNT(*)").From("tour_recommendations").ToSql()
	if err != nil {
		return "", fmt.Errorf("failed to build recommendation count query: %w", err)
	}

	var count int
	if err := r.pgpool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		r.logger.Error("failed to count tour recommendations", zap.Error(err))
		return "", fmt.Errorf("failed to count tour recommendations: %w", models.ErrCatalogUnavailable)
	}
	return fmt.Sprintf("O%04d", count+43), nil
}

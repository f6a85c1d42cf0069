package tours

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FACorreiaa/wanderplan/internal/app/domain/catalog"
	"github.com/FACorreiaa/wanderplan/internal/app/domain/planner"
	"github.com/FACorreiaa/wanderplan/internal/app/domain/schedule"
	"github.com/FACorreiaa/wanderplan/internal/app/domain/selection"
	"github.com/FACorreiaa/wanderplan/internal/app/domain/similarity"
	"github.com/FACorreiaa/wanderplan/internal/app/models"
)

type MockCatalogRepo struct {
	mock.Mock
	catalog.Repository
}

func (m *MockCatalogRepo) CityName(ctx context.Context, cityID int) (string, error) {
	args := m.Called(ctx, cityID)
	return args.String(0), args.Error(1)
}

func (m *MockCatalogRepo) ListCities(ctx context.Context) ([]models.City, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.City), args.Error(1)
}

func (m *MockCatalogRepo) TourCountForUser(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockCatalogRepo) TourOptionsForUser(ctx context.Context, userID string) ([]models.TourOption, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TourOption), args.Error(1)
}

func (m *MockCatalogRepo) TourOptionsForDestination(ctx context.Context, destinationCityID int, excludeUserID string) ([]models.TourOption, error) {
	args := m.Called(ctx, destinationCityID, excludeUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TourOption), args.Error(1)
}

func (m *MockCatalogRepo) AllTourOptions(ctx context.Context) ([]models.TourOption, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TourOption), args.Error(1)
}

func (m *MockCatalogRepo) NextTourID(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

type MockResolver struct{ mock.Mock }

func (m *MockResolver) Resolve(ctx context.Context, raw models.Preferences) models.Preferences {
	args := m.Called(ctx, raw)
	return args.Get(0).(models.Preferences)
}

type MockSelector struct{ mock.Mock }

func (m *MockSelector) Pools(ctx context.Context, destinationCityID int) (selection.Pools, error) {
	args := m.Called(ctx, destinationCityID)
	return args.Get(0).(selection.Pools), args.Error(1)
}

func (m *MockSelector) Select(pools selection.Pools, request models.TourRequest, prefs models.Preferences) selection.Picks {
	args := m.Called(pools, request, prefs)
	return args.Get(0).(selection.Picks)
}

type MockPlanner struct{ mock.Mock }

func (m *MockPlanner) Plan(ctx context.Context, request models.TourRequest, destinationName string, picks selection.Picks, prefs models.Preferences) planner.Draft {
	args := m.Called(ctx, request, destinationName, picks, prefs)
	return args.Get(0).(planner.Draft)
}

type MockProcessor struct{ mock.Mock }

func (m *MockProcessor) Process(ctx context.Context, days []models.DaySchedule, prefs models.Preferences, targetBudget float64) schedule.Result {
	args := m.Called(ctx, days, prefs, targetBudget)
	return args.Get(0).(schedule.Result)
}

type fixture struct {
	catalog   *MockCatalogRepo
	resolver  *MockResolver
	selector  *MockSelector
	planner   *MockPlanner
	processor *MockProcessor
	service   *ServiceImpl
}

func newFixture() *fixture {
	f := &fixture{
		catalog:   new(MockCatalogRepo),
		resolver:  new(MockResolver),
		selector:  new(MockSelector),
		planner:   new(MockPlanner),
		processor: new(MockProcessor),
	}
	f.service = NewService(f.catalog, f.resolver, f.selector, f.planner, f.processor, "gemini-2.0-flash", zap.NewNop())
	return f
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func seedOption(optionID, userID string, dest int) models.TourOption {
	return models.TourOption{
		OptionID:          optionID,
		UserID:            userID,
		DestinationCityID: dest,
		GuestCount:        intPtr(2),
		DurationDays:      intPtr(3),
		TargetBudget:      floatPtr(600),
		Rating:            floatPtr(9),
	}
}

func happyDownstream(f *fixture, draft planner.Draft, result schedule.Result) {
	f.resolver.On("Resolve", mock.Anything, mock.Anything).Return(models.Preferences{})
	f.selector.On("Pools", mock.Anything, mock.Anything).Return(selection.Pools{}, nil)
	f.selector.On("Select", mock.Anything, mock.Anything, mock.Anything).Return(selection.Picks{})
	f.planner.On("Plan", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(draft)
	f.processor.On("Process", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(result)
}

func TestGenerateTourRequiresDestination(t *testing.T) {
	f := newFixture()

	_, _, err := f.service.GenerateTour(context.Background(), models.TourRequest{})

	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInvalidRequest)
}

func TestGenerateTourRejectsNegativeNumerics(t *testing.T) {
	f := newFixture()
	req := models.TourRequest{DestinationCityID: 3, GuestCount: intPtr(-1)}

	_, _, err := f.service.GenerateTour(context.Background(), req)

	assert.ErrorIs(t, err, models.ErrInvalidRequest)
}

func TestGenerateTourUnknownDestinationIsInvalid(t *testing.T) {
	f := newFixture()
	f.catalog.On("CityName", mock.Anything, 99).Return("", models.ErrNotFound)

	_, _, err := f.service.GenerateTour(context.Background(), models.TourRequest{DestinationCityID: 99})

	assert.ErrorIs(t, err, models.ErrInvalidRequest)
}

func TestGenerateTourCatalogFailureIsFatal(t *testing.T) {
	f := newFixture()
	f.catalog.On("CityName", mock.Anything, 3).Return("", models.ErrCatalogUnavailable)

	_, _, err := f.service.GenerateTour(context.Background(), models.TourRequest{DestinationCityID: 3})

	assert.ErrorIs(t, err, models.ErrCatalogUnavailable)
}

func TestGenerateTourColdStart(t *testing.T) {
	f := newFixture()
	seed := seedOption("O0007", "u2", 3)
	f.catalog.On("CityName", mock.Anything, 3).Return("hanoi", nil)
	f.catalog.On("TourOptionsForDestination", mock.Anything, 3, "").Return([]models.TourOption{seed}, nil)
	f.catalog.On("AllTourOptions", mock.Anything).Return([]models.TourOption{seed}, nil)
	f.catalog.On("NextTourID", mock.Anything).Return("O0043", nil)
	happyDownstream(f, planner.Draft{}, schedule.Result{
		Days:               []models.DaySchedule{{Day: 1}, {Day: 2}, {Day: 3}},
		TotalEstimatedCost: 410,
		WithinBudget:       true,
	})

	req := models.TourRequest{DestinationCityID: 3}
	tour, info, err := f.service.GenerateTour(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "O0043", tour.TourID)
	assert.Equal(t, "Hanoi", tour.DestinationCity)
	// merged from the seed option
	assert.Equal(t, 3, tour.DurationDays)
	assert.Equal(t, 2, tour.GuestCount)
	assert.Equal(t, 600.0, tour.Budget)
	assert.Equal(t, similarity.AlgorithmColdStart, info.AlgorithmUsed)
	assert.Equal(t, "O0007", info.SeedOptionID)
	assert.Equal(t, "gemini-2.0-flash", info.AIModel)
}

func TestGenerateTourTruncatesExtraDraftDays(t *testing.T) {
	f := newFixture()
	f.catalog.On("CityName", mock.Anything, 3).Return("hanoi", nil)
	f.catalog.On("TourOptionsForDestination", mock.Anything, 3, "").Return(nil, nil)
	f.catalog.On("AllTourOptions", mock.Anything).Return(nil, nil)
	f.catalog.On("NextTourID", mock.Anything).Return("O0049", nil)
	f.resolver.On("Resolve", mock.Anything, mock.Anything).Return(models.Preferences{})
	f.selector.On("Pools", mock.Anything, mock.Anything).Return(selection.Pools{}, nil)
	f.selector.On("Select", mock.Anything, mock.Anything, mock.Anything).Return(selection.Picks{})
	f.planner.On("Plan", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(planner.Draft{Days: []models.DaySchedule{{Day: 1}, {Day: 2}, {Day: 3}}})
	f.processor.On("Process", mock.Anything,
		mock.MatchedBy(func(days []models.DaySchedule) bool { return len(days) == 2 }),
		mock.Anything, mock.Anything).
		Return(schedule.Result{Days: []models.DaySchedule{{Day: 1}, {Day: 2}}})

	req := models.TourRequest{DestinationCityID: 3, DurationDays: intPtr(2)}
	tour, _, err := f.service.GenerateTour(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, 2, tour.DurationDays)
	assert.Len(t, tour.Schedule, 2)
	f.processor.AssertExpectations(t)
}

func TestGenerateTourPadsMissingDraftDays(t *testing.T) {
	f := newFixture()
	f.catalog.On("CityName", mock.Anything, 3).Return("hanoi", nil)
	f.catalog.On("TourOptionsForDestination", mock.Anything, 3, "").Return(nil, nil)
	f.catalog.On("AllTourOptions", mock.Anything).Return(nil, nil)
	f.catalog.On("NextTourID", mock.Anything).Return("O0050", nil)
	f.resolver.On("Resolve", mock.Anything, mock.Anything).Return(models.Preferences{})
	f.selector.On("Pools", mock.Anything, mock.Anything).Return(selection.Pools{}, nil)
	f.selector.On("Select", mock.Anything, mock.Anything, mock.Anything).Return(selection.Picks{})
	f.planner.On("Plan", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(planner.Draft{Days: []models.DaySchedule{{Day: 1}}})
	f.processor.On("Process", mock.Anything,
		mock.MatchedBy(func(days []models.DaySchedule) bool {
			if len(days) != 3 || days[2].Day != 3 {
				return false
			}
			// padded days are transfer skeletons
			return len(days[2].Activities) == 1 && days[2].Activities[0].Type == models.ItemTransfer
		}),
		mock.Anything, mock.Anything).
		Return(schedule.Result{Days: []models.DaySchedule{{Day: 1}, {Day: 2}, {Day: 3}}})

	req := models.TourRequest{DestinationCityID: 3, DurationDays: intPtr(3)}
	tour, _, err := f.service.GenerateTour(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, 3, tour.DurationDays)
	assert.Len(t, tour.Schedule, 3)
	f.processor.AssertExpectations(t)
}

func TestColdStartImputesBeforeNeighborRanking(t *testing.T) {
	f := newFixture()
	history := make([]models.TourOption, 0, 6)
	plain := seedOption("O1", "u1", 3)
	plain.Rating = floatPtr(5)
	plain.ActivityIDs = []string{"A1"}
	history = append(history, plain)
	for i := 2; i <= 6; i++ {
		o := seedOption(fmt.Sprintf("O%d", i), fmt.Sprintf("u%d", i), 3)
		o.Rating = floatPtr(5)
		o.ActivityIDs = []string{"A7", "A8", "A9"}
		history = append(history, o)
	}
	history[5].Rating = floatPtr(10)
	f.catalog.On("TourOptionsForDestination", mock.Anything, 3, "").Return(history, nil)
	f.catalog.On("AllTourOptions", mock.Anything).Return(history, nil)

	out, seed := f.service.coldStartSeed(context.Background(), models.TourRequest{DestinationCityID: 3})

	require.NotNil(t, seed)
	// the imputed frequent activity ids rank O2-O6 ahead of O1; O6 wins on rating
	assert.Equal(t, "O6", seed.OptionID)
	assert.Equal(t, []string{"A7", "A8", "A9"}, out.ActivityIDs)
}

func TestGenerateTourExistingUserBranch(t *testing.T) {
	f := newFixture()
	seed := seedOption("O0011", "u1", 3)
	f.catalog.On("CityName", mock.Anything, 3).Return("hanoi", nil)
	f.catalog.On("TourCountForUser", mock.Anything, "u1").Return(2, nil)
	f.catalog.On("TourOptionsForUser", mock.Anything, "u1").Return([]models.TourOption{seed}, nil)
	f.catalog.On("NextTourID", mock.Anything).Return("O0044", nil)
	happyDownstream(f, planner.Draft{}, schedule.Result{})

	req := models.TourRequest{UserID: "u1", DestinationCityID: 3}
	_, info, err := f.service.GenerateTour(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, similarity.AlgorithmExistingUser, info.AlgorithmUsed)
	assert.Equal(t, "O0011", info.SeedOptionID)
	f.catalog.AssertNotCalled(t, "TourOptionsForDestination", mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerateTourExistingUserWithoutDestinationHistoryGoesColdStart(t *testing.T) {
	f := newFixture()
	otherCity := seedOption("O0012", "u1", 7)
	f.catalog.On("CityName", mock.Anything, 3).Return("hanoi", nil)
	f.catalog.On("TourCountForUser", mock.Anything, "u1").Return(3, nil)
	f.catalog.On("TourOptionsForUser", mock.Anything, "u1").Return([]models.TourOption{otherCity}, nil)
	f.catalog.On("TourOptionsForDestination", mock.Anything, 3, "u1").Return(nil, nil)
	f.catalog.On("AllTourOptions", mock.Anything).Return(nil, nil)
	f.catalog.On("NextTourID", mock.Anything).Return("O0045", nil)
	happyDownstream(f, planner.Draft{}, schedule.Result{})

	req := models.TourRequest{UserID: "u1", DestinationCityID: 3, DurationDays: intPtr(2)}
	_, info, err := f.service.GenerateTour(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, similarity.AlgorithmColdStart, info.AlgorithmUsed)
	assert.Empty(t, info.SeedOptionID)
}

func TestGenerateTourCountFailureDegradesToColdStart(t *testing.T) {
	f := newFixture()
	f.catalog.On("CityName", mock.Anything, 3).Return("hanoi", nil)
	f.catalog.On("TourCountForUser", mock.Anything, "u1").Return(0, models.ErrCatalogUnavailable)
	f.catalog.On("TourOptionsForDestination", mock.Anything, 3, "u1").Return(nil, nil)
	f.catalog.On("AllTourOptions", mock.Anything).Return(nil, nil)
	f.catalog.On("NextTourID", mock.Anything).Return("O0046", nil)
	happyDownstream(f, planner.Draft{}, schedule.Result{})

	req := models.TourRequest{UserID: "u1", DestinationCityID: 3}
	_, info, err := f.service.GenerateTour(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, similarity.AlgorithmColdStart, info.AlgorithmUsed)
}

func TestGenerateTourPoolFailureIsFatal(t *testing.T) {
	f := newFixture()
	f.catalog.On("CityName", mock.Anything, 3).Return("hanoi", nil)
	f.catalog.On("TourOptionsForDestination", mock.Anything, 3, "").Return(nil, nil)
	f.catalog.On("AllTourOptions", mock.Anything).Return(nil, nil)
	f.resolver.On("Resolve", mock.Anything, mock.Anything).Return(models.Preferences{})
	f.selector.On("Pools", mock.Anything, 3).
		Return(selection.Pools{}, errors.New("failed to fetch candidate pools"))

	_, _, err := f.service.GenerateTour(context.Background(), models.TourRequest{DestinationCityID: 3})

	require.Error(t, err)
	f.planner.AssertNotCalled(t, "Plan", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerateTourIDFallback(t *testing.T) {
	f := newFixture()
	f.catalog.On("CityName", mock.Anything, 3).Return("hanoi", nil)
	f.catalog.On("TourCountForUser", mock.Anything, "u1").Return(0, nil)
	f.catalog.On("TourOptionsForDestination", mock.Anything, 3, "u1").Return(nil, nil)
	f.catalog.On("AllTourOptions", mock.Anything).Return(nil, nil)
	f.catalog.On("NextTourID", mock.Anything).Return("", models.ErrCatalogUnavailable)
	happyDownstream(f, planner.Draft{}, schedule.Result{})

	req := models.TourRequest{UserID: "u1", DestinationCityID: 3, DurationDays: intPtr(2)}
	tour, _, err := f.service.GenerateTour(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "gemini_u1_3_2days", tour.TourID)
}

func TestGenerateTourCarriesFallbackErrorNote(t *testing.T) {
	f := newFixture()
	f.catalog.On("CityName", mock.Anything, 3).Return("hanoi", nil)
	f.catalog.On("TourOptionsForDestination", mock.Anything, 3, "").Return(nil, nil)
	f.catalog.On("AllTourOptions", mock.Anything).Return(nil, nil)
	f.catalog.On("NextTourID", mock.Anything).Return("O0047", nil)
	happyDownstream(f,
		planner.Draft{ErrorNote: "oracle request failed: deadline exceeded"},
		schedule.Result{WithinBudget: false})

	tour, _, err := f.service.GenerateTour(context.Background(), models.TourRequest{DestinationCityID: 3})

	require.NoError(t, err)
	assert.Equal(t, "oracle request failed: deadline exceeded", tour.ErrorNote)
	assert.False(t, tour.WithinBudget)
}

func TestGenerateTourStartCityName(t *testing.T) {
	f := newFixture()
	f.catalog.On("CityName", mock.Anything, 3).Return("hanoi", nil)
	f.catalog.On("CityName", mock.Anything, 1).Return("ho chi minh city", nil)
	f.catalog.On("TourOptionsForDestination", mock.Anything, 3, "").Return(nil, nil)
	f.catalog.On("AllTourOptions", mock.Anything).Return(nil, nil)
	f.catalog.On("NextTourID", mock.Anything).Return("O0048", nil)
	happyDownstream(f, planner.Draft{}, schedule.Result{})

	req := models.TourRequest{DestinationCityID: 3, StartCityID: intPtr(1)}
	tour, _, err := f.service.GenerateTour(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "Ho Chi Minh City", tour.StartCity)
}

func TestMergeSeedNeverOverwrites(t *testing.T) {
	req := models.TourRequest{
		DestinationCityID: 3,
		GuestCount:        intPtr(4),
		HotelIDs:          []string{"H9"},
	}
	seed := seedOption("O0001", "u2", 3)
	seed.HotelIDs = []string{"H1"}

	out := mergeSeed(req, seed)

	assert.Equal(t, 4, *out.GuestCount)
	assert.Equal(t, []string{"H9"}, out.HotelIDs)
	assert.Equal(t, 3, *out.DurationDays)
	assert.Equal(t, 600.0, *out.TargetBudget)
}

func TestCitiesPassthrough(t *testing.T) {
	f := newFixture()
	cities := []models.City{{ID: 1, Name: "Hanoi", Country: "Vietnam"}}
	f.catalog.On("ListCities", mock.Anything).Return(cities, nil)

	got, err := f.service.Cities(context.Background())

	require.NoError(t, err)
	assert.Equal(t, cities, got)
}

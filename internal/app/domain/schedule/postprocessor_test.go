package schedule

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FACorreiaa/wanderplan/internal/app/domain/catalog"
	"github.com/FACorreiaa/wanderplan/internal/app/domain/geo"
	"github.com/FACorreiaa/wanderplan/internal/app/models"
)

type MockCatalogRepo struct {
	mock.Mock
	catalog.Repository
}

func (m *MockCatalogRepo) PlaceCoords(ctx context.Context, variant models.PlaceVariant, placeID string) (float64, float64, error) {
	args := m.Called(ctx, variant, placeID)
	return args.Get(0).(float64), args.Get(1).(float64), args.Error(2)
}

func (m *MockCatalogRepo) TransportMode(ctx context.Context, transportID string) (string, error) {
	args := m.Called(ctx, transportID)
	return args.String(0), args.Error(1)
}

func stop(start, end, itemType, placeID, name string, cost float64) models.ScheduleItem {
	return models.ScheduleItem{
		StartTime: start,
		EndTime:   end,
		Type:      itemType,
		PlaceID:   placeID,
		PlaceName: name,
		Cost:      cost,
	}
}

func transfer(start, end, mode string) models.ScheduleItem {
	return models.ScheduleItem{
		StartTime:     start,
		EndTime:       end,
		Type:          models.ItemTransfer,
		TransportMode: mode,
	}
}

func day(items ...models.ScheduleItem) []models.DaySchedule {
	return []models.DaySchedule{{Day: 1, Activities: items}}
}

func transfersOf(result Result) []models.ScheduleItem {
	var out []models.ScheduleItem
	for _, d := range result.Days {
		for _, item := range d.Activities {
			if item.IsTransfer() {
				out = append(out, item)
			}
		}
	}
	return out
}

func TestLikedModesRotateAcrossTransfers(t *testing.T) {
	p := NewProcessor(new(MockCatalogRepo), zap.NewNop())
	days := []models.DaySchedule{
		{Day: 1, Activities: []models.ScheduleItem{
			transfer("09:00", "09:15", "taxi"),
			stop("10:00", "10:30", models.ItemActivity, "", "Between", 0),
			transfer("11:00", "11:15", "taxi"),
		}},
		{Day: 2, Activities: []models.ScheduleItem{
			transfer("09:00", "09:15", "car"),
		}},
	}
	prefs := models.Preferences{LikedTransportModes: []string{geo.ModeBike, geo.ModeWalk}}

	result := p.Process(context.Background(), days, prefs, 1000)

	transfers := transfersOf(result)
	require.Len(t, transfers, 3)
	assert.Equal(t, geo.ModeBike, transfers[0].TransportMode)
	assert.Equal(t, geo.ModeWalk, transfers[1].TransportMode)
	// rotation carries over into the next day
	assert.Equal(t, geo.ModeBike, transfers[2].TransportMode)
}

func TestSingleLikedModeUsedEverywhere(t *testing.T) {
	p := NewProcessor(new(MockCatalogRepo), zap.NewNop())
	days := day(
		transfer("09:00", "09:15", "taxi"),
		transfer("11:00", "11:15", "metro"),
	)
	prefs := models.Preferences{LikedTransportModes: []string{geo.ModeBike}}

	result := p.Process(context.Background(), days, prefs, 1000)

	for _, tr := range transfersOf(result) {
		assert.Equal(t, geo.ModeBike, tr.TransportMode)
	}
}

func TestDislikedModeReplacedWithTaxi(t *testing.T) {
	p := NewProcessor(new(MockCatalogRepo), zap.NewNop())
	days := day(transfer("09:00", "09:15", "metro"))
	prefs := models.Preferences{DislikedTransportModes: []string{geo.ModeMetro}}

	result := p.Process(context.Background(), days, prefs, 1000)

	assert.Equal(t, geo.ModeTaxi, transfersOf(result)[0].TransportMode)
}

func TestDislikedTaxiFallsToBus(t *testing.T) {
	p := NewProcessor(new(MockCatalogRepo), zap.NewNop())
	days := day(transfer("09:00", "09:15", "taxi"))
	prefs := models.Preferences{DislikedTransportModes: []string{geo.ModeTaxi}}

	result := p.Process(context.Background(), days, prefs, 1000)

	assert.Equal(t, geo.ModeBus, transfersOf(result)[0].TransportMode)
}

func TestIDShapedModeResolvedThroughCatalog(t *testing.T) {
	mockRepo := new(MockCatalogRepo)
	mockRepo.On("TransportMode", mock.Anything, "T0042").Return("scooter", nil)
	p := NewProcessor(mockRepo, zap.NewNop())
	days := day(transfer("09:00", "09:15", "T0042"))

	result := p.Process(context.Background(), days, models.Preferences{}, 1000)

	assert.Equal(t, geo.ModeScooter, transfersOf(result)[0].TransportMode)
	mockRepo.AssertExpectations(t)
}

func TestNullAndUnknownModesBecomeTaxi(t *testing.T) {
	p := NewProcessor(new(MockCatalogRepo), zap.NewNop())
	days := day(
		transfer("09:00", "09:15", ""),
		transfer("11:00", "11:15", "null"),
		transfer("13:00", "13:15", "unknown"),
	)

	result := p.Process(context.Background(), days, models.Preferences{}, 1000)

	for _, tr := range transfersOf(result) {
		assert.Equal(t, geo.ModeTaxi, tr.TransportMode)
	}
}

func TestCatalogModeTagRetained(t *testing.T) {
	p := NewProcessor(new(MockCatalogRepo), zap.NewNop())
	days := day(transfer("09:00", "09:15", "Auto Rickshaw"))

	result := p.Process(context.Background(), days, models.Preferences{}, 1000)

	assert.Equal(t, "Auto Rickshaw", transfersOf(result)[0].TransportMode)
}

func TestTransferPlaceNameFilled(t *testing.T) {
	p := NewProcessor(new(MockCatalogRepo), zap.NewNop())
	days := day(transfer("09:00", "09:15", geo.ModeBike))

	result := p.Process(context.Background(), days, models.Preferences{}, 1000)

	assert.Equal(t, "Transfer by bicycle", transfersOf(result)[0].PlaceName)
}

func TestGeoEnrichmentFromRealCoordinates(t *testing.T) {
	mockRepo := new(MockCatalogRepo)
	// Hoan Kiem Lake to the Temple of Literature, about 2.2 km.
	mockRepo.On("PlaceCoords", mock.Anything, models.VariantActivity, "A1").
		Return(21.0288, 105.8525, nil)
	mockRepo.On("PlaceCoords", mock.Anything, models.VariantRestaurant, "R1").
		Return(21.0293, 105.8354, nil)
	p := NewProcessor(mockRepo, zap.NewNop())

	days := day(
		stop("09:00", "10:00", models.ItemActivity, "A1", "Hoan Kiem Lake", 5),
		transfer("10:00", "10:20", geo.ModeTaxi),
		stop("12:00", "14:00", models.ItemMeal, "R1", "Quan An Ngon", 12),
	)

	result := p.Process(context.Background(), days, models.Preferences{}, 1000)

	tr := transfersOf(result)[0]
	require.NotNil(t, tr.DistanceKm)
	require.NotNil(t, tr.TravelTimeMin)
	assert.InDelta(t, 1.78, *tr.DistanceKm, 0.2)
	expectedTime := geo.TravelTimeMin(*tr.DistanceKm, geo.ModeTaxi, false)
	assert.Equal(t, float64(expectedTime), *tr.TravelTimeMin)
	assert.Equal(t, geo.TransportCost(*tr.DistanceKm, geo.ModeTaxi), tr.Cost)
	// end time shifted to start + travel time
	start, _ := parseHHMM(tr.StartTime)
	end, _ := parseHHMM(tr.EndTime)
	assert.Equal(t, expectedTime, end-start)
	mockRepo.AssertExpectations(t)
}

func TestGeoEnrichmentRushHour(t *testing.T) {
	mockRepo := new(MockCatalogRepo)
	mockRepo.On("PlaceCoords", mock.Anything, models.VariantActivity, "A1").
		Return(21.00, 105.80, nil)
	mockRepo.On("PlaceCoords", mock.Anything, models.VariantActivity, "A2").
		Return(21.10, 105.90, nil)
	p := NewProcessor(mockRepo, zap.NewNop())

	days := day(
		stop("16:00", "17:00", models.ItemActivity, "A1", "First", 0),
		transfer("17:30", "17:45", geo.ModeTaxi),
		stop("19:00", "20:00", models.ItemActivity, "A2", "Second", 0),
	)

	result := p.Process(context.Background(), days, models.Preferences{}, 1000)

	tr := transfersOf(result)[0]
	require.NotNil(t, tr.DistanceKm)
	rushTime := geo.TravelTimeMin(*tr.DistanceKm, geo.ModeTaxi, true)
	assert.Equal(t, float64(rushTime), *tr.TravelTimeMin)
}

func TestMissingCoordinatesUseModeDefault(t *testing.T) {
	mockRepo := new(MockCatalogRepo)
	mockRepo.On("PlaceCoords", mock.Anything, models.VariantActivity, "A1").
		Return(0.0, 0.0, models.ErrMissingCoordinates)
	mockRepo.On("PlaceCoords", mock.Anything, models.VariantActivity, "A2").
		Return(21.0, 105.8, nil).Maybe()
	p := NewProcessor(mockRepo, zap.NewNop())

	days := day(
		stop("09:00", "10:00", models.ItemActivity, "A1", "First", 0),
		transfer("10:00", "10:20", geo.ModeBus),
		stop("12:00", "13:00", models.ItemActivity, "A2", "Second", 0),
	)

	result := p.Process(context.Background(), days, models.Preferences{}, 1000)

	tr := transfersOf(result)[0]
	require.NotNil(t, tr.DistanceKm)
	assert.Equal(t, geo.DefaultDistanceKm(geo.ModeBus), *tr.DistanceKm)
	assert.Equal(t, geo.TransportCost(geo.DefaultDistanceKm(geo.ModeBus), geo.ModeBus), tr.Cost)
}

func TestLoneTransferGetsDefaultLeg(t *testing.T) {
	p := NewProcessor(new(MockCatalogRepo), zap.NewNop())
	days := day(transfer("09:00", "09:30", geo.ModeBike))

	result := p.Process(context.Background(), days, models.Preferences{}, 1000)

	tr := transfersOf(result)[0]
	require.NotNil(t, tr.DistanceKm)
	assert.Equal(t, 3.0, *tr.DistanceKm)
	assert.Equal(t, 2.0, tr.Cost)
}

func TestLateNightTransferEndTimeClamped(t *testing.T) {
	p := NewProcessor(new(MockCatalogRepo), zap.NewNop())
	// default bike leg takes 25 minutes; the shifted end must not wrap past
	// midnight below its own start, which would get the transfer swept
	days := day(transfer("23:45", "23:50", geo.ModeBike))

	result := p.Process(context.Background(), days, models.Preferences{}, 1000)

	transfers := transfersOf(result)
	require.Len(t, transfers, 1)
	assert.Equal(t, "23:59", transfers[0].EndTime)
}

func TestSweepDropsOverlappingLaterItem(t *testing.T) {
	p := NewProcessor(new(MockCatalogRepo), zap.NewNop())
	days := day(
		stop("09:00", "11:00", models.ItemActivity, "", "Morning Museum", 10),
		stop("10:00", "12:00", models.ItemActivity, "", "Clashing Tour", 20),
	)

	result := p.Process(context.Background(), days, models.Preferences{}, 1000)

	require.Len(t, result.Days[0].Activities, 1)
	assert.Equal(t, "Morning Museum", result.Days[0].Activities[0].PlaceName)
	assert.Equal(t, 1, result.Repairs)
}

func TestSweepDropsInvalidTimeWindows(t *testing.T) {
	p := NewProcessor(new(MockCatalogRepo), zap.NewNop())
	days := day(
		stop("09:00", "08:00", models.ItemActivity, "", "Backwards", 10),
		stop("25:00", "26:00", models.ItemActivity, "", "Unparseable", 10),
		stop("10:00", "11:00", models.ItemActivity, "", "Fine", 10),
	)

	result := p.Process(context.Background(), days, models.Preferences{}, 1000)

	require.Len(t, result.Days[0].Activities, 1)
	assert.Equal(t, "Fine", result.Days[0].Activities[0].PlaceName)
}

func TestSweepSortsByStartTime(t *testing.T) {
	p := NewProcessor(new(MockCatalogRepo), zap.NewNop())
	days := day(
		stop("14:00", "15:00", models.ItemActivity, "", "Afternoon", 0),
		stop("08:00", "09:30", models.ItemActivity, "", "Morning", 0),
	)

	result := p.Process(context.Background(), days, models.Preferences{}, 1000)

	items := result.Days[0].Activities
	require.Len(t, items, 2)
	assert.Equal(t, "Morning", items[0].PlaceName)
	assert.Equal(t, "Afternoon", items[1].PlaceName)
}

func TestSweepDropsDuplicateTransfers(t *testing.T) {
	p := NewProcessor(new(MockCatalogRepo), zap.NewNop())
	days := day(
		stop("09:00", "09:30", models.ItemActivity, "", "First", 0),
		transfer("09:30", "09:45", geo.ModeWalk),
		transfer("10:00", "10:15", geo.ModeWalk),
		stop("10:30", "11:30", models.ItemActivity, "", "Second", 0),
	)

	result := p.Process(context.Background(), days, models.Preferences{}, 1000)

	assert.Len(t, transfersOf(result), 1)
}

func TestTotalsAndBudgetFlag(t *testing.T) {
	p := NewProcessor(new(MockCatalogRepo), zap.NewNop())
	days := day(
		stop("09:00", "10:00", models.ItemActivity, "", "Museum", 30),
		stop("12:00", "14:00", models.ItemMeal, "", "Lunch", 20),
		stop("20:00", "23:00", models.ItemHotel, "", "Hotel", 80),
	)

	over := p.Process(context.Background(), days, models.Preferences{}, 100)
	assert.Equal(t, 130.0, over.TotalEstimatedCost)
	assert.False(t, over.WithinBudget)
	assert.Equal(t, 30.0, over.CostBreakdown.Activities)
	assert.Equal(t, 20.0, over.CostBreakdown.Meals)
	assert.Equal(t, 80.0, over.CostBreakdown.Hotels)

	under := p.Process(context.Background(), days, models.Preferences{}, 200)
	assert.True(t, under.WithinBudget)
}

func TestParseHHMM(t *testing.T) {
	minutes, err := parseHHMM("08:30")
	require.NoError(t, err)
	assert.Equal(t, 510, minutes)

	_, err = parseHHMM("8x30")
	assert.Error(t, err)
	_, err = parseHHMM("24:00")
	assert.Error(t, err)
	_, err = parseHHMM("10:60")
	assert.Error(t, err)
}

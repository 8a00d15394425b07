package audit

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"salonbook/internal/civil"
	"salonbook/internal/model"
	"salonbook/internal/store"
)

type fakeSource struct {
	reservations []model.Reservation
	filters      []store.ReservationFilter
}

func (f *fakeSource) ListReservations(_ context.Context, _ string, filter store.ReservationFilter) ([]model.Reservation, error) {
	f.filters = append(f.filters, filter)
	return f.reservations, nil
}

func (f *fakeSource) Tenants(context.Context) ([]model.Tenant, error) {
	return []model.Tenant{{ID: 1, Code: "ginza", Name: "Ginza", Timezone: "Asia/Tokyo", IsActive: true}}, nil
}

func sampleReservations() []model.Reservation {
	staff := int64(3)
	day := civil.MustParseDate("2025-01-15")
	return []model.Reservation{
		{
			ID: 1, StaffID: &staff, StaffName: "Aoi", CustomerName: "Hanako",
			Start:  civil.DateTime{Date: day, Time: civil.MustParseLocalTime("10:00")},
			Status: model.StatusCompleted, TotalPrice: 13000, TotalDuration: 150,
			Items: []model.ReservationItem{
				{MenuID: 10, Name: "Cut", Price: 5000, Duration: 60},
				{MenuID: 11, Name: "Color", Price: 8000, Duration: 90},
			},
		},
		{
			ID: 2, CustomerName: "Taro",
			Start:  civil.DateTime{Date: day, Time: civil.MustParseLocalTime("15:00")},
			Status: model.StatusCancelled, TotalPrice: 5000, TotalDuration: 60,
		},
		{
			ID: 3, CustomerName: "Ken",
			Start:  civil.DateTime{Date: day, Time: civil.MustParseLocalTime("16:00")},
			Status: model.StatusConfirmed, TotalPrice: 5000, TotalDuration: 60,
		},
	}
}

func TestWriteReport(t *testing.T) {
	src := &fakeSource{reservations: sampleReservations()}
	from, to := civil.MustParseDate("2025-01-01"), civil.MustParseDate("2025-01-31")

	var buf bytes.Buffer
	require.NoError(t, WriteReport(context.Background(), src, NewExcelizeWriter, "ginza", from, to, &buf))
	require.Len(t, src.filters, 1)
	assert.Equal(t, from, src.filters[0].From)
	assert.Equal(t, to, src.filters[0].To)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Reservations", "Items", "Summary"}, f.GetSheetList())

	rows, err := f.GetRows("Reservations")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, []string{"1", "2025-01-15", "10:00", "Hanako", "Aoi", "completed", "150", "13000"}, rows[1][:8])
	assert.Equal(t, "-", rows[2][4])

	items, err := f.GetRows("Items")
	require.NoError(t, err)
	assert.Len(t, items, 3)

	summary, err := f.GetRows("Summary")
	require.NoError(t, err)
	require.Len(t, summary, 4)
	assert.Equal(t, []string{"cancelled", "1", "0"}, summary[1])
	assert.Equal(t, []string{"completed", "1", "13000"}, summary[2])
	assert.Equal(t, []string{"confirmed", "1", "5000"}, summary[3])
}

func TestFilenameAndPreviousMonth(t *testing.T) {
	from, to := PreviousMonth(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, "2025-02-01", from.String())
	assert.Equal(t, "2025-02-28", to.String())
	assert.Equal(t, "sales_ginza_2025-02-01_2025-02-28.xlsx", Filename("ginza", from, to))

	from, to = PreviousMonth(time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "2024-12-01", from.String())
	assert.Equal(t, "2024-12-31", to.String())
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendDocument(ctx context.Context, filename string, data io.Reader, caption string) error {
	return m.Called(ctx, filename, data, caption).Error(0)
}

func TestSendMonthly(t *testing.T) {
	src := &fakeSource{reservations: sampleReservations()}
	notifier := new(mockNotifier)
	logger := zerolog.Nop()
	svc := NewService(src, nil, notifier, &logger)
	svc.now = func() time.Time { return time.Date(2025, 2, 1, 0, 1, 0, 0, time.UTC) }

	notifier.On("SendDocument", mock.Anything, "sales_ginza_2025-01-01_2025-01-31.xlsx", mock.Anything, mock.AnythingOfType("string")).
		Return(nil).Once()

	require.NoError(t, svc.SendMonthly(context.Background()))
	notifier.AssertExpectations(t)
}

func TestServiceStartStop(t *testing.T) {
	logger := zerolog.Nop()
	svc := NewService(&fakeSource{}, nil, new(mockNotifier), &logger)
	svc.Start()
	svc.Start()
	svc.Stop()
	svc.Stop()
}

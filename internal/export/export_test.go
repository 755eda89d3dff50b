package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/njrgourav11/service-buddy-sub000/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleBookings() []*models.Booking {
	created := time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC)
	return []*models.Booking{
		{
			ID: "b1", CreatedAt: created, CustomerName: "Asha", CustomerPhone: "+91100",
			ServiceName: "AC Repair", PackageTier: "standard", Amount: 499,
			ScheduledDate: "2026-11-02", ScheduledTime: "10:30", Address: "12 MG Road",
			Status: models.StatusAssigned, PaymentStatus: models.PaymentPaid, PaymentMethod: "upi",
			TechnicianName: "Ravi",
		},
		{
			ID: "b2", CreatedAt: created, CustomerName: "Vikram", ServiceName: "Plumbing Fix",
			PackageTier: "standard", Amount: 299, Status: models.StatusCancelled, PaymentStatus: models.PaymentUnpaid,
		},
	}
}

func TestBytes(t *testing.T) {
	stats := &models.BookingStats{
		Total:    2,
		Revenue:  0,
		ByStatus: map[models.BookingStatus]int{models.StatusAssigned: 1, models.StatusCancelled: 1},
	}

	data, err := Bytes(sampleBookings(), stats)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{BookingsSheet, StatsSheet}, f.GetSheetList())

	rows, err := f.GetRows(BookingsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, bookingHeaders, rows[0])
	assert.Equal(t, "b1", rows[1][0])
	assert.Equal(t, "499", rows[1][6])
	assert.Equal(t, "assigned", rows[1][10])
	assert.Equal(t, "Ravi", rows[1][13])

	summary, err := f.GetRows(StatsSheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"Total bookings", "2"}, summary[0])
	assert.Equal(t, []string{"Status: assigned", "1"}, summary[6])
}

func TestSaveToDir(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)

	path, err := SaveToDir(dir, sampleBookings(), nil, now)
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Contains(t, path, "bookings_2026-10-17_08-00-00.xlsx")

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{BookingsSheet}, f.GetSheetList())
}

func TestBuildEmpty(t *testing.T) {
	f, err := Build(nil, nil)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(BookingsSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

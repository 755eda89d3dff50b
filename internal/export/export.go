// Package export renders bookings into an xlsx workbook for operations staff.
package export

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/njrgourav11/service-buddy-sub000/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	BookingsSheet = "Bookings"
	StatsSheet    = "Summary"
)

var bookingHeaders = []string{
	"ID", "Created", "Customer", "Phone", "Service", "Package", "Amount",
	"Date", "Time", "Address", "Status", "Payment", "Method", "Technician", "Technician phone",
}

var statusFill = map[models.BookingStatus]string{
	models.StatusPendingPayment: "#FFEB9C",
	models.StatusConfirmed:      "#DDEBF7",
	models.StatusAssigned:       "#DDEBF7",
	models.StatusInProgress:     "#E2EFDA",
	models.StatusCompleted:      "#C6EFCE",
	models.StatusCancelled:      "#FFC7CE",
}

// Build creates the workbook. The caller owns and must close it.
func Build(bookings []*models.Booking, stats *models.BookingStats) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(BookingsSheet)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	if err := writeBookings(f, bookings); err != nil {
		_ = f.Close()
		return nil, err
	}
	if stats != nil {
		if err := writeStats(f, stats); err != nil {
			_ = f.Close()
			return nil, err
		}
	}

	_ = f.DeleteSheet("Sheet1")
	return f, nil
}

// Bytes renders the workbook into memory.
func Bytes(bookings []*models.Booking, stats *models.BookingStats) ([]byte, error) {
	f, err := Build(bookings, stats)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("error writing workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// SaveToDir writes the workbook as bookings_<timestamp>.xlsx under dir.
func SaveToDir(dir string, bookings []*models.Booking, stats *models.BookingStats, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f, err := Build(bookings, stats)
	if err != nil {
		return "", err
	}
	defer f.Close()

	filePath := filepath.Join(dir, fmt.Sprintf("bookings_%s.xlsx", now.Format("2006-01-02_15-04-05")))
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}
	return filePath, nil
}

func writeBookings(f *excelize.File, bookings []*models.Booking) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("error creating style: %w", err)
	}

	for i, header := range bookingHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(BookingsSheet, cell, header)
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(bookingHeaders), 1)
	_ = f.SetCellStyle(BookingsSheet, "A1", lastHeader, headerStyle)

	statusStyles := make(map[models.BookingStatus]int, len(statusFill))
	for status, color := range statusFill {
		style, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		})
		if err != nil {
			return fmt.Errorf("error creating style: %w", err)
		}
		statusStyles[status] = style
	}

	for i, b := range bookings {
		row := i + 2
		values := []any{
			b.ID,
			b.CreatedAt.Format("2006-01-02 15:04"),
			b.CustomerName,
			b.CustomerPhone,
			b.ServiceName,
			b.PackageTier,
			b.Amount,
			b.ScheduledDate,
			b.ScheduledTime,
			b.Address,
			string(b.Status),
			string(b.PaymentStatus),
			b.PaymentMethod,
			b.TechnicianName,
			b.TechnicianPhone,
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(BookingsSheet, cell, &values); err != nil {
			return fmt.Errorf("error writing row %d: %w", row, err)
		}
		if style, ok := statusStyles[b.Status]; ok {
			statusCell, _ := excelize.CoordinatesToCellName(11, row)
			_ = f.SetCellStyle(BookingsSheet, statusCell, statusCell, style)
		}
	}

	_ = f.SetColWidth(BookingsSheet, "A", "A", 38)
	_ = f.SetColWidth(BookingsSheet, "B", "I", 16)
	_ = f.SetColWidth(BookingsSheet, "J", "J", 40)
	_ = f.SetColWidth(BookingsSheet, "K", "O", 18)
	return nil
}

func writeStats(f *excelize.File, stats *models.BookingStats) error {
	if _, err := f.NewSheet(StatsSheet); err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}

	rows := [][]any{
		{"Total bookings", stats.Total},
		{"Revenue", stats.Revenue},
		{"Payments to verify", stats.PendingVerification},
		{"Approved technicians", stats.ApprovedTechnicians},
		{"Pending technicians", stats.PendingTechnicians},
		{"Completed jobs recorded", stats.CompletedJobsRecorded},
	}

	statuses := make([]string, 0, len(stats.ByStatus))
	for s := range stats.ByStatus {
		statuses = append(statuses, string(s))
	}
	sort.Strings(statuses)
	for _, s := range statuses {
		rows = append(rows, []any{"Status: " + s, stats.ByStatus[models.BookingStatus(s)]})
	}

	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		values := r
		if err := f.SetSheetRow(StatsSheet, cell, &values); err != nil {
			return fmt.Errorf("error writing summary: %w", err)
		}
	}
	_ = f.SetColWidth(StatsSheet, "A", "A", 28)
	return nil
}

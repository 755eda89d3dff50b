// Package google mirrors bookings into a Google Sheet that operations staff
// work from.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/njrgourav11/service-buddy-sub000/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const lastColumn = "N"

var bookingHeaders = []any{
	"ID", "Created", "Customer", "Phone", "Service", "Package", "Amount",
	"Date", "Time", "Address", "Status", "Payment", "Technician", "Updated",
}

// statusColors are the row highlights applied in the status column.
var statusColors = map[models.BookingStatus]*sheets.Color{
	models.StatusPendingPayment: {Red: 1.0, Green: 0.92, Blue: 0.61},
	models.StatusConfirmed:      {Red: 0.86, Green: 0.92, Blue: 0.97},
	models.StatusAssigned:       {Red: 0.86, Green: 0.92, Blue: 0.97},
	models.StatusInProgress:     {Red: 0.89, Green: 0.94, Blue: 0.85},
	models.StatusCompleted:      {Red: 0.78, Green: 0.94, Blue: 0.81},
	models.StatusCancelled:      {Red: 1.0, Green: 0.78, Blue: 0.81},
}

var ErrRowNotFound = errors.New("booking row not found")

type SheetsService struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string

	cacheMu  sync.RWMutex
	rowCache map[string]int
	sheetID  *int64
}

func NewSheetsService(ctx context.Context, credentialsFile, spreadsheetID, sheetName string) (*SheetsService, error) {
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}
	return newSheetsService(srv, spreadsheetID, sheetName), nil
}

func newSheetsService(srv *sheets.Service, spreadsheetID, sheetName string) *SheetsService {
	if sheetName == "" {
		sheetName = "Bookings"
	}
	return &SheetsService{
		service:       srv,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		rowCache:      make(map[string]int),
	}
}

// ServiceAccountEmail returns the address the sheet must be shared with.
func ServiceAccountEmail(credentialsFile string) (string, error) {
	file, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}
	var creds struct {
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(file, &creds); err != nil {
		return "", err
	}
	return creds.ClientEmail, nil
}

func (s *SheetsService) rng(format string, args ...any) string {
	return s.sheetName + "!" + fmt.Sprintf(format, args...)
}

func (s *SheetsService) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.rng("A1")).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// WarmUpCache rebuilds the booking id to row index map from column A.
func (s *SheetsService) WarmUpCache(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.rng("A:A")).Context(ctx).Do()
	if err != nil {
		return err
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[string]int)
	for i, row := range resp.Values {
		if id := cellString(row); id != "" && i > 0 {
			s.rowCache[id] = i + 1
		}
	}
	return nil
}

// AppendBooking adds a new row and remembers where it landed.
func (s *SheetsService) AppendBooking(ctx context.Context, booking *models.Booking) error {
	resp, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, s.rng("A:A"), &sheets.ValueRange{
		Values: [][]any{bookingRowValues(booking)},
	}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return err
	}
	if resp != nil && resp.Updates != nil {
		if row, ok := rowFromRange(resp.Updates.UpdatedRange); ok {
			s.setCachedRow(booking.ID, row)
		}
	}
	return nil
}

// UpsertBooking rewrites the booking's row in place, or appends it.
func (s *SheetsService) UpsertBooking(ctx context.Context, booking *models.Booking) error {
	if booking == nil || booking.ID == "" {
		return fmt.Errorf("booking is required")
	}

	rowIdx, err := s.FindBookingRow(ctx, booking.ID)
	if errors.Is(err, ErrRowNotFound) {
		return s.AppendBooking(ctx, booking)
	}
	if err != nil {
		return err
	}

	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, s.rng("A%d:%s%d", rowIdx, lastColumn, rowIdx), &sheets.ValueRange{
		Values: [][]any{bookingRowValues(booking)},
	}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return err
	}
	return s.colorStatus(ctx, rowIdx, booking.Status)
}

// DeleteBookingRow clears the row that holds bookingID.
func (s *SheetsService) DeleteBookingRow(ctx context.Context, bookingID string) error {
	rowIdx, err := s.FindBookingRow(ctx, bookingID)
	if err != nil {
		return err
	}

	_, err = s.service.Spreadsheets.Values.Clear(s.spreadsheetID, s.rng("A%d:%s%d", rowIdx, lastColumn, rowIdx), &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err == nil {
		s.deleteCachedRow(bookingID)
	}
	return err
}

// FindBookingRow returns the 1-based row of bookingID, scanning column A on
// a cache miss.
func (s *SheetsService) FindBookingRow(ctx context.Context, bookingID string) (int, error) {
	if bookingID == "" {
		return 0, fmt.Errorf("booking id is required")
	}
	if row, ok := s.getCachedRow(bookingID); ok {
		return row, nil
	}

	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.rng("A:A")).Context(ctx).Do()
	if err != nil {
		return 0, err
	}
	for i, row := range resp.Values {
		if cellString(row) == bookingID {
			rowIdx := i + 1
			s.setCachedRow(bookingID, rowIdx)
			return rowIdx, nil
		}
	}
	return 0, ErrRowNotFound
}

// ReplaceBookingsSheet rewrites the whole sheet, header included.
func (s *SheetsService) ReplaceBookingsSheet(ctx context.Context, bookings []*models.Booking) error {
	_, err := s.service.Spreadsheets.Values.Clear(s.spreadsheetID, s.rng("A:Z"), &sheets.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to clear bookings sheet: %w", err)
	}

	values := make([][]any, 0, len(bookings)+1)
	values = append(values, bookingHeaders)
	for _, b := range bookings {
		values = append(values, bookingRowValues(b))
	}

	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, s.rng("A1"), &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to update bookings sheet: %w", err)
	}

	s.cacheMu.Lock()
	s.rowCache = make(map[string]int, len(bookings))
	for i, b := range bookings {
		s.rowCache[b.ID] = i + 2
	}
	s.cacheMu.Unlock()
	return nil
}

// colorStatus highlights the status cell of rowIdx.
func (s *SheetsService) colorStatus(ctx context.Context, rowIdx int, status models.BookingStatus) error {
	color, ok := statusColors[status]
	if !ok {
		return nil
	}
	sheetID, err := s.SheetID(ctx)
	if err != nil {
		return err
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{Requests: []*sheets.Request{{
		RepeatCell: &sheets.RepeatCellRequest{
			Range: &sheets.GridRange{
				SheetId:          sheetID,
				StartRowIndex:    int64(rowIdx - 1),
				EndRowIndex:      int64(rowIdx),
				StartColumnIndex: 10,
				EndColumnIndex:   11,
			},
			Cell: &sheets.CellData{
				UserEnteredFormat: &sheets.CellFormat{BackgroundColor: color},
			},
			Fields: "userEnteredFormat(backgroundColor)",
		},
	}}}
	if _, err := s.service.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("unable to apply formatting: %w", err)
	}
	return nil
}

// SheetID resolves the numeric id of the configured sheet once.
func (s *SheetsService) SheetID(ctx context.Context) (int64, error) {
	s.cacheMu.RLock()
	cached := s.sheetID
	s.cacheMu.RUnlock()
	if cached != nil {
		return *cached, nil
	}

	spreadsheet, err := s.service.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("unable to get spreadsheet: %w", err)
	}
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == s.sheetName {
			id := sheet.Properties.SheetId
			s.cacheMu.Lock()
			s.sheetID = &id
			s.cacheMu.Unlock()
			return id, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", s.sheetName)
}

func (s *SheetsService) getCachedRow(id string) (int, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *SheetsService) setCachedRow(id string, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[id] = row
}

func (s *SheetsService) deleteCachedRow(id string) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	delete(s.rowCache, id)
}

func (s *SheetsService) ClearCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[string]int)
}

func bookingRowValues(b *models.Booking) []any {
	return []any{
		b.ID,
		b.CreatedAt.Format("2006-01-02 15:04:05"),
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
		b.TechnicianName,
		b.UpdatedAt.Format("2006-01-02 15:04:05"),
	}
}

var rangeRowPattern = regexp.MustCompile(`![A-Z]+(\d+)`)

// rowFromRange extracts the first row number from "Sheet!A10:N10".
func rowFromRange(a1 string) (int, bool) {
	m := rangeRowPattern.FindStringSubmatch(a1)
	if m == nil {
		return 0, false
	}
	row, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return row, true
}

func cellString(row []any) string {
	if len(row) == 0 {
		return ""
	}
	switch v := row[0].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// syncTimeout bounds a single sheet write.
const syncTimeout = 30 * time.Second

// Apply performs one ledger operation with its own deadline.
func (s *SheetsService) Apply(ctx context.Context, taskType string, booking *models.Booking) error {
	ctx, cancel := context.WithTimeout(ctx, syncTimeout)
	defer cancel()

	switch taskType {
	case models.SyncTaskUpsert:
		return s.UpsertBooking(ctx, booking)
	case models.SyncTaskDelete:
		return s.DeleteBookingRow(ctx, booking.ID)
	default:
		return fmt.Errorf("unknown sync task type %q", taskType)
	}
}

package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"trackbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// ExportStore is the storage surface the report builder reads from.
type ExportStore interface {
	ListHostBookingsByDateRange(ctx context.Context, hostID int64, start, end time.Time) ([]*models.Booking, error)
}

// Exporter writes host booking reports as xlsx files.
type Exporter struct {
	store  ExportStore
	path   string
	logger *zerolog.Logger
}

func NewExporter(store ExportStore, path string, logger *zerolog.Logger) *Exporter {
	return &Exporter{store: store, path: path, logger: logger}
}

// HostBookingsReport writes all bookings of one host between two dates to
// an xlsx file and returns the file path.
func (e *Exporter) HostBookingsReport(ctx context.Context, hostID int64, startDate, endDate time.Time) (string, error) {
	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %v", err)
	}

	bookings, err := e.store.ListHostBookingsByDateRange(ctx, hostID, startDate, endDate)
	if err != nil {
		return "", fmt.Errorf("error getting bookings: %v", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Bookings"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Period: %s - %s",
		startDate.Format("02.01.2006"), endDate.Format("02.01.2006")))

	headers := []string{"Date", "Type", "Booking ID", "Booked for", "Seats", "Price", "Currency", "Status"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, header)
	}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	lastHeader, _ := excelize.CoordinatesToCellName(len(headers), 2)
	_ = f.SetCellStyle(sheetName, "A2", lastHeader, headerStyle)

	row := 3
	var totalSeats int
	var totalRevenue float64
	for _, booking := range bookings {
		businessType := models.BusinessTypeTrack
		if booking.IsEventBooking() {
			businessType = models.BusinessTypeEvent
		}
		values := []any{
			booking.StartAt.Format("02.01.2006"),
			businessType,
			booking.ID,
			booking.BookingFor,
			booking.NumPeople,
			booking.Price,
			booking.Currency,
			booking.Status,
		}
		for i, value := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			_ = f.SetCellValue(sheetName, cell, value)
		}
		totalSeats += booking.NumPeople
		if booking.Status == models.BookingStatusPaid {
			totalRevenue += booking.Price
		}
		row++
	}

	totalCell, _ := excelize.CoordinatesToCellName(1, row+1)
	_ = f.SetCellValue(sheetName, totalCell,
		fmt.Sprintf("Total: %d bookings, %d seats, %.2f paid revenue", len(bookings), totalSeats, totalRevenue))

	_ = f.SetColWidth(sheetName, "A", "A", 14)
	_ = f.SetColWidth(sheetName, "B", "H", 12)
	_ = f.MergeCell(sheetName, "A1", lastHeader[:1]+"1")

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("bookings_%d_%s_to_%s.xlsx",
		hostID,
		startDate.Format("2006-01-02"),
		endDate.Format("2006-01-02"))
	filePath := filepath.Join(e.path, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %v", err)
	}

	e.logger.Info().Str("file_path", filePath).Int("bookings", len(bookings)).Msg("Excel report created")
	return filePath, nil
}

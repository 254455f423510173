package history

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

var exportHeader = []string{"Action ID", "Request ID", "Vehicle", "Command", "Status", "Error", "Started", "Completed"}

func exportRow(entry Entry) []string {
	return []string{
		entry.ActionID,
		entry.RequestID,
		entry.VehicleID,
		string(entry.Kind),
		string(entry.Status),
		entry.ErrorMessage,
		formatTime(entry.StartedAt),
		formatTime(entry.CompletedAt),
	}
}

// BuildCSV renders the history listing as CSV.
func BuildCSV(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if err := w.Write(exportRow(entry)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildXLSX renders the history listing as a workbook.
func BuildXLSX(entries []Entry) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "actions"
	f.SetSheetName("Sheet1", sheet)

	for col, title := range exportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(sheet, cell, title)
	}
	for i, entry := range entries {
		for col, value := range exportRow(entry) {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, err
			}
			_ = f.SetCellValue(sheet, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildPDF renders the history listing as a table.
func BuildPDF(entries []Entry) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Command History")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 9)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC3339)))
	pdf.Ln(8)

	widths := []float64{45, 45, 35, 30, 25, 40, 30, 30}
	pdf.SetFont("Arial", "B", 8)
	for i, title := range exportHeader {
		pdf.CellFormat(widths[i], 6, title, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 8)
	for _, entry := range entries {
		for i, value := range exportRow(entry) {
			pdf.CellFormat(widths[i], 6, value, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Package export renders reservation reports as Excel workbooks for
// the admin dashboard.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"espacios/internal/models"
)

// Report holds everything the workbook shows: the full reservation
// list (already ordered for display) and the detected conflict pairs.
type Report struct {
	Reservations []models.Reservation
	Conflicts    []models.ConflictPair
}

// WriteXLSX writes the report as an .xlsx workbook with one sheet of
// reservations and one of conflicts.
func WriteXLSX(w io.Writer, report Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeReservations(f, report.Reservations); err != nil {
		return err
	}
	if err := writeConflicts(f, report.Conflicts); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeReservations(f *excelize.File, reservations []models.Reservation) error {
	const sheet = "Reservations"
	f.SetSheetName("Sheet1", sheet)

	headers := []interface{}{
		"ID", "Name", "Surname", "National ID", "Role",
		"Date", "Start", "Duration (min)", "Resource",
	}
	if err := writeRow(f, sheet, 1, headers); err != nil {
		return err
	}
	if err := boldRow(f, sheet, 1, len(headers)); err != nil {
		return err
	}

	for i, r := range reservations {
		row := []interface{}{
			r.ID, r.Name, r.Surname, r.NationalID, r.Role,
			r.Date, r.StartTime, r.EffectiveDuration(), r.Resource,
		}
		if err := writeRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeConflicts(f *excelize.File, conflicts []models.ConflictPair) error {
	const sheet = "Conflicts"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}

	headers := []interface{}{
		"Date", "Resource",
		"ID A", "Start A", "Duration A",
		"ID B", "Start B", "Duration B",
		"Suggestion",
	}
	if err := writeRow(f, sheet, 1, headers); err != nil {
		return err
	}
	if err := boldRow(f, sheet, 1, len(headers)); err != nil {
		return err
	}

	for i, c := range conflicts {
		suggestion := fmt.Sprintf("move #%d to %s", c.MoveID, c.SuggestedStart)
		row := []interface{}{
			c.Date, c.Resource,
			c.FirstID, c.FirstStart, c.FirstDuration,
			c.SecondID, c.SecondStart, c.SecondDuration,
			suggestion,
		}
		if err := writeRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}

func boldRow(f *excelize.File, sheet string, row, columns int) error {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	start, _ := excelize.CoordinatesToCellName(1, row)
	end, _ := excelize.CoordinatesToCellName(columns, row)
	return f.SetCellStyle(sheet, start, end, style)
}

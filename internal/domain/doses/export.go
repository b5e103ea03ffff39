package doses

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const adherenceSheet = "Adherence"

var adherenceHeader = []string{
	"Date",
	"Scheduled",
	"Taken",
	"Missed",
	"Upcoming",
	"Rate",
}

// AdherenceXLSX arma la planilla de adherencia: una fila por día y una fila final de total.
func AdherenceXLSX(a Adherence) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(adherenceSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	rateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 10}) // 0.00%
	if err != nil {
		return nil, fmt.Errorf("create rate style: %w", err)
	}

	for col, h := range adherenceHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(adherenceSheet, cell, h); err != nil {
			return nil, fmt.Errorf("set header %s: %w", cell, err)
		}
		if err := f.SetCellStyle(adherenceSheet, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("set header style: %w", err)
		}
	}
	if err := f.SetColWidth(adherenceSheet, "A", "A", 14); err != nil {
		return nil, err
	}

	row := 2
	for _, d := range a.Days {
		if err := writeAdherenceRow(f, row, d.Date.String(), d.Counts, rateStyle); err != nil {
			return nil, err
		}
		row++
	}
	if err := writeAdherenceRow(f, row, "Total", a.Counts, rateStyle); err != nil {
		return nil, err
	}

	if err := f.SetPanes(adherenceSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func writeAdherenceRow(f *excelize.File, row int, label string, c Counts, rateStyle int) error {
	values := []any{label, c.Scheduled, c.Taken, c.Missed, c.Upcoming, c.Rate()}
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(adherenceSheet, cell, v); err != nil {
			return fmt.Errorf("set cell %s: %w", cell, err)
		}
	}
	rateCell, _ := excelize.CoordinatesToCellName(len(values), row)
	return f.SetCellStyle(adherenceSheet, rateCell, rateCell, rateStyle)
}

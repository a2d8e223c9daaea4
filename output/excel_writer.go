package output

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"tjsync/inspect"
)

type ExcelWriter struct{}

func (w *ExcelWriter) Write(path string, rows []inspect.Row) error {
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		records = append(records, diffRecord(row))
	}
	return writeExcelSheet(path, "Diff", diffHeaders, records)
}

func writeExcelSheet(path, sheetName string, headers []string, records [][]string) error {
	file := excelize.NewFile()
	defer file.Close()

	sheet := file.GetSheetName(0)
	if sheetName != "" && sheetName != sheet {
		if err := file.SetSheetName(sheet, sheetName); err != nil {
			return fmt.Errorf("rename excel sheet: %w", err)
		}
		sheet = sheetName
	}

	for col, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := file.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("set excel header %s: %w", cell, err)
		}
	}

	for i, values := range records {
		row := i + 2
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := file.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("set excel value %s: %w", cell, err)
			}
		}
	}

	if err := file.SaveAs(path); err != nil {
		return fmt.Errorf("save excel output %s: %w", path, err)
	}

	return nil
}

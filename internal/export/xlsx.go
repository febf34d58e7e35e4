package export

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/podreach/leadpipe/internal/review"
)

// sheetName is the single worksheet the export writes.
const sheetName = "Leads"

// WriteXLSX writes the rows as an XLSX workbook with the standard export
// header.
func WriteXLSX(rows []review.QueueRow, outputPath string) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet(sheetName)
	if err != nil {
		return eris.Wrap(err, "export: add xlsx sheet")
	}

	header := sheet.AddRow()
	for _, col := range columns {
		header.AddCell().Value = col
	}

	for _, r := range rows {
		xr := sheet.AddRow()
		for _, val := range buildRow(r) {
			xr.AddCell().Value = val
		}
	}

	if err := file.Save(outputPath); err != nil {
		return eris.Wrap(err, "export: save xlsx file")
	}

	zap.L().Info("xlsx export complete",
		zap.String("path", outputPath),
		zap.Int("rows", len(rows)))
	return nil
}

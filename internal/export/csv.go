package export

import (
	"encoding/csv"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/podreach/leadpipe/internal/review"
)

// WriteCSV writes the rows as a CSV file with the standard export header.
func WriteCSV(rows []review.QueueRow, outputPath string) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return eris.Wrap(err, "export: create csv file")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(columns); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}

	for _, r := range rows {
		if err := w.Write(buildRow(r)); err != nil {
			return eris.Wrapf(err, "export: write csv row %s", r.Lead.ID)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "export: flush csv")
	}

	zap.L().Info("csv export complete",
		zap.String("path", outputPath),
		zap.Int("rows", len(rows)))
	return nil
}

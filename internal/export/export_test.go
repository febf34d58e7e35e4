package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/podreach/leadpipe/internal/model"
	"github.com/podreach/leadpipe/internal/review"
)

func exportRows() []review.QueueRow {
	added := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	latest := time.Date(2026, 1, 25, 12, 0, 0, 0, time.UTC)
	reviewed := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	full := review.QueueRow{
		Lead: model.Lead{
			ID:           "l1",
			Identity:     "id-1",
			Title:        "The Compiler Hour",
			FeedURL:      "https://example.com/feed",
			Website:      "https://example.com",
			Author:       "Sam Host",
			Categories:   []string{"Technology", "Education"},
			EpisodeCount: 120,
			AudienceSize: 45000,
			DateAdded:    added,
		},
		Profile: &model.EnrichedProfile{
			Lead:                    model.Lead{ID: "l1"},
			OwnerEmail:              "sam@example.com",
			LatestEpisode:           latest,
			PublishingFrequencyDays: 7.0,
			DataSources:             []string{"rss", "listennotes"},
		},
		Vetting: &model.VettingResult{
			LeadID: "l1", CompositeScore: 88, QualityTier: model.TierA,
		},
		Review: model.ReviewRecord{
			LeadID: "l1", Status: model.ReviewApproved, Feedback: "strong fit", ReviewedAt: &reviewed,
		},
	}

	bare := review.QueueRow{
		Lead: model.Lead{
			ID: "l2", Identity: "id-2", Title: "Bare Show", DateAdded: added,
		},
		Review: model.ReviewRecord{LeadID: "l2", Status: model.ReviewApproved},
	}

	return []review.QueueRow{full, bare}
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leads.csv")
	require.NoError(t, WriteCSV(exportRows(), path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, columns, records[0])

	full := records[1]
	assert.Equal(t, "The Compiler Hour", full[0])
	assert.Equal(t, "sam@example.com", full[4])
	assert.Equal(t, "Technology; Education", full[5])
	assert.Equal(t, "120", full[6])
	assert.Equal(t, "7.0", full[9])
	assert.Equal(t, "88", full[10])
	assert.Equal(t, "A", full[11])
	assert.Equal(t, "approved", full[12])
	assert.Equal(t, "rss; listennotes", full[14])

	bare := records[2]
	assert.Equal(t, "Bare Show", bare[0])
	// No vetting result means empty score and tier, never a fabricated D.
	assert.Empty(t, bare[10])
	assert.Empty(t, bare[11])
}

func TestWriteCSV_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, WriteCSV(nil, path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, columns, records[0])
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leads.xlsx")
	require.NoError(t, WriteXLSX(exportRows(), path))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)

	sheet := f.Sheets[0]
	assert.Equal(t, sheetName, sheet.Name)
	require.Len(t, sheet.Rows, 3)

	assert.Equal(t, "Name", sheet.Rows[0].Cells[0].Value)
	assert.Equal(t, "The Compiler Hour", sheet.Rows[1].Cells[0].Value)
	assert.Equal(t, "A", sheet.Rows[1].Cells[11].Value)
	assert.Equal(t, "Bare Show", sheet.Rows[2].Cells[0].Value)
}

func TestBuildRow_UnvettedScoreBlank(t *testing.T) {
	row := review.QueueRow{
		Lead: model.Lead{ID: "l1", Title: "Show", DateAdded: time.Now()},
		Vetting: &model.VettingResult{
			LeadID:         "l1",
			CompositeScore: model.CompositeScoreUndefined,
			QualityTier:    model.TierUnvetted,
		},
		Review: model.ReviewRecord{LeadID: "l1", Status: model.ReviewPending},
	}

	cells := buildRow(row)
	assert.Empty(t, cells[10])
	assert.Equal(t, "Unvetted", cells[11])
}

package domain

import "time"

// FileFormat names a supported bitext dialect.
type FileFormat string

const (
	FormatXLIFF12 FileFormat = "xliff-1.2"
	FormatMemoQ   FileFormat = "memoq-xliff"
)

// FileStatus is the aggregate state of a bitext file, derived from its
// units' statuses rather than tracked as a running counter.
type FileStatus string

const (
	FileStatusPending    FileStatus = "pending"
	FileStatusProcessing FileStatus = "processing"
	FileStatusTranslated FileStatus = "translated"
	FileStatusReviewing  FileStatus = "reviewing"
	FileStatusCompleted  FileStatus = "completed"
	FileStatusError      FileStatus = "error"
)

// File is the owning aggregate for a set of translation units.
type File struct {
	ID             string     `json:"id"`
	ProjectID      string     `json:"project_id"`
	Name           string     `json:"name"`
	OriginalName   string     `json:"original_name"`
	Path           string     `json:"path"`
	Format         FileFormat `json:"format"`
	SourceLanguage string     `json:"source_language"`
	TargetLanguage string     `json:"target_language"`
	Status         FileStatus `json:"status"`
	Stats          FileStats  `json:"stats"`
	Error          string     `json:"error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// FileStats holds per-outcome unit counts for a file.
type FileStats struct {
	Total        int `json:"total"`
	Pending      int `json:"pending"`
	Translating  int `json:"translating"`
	Translated   int `json:"translated"`
	TranslatedTM int `json:"translated_tm"`
	Reviewed     int `json:"reviewed"`
	Completed    int `json:"completed"`
	Failed       int `json:"failed"`
}

// Progress returns the fraction of units past translation, 0-1.
func (s FileStats) Progress() float64 {
	if s.Total == 0 {
		return 0
	}
	done := s.Total - s.Pending - s.Translating
	return float64(done) / float64(s.Total)
}

// StatsFromUnits recomputes aggregate counts by scanning unit statuses.
// Recomputation after each unit finishes avoids drift under concurrent
// per-unit updates.
func StatsFromUnits(units []*Unit) FileStats {
	stats := FileStats{Total: len(units)}
	for _, u := range units {
		switch u.Status {
		case UnitStatusPending:
			stats.Pending++
		case UnitStatusTranslating:
			stats.Translating++
		case UnitStatusTranslated:
			stats.Translated++
		case UnitStatusTranslatedTM:
			stats.TranslatedTM++
		case UnitStatusError, UnitStatusReviewFailed:
			stats.Failed++
		case UnitStatusReviewing, UnitStatusReviewPending, UnitStatusReviewCompleted:
			stats.Reviewed++
		case UnitStatusCompleted:
			stats.Completed++
		}
	}
	return stats
}

// StatusFromStats derives the aggregate file status. Partial failure is
// surfaced as error rather than pretending success.
func StatusFromStats(stats FileStats) FileStatus {
	switch {
	case stats.Total == 0:
		return FileStatusPending
	case stats.Failed > 0 && stats.Pending == 0 && stats.Translating == 0:
		return FileStatusError
	case stats.Completed == stats.Total:
		return FileStatusCompleted
	case stats.Reviewed > 0:
		return FileStatusReviewing
	case stats.Pending == 0 && stats.Translating == 0:
		return FileStatusTranslated
	case stats.Translating > 0 || stats.Translated > 0 || stats.TranslatedTM > 0:
		return FileStatusProcessing
	default:
		return FileStatusPending
	}
}

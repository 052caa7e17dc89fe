package journal

import (
	"time"

	"github.com/daylog/backend/internal/models"
)

const dateFormat = "2006-01-02"

// FilterAll passes every entry through FilterByType unfiltered.
const FilterAll = "all"

// DateGroup holds the entries for one calendar date, in input order.
type DateGroup struct {
	Date    string
	Entries []models.LogEntry
}

// GroupByDate partitions entries by their date string. Groups appear in
// order of first occurrence and entries keep their relative order.
func GroupByDate(entries []models.LogEntry) []DateGroup {
	index := make(map[string]int, len(entries))
	var groups []DateGroup

	for _, entry := range entries {
		i, ok := index[entry.DateStr]
		if !ok {
			i = len(groups)
			index[entry.DateStr] = i
			groups = append(groups, DateGroup{Date: entry.DateStr})
		}
		groups[i].Entries = append(groups[i].Entries, entry)
	}

	return groups
}

// FilterByType subsets entries by session type, preserving relative
// order. The FilterAll sentinel passes everything through.
func FilterByType(entries []models.LogEntry, filter string) []models.LogEntry {
	if filter == FilterAll {
		out := make([]models.LogEntry, len(entries))
		copy(out, entries)
		return out
	}

	want := models.LogType(filter)
	var out []models.LogEntry
	for _, entry := range entries {
		if entry.Type == want {
			out = append(out, entry)
		}
	}
	return out
}

// MonthMarkers reports, for each day of the given month that has entries,
// whether at least one morning and one night session exist.
func MonthMarkers(entries []models.LogEntry, year int, month time.Month) map[int]models.DailyStatus {
	markers := make(map[int]models.DailyStatus)

	for _, entry := range entries {
		day, ok := dayInMonth(entry.DateStr, year, month)
		if !ok {
			continue
		}

		status := markers[day]
		switch entry.Type {
		case models.LogTypeMorning:
			status.HasMorning = true
		case models.LogTypeNight:
			status.HasNight = true
		}
		markers[day] = status
	}

	return markers
}

// Stats computes the dashboard statistics relative to now: the count of
// distinct logged dates across all time, and the count of entries whose
// timestamp falls in now's calendar month.
func Stats(entries []models.LogEntry, now time.Time) models.Statistics {
	dates := make(map[string]struct{}, len(entries))
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	monthEnd := monthStart.AddDate(0, 1, 0)

	var thisMonth int
	for _, entry := range entries {
		dates[entry.DateStr] = struct{}{}

		at := time.UnixMilli(entry.Timestamp).In(now.Location())
		if !at.Before(monthStart) && at.Before(monthEnd) {
			thisMonth++
		}
	}

	return models.Statistics{
		Streak:          len(dates),
		VideosThisMonth: thisMonth,
	}
}

func dayInMonth(dateStr string, year int, month time.Month) (int, bool) {
	t, err := time.Parse(dateFormat, dateStr)
	if err != nil {
		return 0, false
	}
	if t.Year() != year || t.Month() != month {
		return 0, false
	}
	return t.Day(), true
}

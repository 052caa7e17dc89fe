package journal

import (
	"testing"
	"time"

	"github.com/daylog/backend/internal/models"
)

func entry(id string, t models.LogType, dateStr string, ts int64) models.LogEntry {
	return models.LogEntry{ID: id, OwnerID: "user-1", Type: t, DateStr: dateStr, Timestamp: ts}
}

func TestGroupByDatePreservesOrder(t *testing.T) {
	entries := []models.LogEntry{
		entry("a", models.LogTypeMorning, "2024-03-01", 100),
		entry("b", models.LogTypeNight, "2024-03-01", 200),
		entry("c", models.LogTypeMorning, "2024-02-29", 50),
	}

	groups := GroupByDate(entries)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups got %d", len(groups))
	}
	if groups[0].Date != "2024-03-01" || len(groups[0].Entries) != 2 {
		t.Fatalf("unexpected first group %+v", groups[0])
	}
	if groups[0].Entries[0].ID != "a" || groups[0].Entries[1].ID != "b" {
		t.Fatalf("expected input order preserved within group, got %+v", groups[0].Entries)
	}
	if groups[1].Date != "2024-02-29" {
		t.Fatalf("unexpected second group %+v", groups[1])
	}
}

func TestFilterByType(t *testing.T) {
	entries := []models.LogEntry{
		entry("a", models.LogTypeMorning, "2024-03-01", 300),
		entry("b", models.LogTypeNight, "2024-03-01", 200),
		entry("c", models.LogTypeNight, "2024-02-28", 100),
	}

	nights := FilterByType(entries, string(models.LogTypeNight))
	if len(nights) != 2 {
		t.Fatalf("expected 2 night entries got %d", len(nights))
	}
	if nights[0].ID != "b" || nights[1].ID != "c" {
		t.Fatalf("expected relative order preserved, got %+v", nights)
	}

	all := FilterByType(entries, FilterAll)
	if len(all) != 3 {
		t.Fatalf("expected pass-through for all filter got %d", len(all))
	}
}

func TestMonthMarkers(t *testing.T) {
	entries := []models.LogEntry{
		entry("a", models.LogTypeMorning, "2024-03-01", 100),
		entry("b", models.LogTypeNight, "2024-03-01", 200),
		entry("c", models.LogTypeMorning, "2024-03-15", 300),
		entry("d", models.LogTypeNight, "2024-04-01", 400),
	}

	markers := MonthMarkers(entries, 2024, time.March)

	first := markers[1]
	if !first.HasMorning || !first.HasNight {
		t.Fatalf("expected both sessions marked for day 1, got %+v", first)
	}

	mid := markers[15]
	if !mid.HasMorning || mid.HasNight {
		t.Fatalf("expected morning-only marker for day 15, got %+v", mid)
	}

	if _, ok := markers[2]; ok {
		t.Fatal("expected no marker for an empty day")
	}
	if _, ok := markers[31]; ok {
		t.Fatal("expected april entry excluded from march markers")
	}
}

func TestStats(t *testing.T) {
	now := time.Date(2024, time.March, 20, 12, 0, 0, 0, time.UTC)
	inMonth := time.Date(2024, time.March, 5, 8, 0, 0, 0, time.UTC).UnixMilli()
	lastMonth := time.Date(2024, time.February, 5, 8, 0, 0, 0, time.UTC).UnixMilli()

	entries := []models.LogEntry{
		entry("a", models.LogTypeMorning, "2024-03-05", inMonth),
		entry("b", models.LogTypeMorning, "2024-02-05", lastMonth),
	}

	stats := Stats(entries, now)
	if stats.Streak != 2 {
		t.Fatalf("expected streak of 2 distinct dates got %d", stats.Streak)
	}
	if stats.VideosThisMonth != 1 {
		t.Fatalf("expected 1 entry this month got %d", stats.VideosThisMonth)
	}

	if got := Stats(nil, now); got.Streak != 0 || got.VideosThisMonth != 0 {
		t.Fatalf("expected zero stats for empty collection got %+v", got)
	}
}

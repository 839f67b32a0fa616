package storage

import (
	"testing"
	"time"

	"github.com/armdoe/dsproc/internal/datastream"
	"github.com/armdoe/dsproc/internal/model"
)

func mkTime(y, m, d, h, mi, s int) model.Time {
	return model.FromGoTime(time.Date(y, time.Month(m), d, h, mi, s, 0, time.UTC))
}

func TestNextSplitTimeOnHoursMidnightBoundary(t *testing.T) {
	policy := datastream.SplitPolicy{Mode: datastream.SplitOnHours, Start: 0, Interval: 24}
	after := mkTime(2024, 3, 1, 20, 0, 0)
	got := nextSplitTime(policy, after)
	want := mkTime(2024, 3, 2, 0, 0, 0)
	if !got.Equal(want) {
		t.Fatalf("nextSplitTime = %v, want %v", got.GoTime(), want.GoTime())
	}
}

func TestNextSplitTimeOnHoursAtBoundary(t *testing.T) {
	policy := datastream.SplitPolicy{Mode: datastream.SplitOnHours, Start: 0, Interval: 24}
	after := mkTime(2024, 3, 1, 0, 0, 0)
	got := nextSplitTime(policy, after)
	want := mkTime(2024, 3, 2, 0, 0, 0)
	if !got.Equal(want) {
		t.Fatalf("nextSplitTime = %v, want %v", got.GoTime(), want.GoTime())
	}
}

func TestNextSplitTimeOnDaysWeekly(t *testing.T) {
	policy := datastream.SplitPolicy{Mode: datastream.SplitOnDays, Start: 1, Interval: 7}
	after := mkTime(2024, 3, 5, 12, 0, 0)
	got := nextSplitTime(policy, after)
	want := mkTime(2024, 3, 8, 0, 0, 0)
	if !got.Equal(want) {
		t.Fatalf("nextSplitTime = %v, want %v", got.GoTime(), want.GoTime())
	}
}

func TestNextSplitTimeOnMonthsQuarterly(t *testing.T) {
	policy := datastream.SplitPolicy{Mode: datastream.SplitOnMonths, Start: 1, Interval: 3}
	after := mkTime(2024, 2, 15, 0, 0, 0)
	got := nextSplitTime(policy, after)
	want := mkTime(2024, 4, 1, 0, 0, 0)
	if !got.Equal(want) {
		t.Fatalf("nextSplitTime = %v, want %v", got.GoTime(), want.GoTime())
	}
}

func TestSplitBoundaryBetweenDetectsCrossing(t *testing.T) {
	policy := datastream.SplitPolicy{Mode: datastream.SplitOnHours, Start: 0, Interval: 24}
	fileEnd := mkTime(2024, 3, 1, 20, 0, 0)
	beginAfterMidnight := mkTime(2024, 3, 2, 1, 0, 0)
	if !splitBoundaryBetween(policy, fileEnd, beginAfterMidnight) {
		t.Error("expected a split boundary between 20:00 and the next day's 01:00")
	}
	beginSameDay := mkTime(2024, 3, 1, 22, 0, 0)
	if splitBoundaryBetween(policy, fileEnd, beginSameDay) {
		t.Error("did not expect a split boundary within the same day")
	}
}

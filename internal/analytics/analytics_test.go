package analytics

import (
	"bytes"
	"strings"
	"testing"

	"github.com/TobiSchelling/nexuscds/internal/database"
	"github.com/TobiSchelling/nexuscds/internal/triage"
)

func TestBuildEmpty(t *testing.T) {
	v := Build(nil)
	if !v.Empty || v.Total != 0 {
		t.Errorf("expected empty view, got %+v", v)
	}
	if len(v.Distribution) != 3 {
		t.Fatalf("expected 3 levels even when empty, got %d", len(v.Distribution))
	}
	for _, lc := range v.Distribution {
		if lc.Count != 0 || lc.Percent != 0 {
			t.Errorf("expected zero counts, got %+v", lc)
		}
	}
	if len(v.Trend) != 0 || v.AvgConfidence != 0 {
		t.Errorf("unexpected trend data %+v", v)
	}
}

func TestBuildDistributionAndTrend(t *testing.T) {
	rows := []database.TrendRow{
		{Timestamp: "2026-03-14 09:00", TriageLevel: triage.Green, Confidence: 40},
		{Timestamp: "2026-03-14 09:05", TriageLevel: triage.Red, Confidence: 92},
		{Timestamp: "2026-03-14 09:10", TriageLevel: triage.Red, Confidence: 88},
		{Timestamp: "2026-03-14 09:15", TriageLevel: triage.Yellow, Confidence: 60},
	}
	v := Build(rows)

	if v.Empty || v.Total != 4 {
		t.Fatalf("unexpected totals %+v", v)
	}

	want := []struct {
		level triage.Level
		count int
	}{{triage.Red, 2}, {triage.Yellow, 1}, {triage.Green, 1}}
	for i, w := range want {
		got := v.Distribution[i]
		if got.Level != w.level || got.Count != w.count {
			t.Errorf("distribution[%d] = %+v, want %s=%d", i, got, w.level, w.count)
		}
	}
	if v.Distribution[0].Percent != 50 {
		t.Errorf("expected Red at 50%%, got %v", v.Distribution[0].Percent)
	}

	if len(v.Trend) != 4 || v.Trend[0].Confidence != 40 || v.Trend[3].Timestamp != "2026-03-14 09:15" {
		t.Errorf("trend not in insertion order: %+v", v.Trend)
	}
	if v.AvgConfidence != 70 {
		t.Errorf("expected average 70, got %v", v.AvgConfidence)
	}
}

func TestCharts(t *testing.T) {
	v := Build([]database.TrendRow{
		{Timestamp: "2026-03-14 09:00", TriageLevel: triage.Red, Confidence: 92},
		{Timestamp: "2026-03-14 09:05", TriageLevel: triage.Green, Confidence: 55},
	})

	var trend bytes.Buffer
	if err := TrendChart(v, &trend); err != nil {
		t.Fatalf("TrendChart: %v", err)
	}
	if !strings.Contains(trend.String(), "echarts") || !strings.Contains(trend.String(), "2026-03-14 09:05") {
		t.Error("trend chart missing expected content")
	}

	var dist bytes.Buffer
	if err := DistributionChart(v, &dist); err != nil {
		t.Fatalf("DistributionChart: %v", err)
	}
	if !strings.Contains(dist.String(), "Yellow") {
		t.Error("distribution chart should list every level")
	}
}

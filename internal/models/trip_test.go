package models

import (
	"encoding/json"
	"testing"
)

func TestOutputColumnsSignature(t *testing.T) {
	cols := OutputColumns()

	if len(cols) != 24 {
		t.Fatalf("expected 24 output columns, got %d", len(cols))
	}
	if cols[0].Name != "trip_id" || cols[0].Type != "string" {
		t.Errorf("unexpected first column %+v", cols[0])
	}
	if cols[len(cols)-1].Name != "distance_category" {
		t.Errorf("unexpected last column %+v", cols[len(cols)-1])
	}

	seen := make(map[string]bool, len(cols))
	for _, col := range cols {
		if seen[col.Name] {
			t.Errorf("duplicate column %s", col.Name)
		}
		seen[col.Name] = true
	}
}

func TestTripJSONOmitsAbsentMetrics(t *testing.T) {
	data, err := json.Marshal(&Trip{TripID: "id1"})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	for _, absent := range []string{"speed_kmh", "distance_km", "fare_per_km", "tip_percentage", "distance_category"} {
		if _, ok := decoded[absent]; ok {
			t.Errorf("expected absent metric %s to be omitted", absent)
		}
	}
	if _, ok := decoded["haversine_miles"]; !ok {
		t.Error("expected haversine_miles to always be present")
	}
}

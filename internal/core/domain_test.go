package core

import (
	"errors"
	"testing"
)

func TestStateValidate(t *testing.T) {
	cases := []struct {
		s  State
		ok bool
	}{
		{State{Name: "Uttar Pradesh", Code: "UP"}, true},
		{State{Name: "Bihar", Code: "BR"}, true},
		{State{Name: "", Code: "BR"}, false},
		{State{Name: "Bihar", Code: "B"}, false},
		{State{Name: "Bihar", Code: "BIHAR"}, false},
	}
	for i, tc := range cases {
		err := tc.s.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestDistrictValidate(t *testing.T) {
	good := District{Name: "Lucknow", StateID: 1, Centroid: &LatLon{Lat: 26.8467, Lon: 80.9462}}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []District{
		{Name: "", StateID: 1},
		{Name: "Lucknow", StateID: 0},
		{Name: "Lucknow", StateID: 1, Centroid: &LatLon{Lat: 126, Lon: 80}},
	}
	for i, d := range bads {
		if err := d.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestMonthlyMetricValidate(t *testing.T) {
	good := MonthlyMetric{DistrictID: 1, StateID: 1, Period: NewPeriod(2024, 12)}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bad := good
	bad.Period.Month = 13
	if err := bad.Validate(); !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}

	bad = good
	bad.Households.Total = -1
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected error for negative households")
	}

	bad = good
	bad.DistrictID = 0
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected error for missing district")
	}
}

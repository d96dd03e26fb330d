package core

import (
	"errors"
	"strings"
	"time"
)

type (
	LatLon struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	}

	State struct {
		ID        int64
		Name      string
		Code      string // two-letter state code, e.g. "UP"
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	District struct {
		ID        int64
		Name      string
		Code      string // district code from data.gov.in, may be empty
		StateID   int64
		Centroid  *LatLon
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	Households struct {
		Total int64
		SC    int64 // Scheduled Caste
		ST    int64 // Scheduled Tribe
		Women int64
	}

	Works struct {
		Total      int64
		Completed  int64
		InProgress int64
	}

	// Finances are in rupees.
	Finances struct {
		TotalFunds          float64
		FundsUtilized       float64
		WageExpenditure     float64
		MaterialExpenditure float64
	}

	PersonDays struct {
		Total int64
		SC    int64
		ST    int64
		Women int64
	}

	// MonthlyMetric is one district's scheme performance for one month.
	MonthlyMetric struct {
		ID         int64
		DistrictID int64
		StateID    int64
		Period     Period
		Households Households
		Works      Works
		Finances   Finances
		PersonDays PersonDays
		IsLatest   bool
		SourceURL  string
		UpdatedAt  time.Time
	}
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidPeriod      = errors.New("invalid period")
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyName          = errors.New("empty name")
	ErrInvalidStateCode   = errors.New("invalid state code")
)

func (s State) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrEmptyName
	}
	code := strings.TrimSpace(s.Code)
	if len(code) < 2 || len(code) > 3 {
		return ErrInvalidStateCode
	}
	return nil
}

func (d District) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return ErrEmptyName
	}
	if d.StateID <= 0 {
		return errors.New("district must belong to a state")
	}
	if d.Centroid != nil {
		return ValidateCoordinates(d.Centroid.Lat, d.Centroid.Lon)
	}
	return nil
}

func (m MonthlyMetric) Validate() error {
	if m.DistrictID <= 0 || m.StateID <= 0 {
		return errors.New("metric must reference a district and a state")
	}
	if err := m.Period.Validate(); err != nil {
		return err
	}
	if m.Households.Total < 0 || m.PersonDays.Total < 0 || m.Works.Total < 0 {
		return errors.New("counts cannot be negative")
	}
	return nil
}

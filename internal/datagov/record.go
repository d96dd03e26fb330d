package datagov

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"mgnrega/internal/core"
)

// Value is a record field. The API publishes numbers either as JSON numbers
// or as strings, so both are accepted and kept as text.
type Value string

func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*v = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = Value(s)
		return nil
	}
	*v = Value(b)
	return nil
}

func (v Value) String() string { return strings.TrimSpace(string(v)) }

// Record is one district-month row of the MGNREGA "at a glance" resource.
type Record struct {
	FinYear      Value `json:"fin_year"`
	Month        Value `json:"month"`
	StateCode    Value `json:"state_code"`
	StateName    Value `json:"state_name"`
	DistrictCode Value `json:"district_code"`
	DistrictName Value `json:"district_name"`

	TotalHouseholds Value `json:"Total_Households_Worked"`
	SCHouseholds    Value `json:"SC_Households_Worked"`
	STHouseholds    Value `json:"ST_Households_Worked"`
	WomenHouseholds Value `json:"Women_Households_Worked"`

	TotalWorks      Value `json:"Total_No_of_Works_Takenup"`
	CompletedWorks  Value `json:"Number_of_Completed_Works"`
	InProgressWorks Value `json:"Number_of_Ongoing_Works"`

	TotalFunds          Value `json:"Total_Funds_Available"`
	FundsUtilized       Value `json:"Total_Exp"`
	WageExpenditure     Value `json:"Wages"`
	MaterialExpenditure Value `json:"Material_and_skilled_Wages"`

	PersonDays      Value `json:"Persondays_of_Central_Liability_so_far"`
	SCPersonDays    Value `json:"SC_persondays"`
	STPersonDays    Value `json:"ST_persondays"`
	WomenPersonDays Value `json:"Women_Persondays"`
}

// Row is a decoded record, ready to be attached to stored state and district
// IDs.
type Row struct {
	StateCode    string
	StateName    string
	DistrictCode string
	DistrictName string
	Metric       core.MonthlyMetric
}

// Decode converts a record into typed figures. The metric's IDs are left
// zero.
func (r Record) Decode() (Row, error) {
	name := r.DistrictName.String()
	if name == "" {
		return Row{}, fmt.Errorf("record without district name: %w", core.ErrEmptyName)
	}
	period, err := core.PeriodFromFinYear(r.FinYear.String(), r.Month.String())
	if err != nil {
		return Row{}, fmt.Errorf("district %s: %w", name, err)
	}

	p := parser{}
	m := core.MonthlyMetric{
		Period: period,
		Households: core.Households{
			Total: p.count(r.TotalHouseholds),
			SC:    p.count(r.SCHouseholds),
			ST:    p.count(r.STHouseholds),
			Women: p.count(r.WomenHouseholds),
		},
		Works: core.Works{
			Total:      p.count(r.TotalWorks),
			Completed:  p.count(r.CompletedWorks),
			InProgress: p.count(r.InProgressWorks),
		},
		Finances: core.Finances{
			TotalFunds:          p.lakhs(r.TotalFunds),
			FundsUtilized:       p.lakhs(r.FundsUtilized),
			WageExpenditure:     p.lakhs(r.WageExpenditure),
			MaterialExpenditure: p.lakhs(r.MaterialExpenditure),
		},
		PersonDays: core.PersonDays{
			Total: p.count(r.PersonDays),
			SC:    p.count(r.SCPersonDays),
			ST:    p.count(r.STPersonDays),
			Women: p.count(r.WomenPersonDays),
		},
	}
	if p.err != nil {
		return Row{}, fmt.Errorf("district %s %s: %w", name, period, p.err)
	}

	return Row{
		StateCode:    strings.ToUpper(r.StateCode.String()),
		StateName:    r.StateName.String(),
		DistrictCode: r.DistrictCode.String(),
		DistrictName: name,
		Metric:       m,
	}, nil
}

// parser keeps the first error so a record decodes in one pass.
type parser struct{ err error }

func (p *parser) count(v Value) int64 {
	n, err := core.ParseCount(v.String())
	if err != nil && p.err == nil {
		p.err = err
	}
	return n
}

// lakhs reads an amount published in lakh rupees and returns rupees.
func (p *parser) lakhs(v Value) float64 {
	f, err := core.ParseAmount(v.String())
	if err != nil && p.err == nil {
		p.err = err
	}
	return core.LakhsToRupees(f)
}

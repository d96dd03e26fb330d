package datagov

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"mgnrega/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRecord = `{
	"fin_year": "2024-2025",
	"month": "Dec",
	"state_code": "up",
	"state_name": "UTTAR PRADESH",
	"district_code": "3101",
	"district_name": "LUCKNOW",
	"Total_Households_Worked": "1,23,456",
	"SC_Households_Worked": 24000,
	"ST_Households_Worked": "NA",
	"Women_Households_Worked": "60000",
	"Total_No_of_Works_Takenup": "850",
	"Number_of_Completed_Works": "300",
	"Number_of_Ongoing_Works": "550",
	"Total_Funds_Available": "5000.5",
	"Total_Exp": "4500.25",
	"Wages": "3000",
	"Material_and_skilled_Wages": "1500.25",
	"Persondays_of_Central_Liability_so_far": "3703680",
	"SC_persondays": "740000",
	"ST_persondays": null,
	"Women_Persondays": "1850000"
}`

func TestRecordDecode(t *testing.T) {
	var r Record
	require.NoError(t, json.Unmarshal([]byte(sampleRecord), &r))

	row, err := r.Decode()
	require.NoError(t, err)
	assert.Equal(t, "UP", row.StateCode)
	assert.Equal(t, "LUCKNOW", row.DistrictName)
	assert.Equal(t, "3101", row.DistrictCode)

	m := row.Metric
	assert.Equal(t, core.NewPeriod(2024, 12), m.Period)
	assert.EqualValues(t, 123456, m.Households.Total)
	assert.EqualValues(t, 24000, m.Households.SC)
	assert.EqualValues(t, 0, m.Households.ST)
	assert.EqualValues(t, 300, m.Works.Completed)
	assert.Equal(t, 500050000.0, m.Finances.TotalFunds)
	assert.Equal(t, 450025000.0, m.Finances.FundsUtilized)
	assert.EqualValues(t, 0, m.PersonDays.ST)
	assert.Zero(t, m.DistrictID)
}

func TestRecordDecodeErrors(t *testing.T) {
	cases := []struct {
		name string
		rec  Record
		err  error
	}{
		{"no district", Record{FinYear: "2024-2025", Month: "Jan"}, core.ErrEmptyName},
		{"bad month", Record{FinYear: "2024-2025", Month: "Smarch", DistrictName: "Patna"}, core.ErrInvalidPeriod},
		{"bad number", Record{FinYear: "2024-2025", Month: "Jan", DistrictName: "Patna", Wages: "12x"}, core.ErrInvalidAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.rec.Decode()
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

// pagedServer serves total records named D0..Dn in pages.
func pagedServer(t *testing.T, total int, hits *int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		assert.Equal(t, "/resource-id", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("api-key"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "BIHAR", r.URL.Query().Get("filters[state_name]"))

		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		var recs []map[string]string
		for i := offset; i < total && i < offset+limit; i++ {
			recs = append(recs, map[string]string{
				"fin_year": "2024-2025", "month": "Nov", "district_name": fmt.Sprintf("D%d", i),
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"records": recs, "total": total, "count": len(recs)})
	}))
}

func newTestClient(url string) *Client {
	return NewClient(Config{BaseURL: url + "/", ResourceID: "resource-id", APIKey: "secret"}, nil)
}

func TestFetchAllFollowsPages(t *testing.T) {
	var hits int32
	srv := pagedServer(t, 5, &hits)
	defer srv.Close()

	c := newTestClient(srv.URL)
	recs, err := c.FetchAll(context.Background(), Query{StateName: "Bihar", Limit: 2})
	require.NoError(t, err)
	require.Len(t, recs, 5)
	assert.Equal(t, "D4", recs[4].DistrictName.String())
	assert.EqualValues(t, 3, atomic.LoadInt32(&hits))
}

func TestFetchPageIsCached(t *testing.T) {
	var hits int32
	srv := pagedServer(t, 3, &hits)
	defer srv.Close()

	c := newTestClient(srv.URL)
	q := Query{StateName: "bihar", Limit: 10}
	p1, err := c.FetchPage(context.Background(), q)
	require.NoError(t, err)
	p2, err := c.FetchPage(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, p1, p2)
	assert.Equal(t, 3, p1.Total)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
	assert.Equal(t, 1, c.Cache().Size())
}

func TestFetchPageErrors(t *testing.T) {
	status := http.StatusTooManyRequests
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "slow down", status)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.FetchPage(context.Background(), Query{})
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits), "rate limits are not retried")

	status = http.StatusForbidden
	_, err = c.FetchPage(context.Background(), Query{})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusForbidden, se.Code)
	assert.Equal(t, "slow down", se.Body)
	assert.Equal(t, 0, c.Cache().Size(), "errors are not cached")
}

func TestFetchPageBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>maintenance</html>"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchPage(context.Background(), Query{})
	assert.ErrorContains(t, err, "failed to parse response")
}

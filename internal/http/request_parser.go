// This file implements helpers for parsing query and path parameters.

package http

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"mgnrega/internal/storage"
)

// paramError is a client error naming the offending parameter.
type paramError struct {
	name   string
	reason string
}

func (e *paramError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.name, e.reason)
}

// ParsePathID reads a positive integer path value.
func ParsePathID(r *http.Request, name string) (int64, error) {
	v := strings.TrimSpace(r.PathValue(name))
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, &paramError{name: name, reason: "must be a positive integer"}
	}
	return id, nil
}

// QueryInt reads an integer query parameter, returning def when absent.
func QueryInt(q url.Values, name string, def, min, max int) (int, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &paramError{name: name, reason: "must be an integer"}
	}
	if n < min || n > max {
		return 0, &paramError{name: name, reason: fmt.Sprintf("must be between %d and %d", min, max)}
	}
	return n, nil
}

// QueryFloat reads a required float query parameter.
func QueryFloat(q url.Values, name string) (float64, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return 0, &paramError{name: name, reason: "is required"}
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, &paramError{name: name, reason: "must be a number"}
	}
	return f, nil
}

// ParsePagination reads skip and limit with the given default limit.
func ParsePagination(q url.Values, defLimit, maxLimit int) (skip, limit int, err error) {
	if skip, err = QueryInt(q, "skip", 0, 0, 1<<30); err != nil {
		return 0, 0, err
	}
	if limit, err = QueryInt(q, "limit", defLimit, 1, maxLimit); err != nil {
		return 0, 0, err
	}
	return skip, limit, nil
}

// ParseMetricFilter reads the optional year and month parameters.
func ParseMetricFilter(q url.Values) (storage.MetricFilter, error) {
	var f storage.MetricFilter
	if q.Get("year") != "" {
		y, err := QueryInt(q, "year", 0, 2005, 9999)
		if err != nil {
			return f, err
		}
		f.Year = &y
	}
	if q.Get("month") != "" {
		m, err := QueryInt(q, "month", 0, 1, 12)
		if err != nil {
			return f, err
		}
		f.Month = &m
	}
	return f, nil
}

// ParseIDList reads a comma separated list of positive ids, dropping
// duplicates and keeping order.
func ParseIDList(raw, name string) ([]int64, error) {
	var ids []int64
	seen := make(map[int64]bool)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, &paramError{name: name, reason: fmt.Sprintf("%q is not a valid id", part)}
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, &paramError{name: name, reason: "is required"}
	}
	return ids, nil
}

// sanitizeStateCode keeps letters only, upper-cased.
func sanitizeStateCode(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	return strings.ToUpper(b.String())
}

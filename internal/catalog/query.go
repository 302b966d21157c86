package catalog

import (
	"net/url"
	"strconv"
	"strings"
)

// Query describes one space-track basicspacedata request. Predicates are
// rendered in the service's path-style encoding:
//
//	/basicspacedata/query/class/tle_latest/ORDINAL/1/APOGEE/<2000/.../format/json
type Query struct {
	Class      string
	Predicates []Predicate
	OrderBy    string
	Descending bool
	Limit      int
}

// Predicate is a single field filter, e.g. {Field: "APOGEE", Op: "<2000"}.
type Predicate struct {
	Field string
	Op    string
}

// DebrisQuery returns the fixed high-risk LEO debris query: latest TLE per
// object, bounded by apogee/perigee/period, debris only, high drag first.
func DebrisQuery(limit int) Query {
	return Query{
		Class: "tle_latest",
		Predicates: []Predicate{
			{Field: "ORDINAL", Op: "1"},
			{Field: "APOGEE", Op: "<2000"},
			{Field: "PERIGEE", Op: ">160"},
			{Field: "PERIOD", Op: "88--127"},
			{Field: "OBJECT_TYPE", Op: "debris"},
			{Field: "BSTAR", Op: ">0.0001"},
			{Field: "DECAYED", Op: "false"},
		},
		OrderBy:    "BSTAR",
		Descending: true,
		Limit:      limit,
	}
}

// Path renders the query as a URL path below the service base URL.
func (q Query) Path() string {
	var b strings.Builder
	b.WriteString("/basicspacedata/query/class/")
	b.WriteString(q.Class)

	for _, p := range q.Predicates {
		b.WriteByte('/')
		b.WriteString(p.Field)
		b.WriteByte('/')
		b.WriteString(url.PathEscape(p.Op))
	}

	if q.OrderBy != "" {
		order := q.OrderBy
		if q.Descending {
			order += " desc"
		}
		b.WriteString("/orderby/")
		b.WriteString(url.PathEscape(order))
	}
	if q.Limit > 0 {
		b.WriteString("/limit/")
		b.WriteString(strconv.Itoa(q.Limit))
	}
	b.WriteString("/format/json")

	return b.String()
}

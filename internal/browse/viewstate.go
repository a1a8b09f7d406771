package browse

import "net/url"

// SortField selects the comparator used for the display list.
type SortField string

const (
	SortName SortField = "name"
	SortType SortField = "type"
	SortSize SortField = "size"
)

// SortFields lists the fields in cycling order.
var SortFields = []SortField{SortType, SortName, SortSize}

// SortDirection is asc or desc.
type SortDirection string

const (
	Asc  SortDirection = "asc"
	Desc SortDirection = "desc"
)

// Query parameter names.
const (
	ParamSort      = "sort"
	ParamDirection = "direction"
	ParamFilter    = "filter"
)

// ViewState controls how a listing is presented.
type ViewState struct {
	Sort      SortField
	Direction SortDirection
	Filter    string
}

// DefaultViewState lists directories first with no filter.
func DefaultViewState() ViewState {
	return ViewState{Sort: SortType, Direction: Asc}
}

// ParseSortField returns the field named s, or false if s is not a field.
func ParseSortField(s string) (SortField, bool) {
	switch f := SortField(s); f {
	case SortName, SortType, SortSize:
		return f, true
	}
	return "", false
}

// ParseSortDirection returns the direction named s, or false.
func ParseSortDirection(s string) (SortDirection, bool) {
	switch d := SortDirection(s); d {
	case Asc, Desc:
		return d, true
	}
	return "", false
}

// ParseViewState reads sort, direction and filter from q. Missing or
// unrecognized values fall back to the defaults.
func ParseViewState(q url.Values) ViewState {
	v := DefaultViewState()
	if f, ok := ParseSortField(q.Get(ParamSort)); ok {
		v.Sort = f
	}
	if d, ok := ParseSortDirection(q.Get(ParamDirection)); ok {
		v.Direction = d
	}
	v.Filter = q.Get(ParamFilter)
	return v
}

// encodeSort writes the sort keys into q.
func (v ViewState) encodeSort(q url.Values) {
	q.Set(ParamSort, string(v.Sort))
	q.Set(ParamDirection, string(v.Direction))
}

// encodeFilter writes the filter key into q, removing it when empty.
func (v ViewState) encodeFilter(q url.Values) {
	if v.Filter == "" {
		q.Del(ParamFilter)
		return
	}
	q.Set(ParamFilter, v.Filter)
}

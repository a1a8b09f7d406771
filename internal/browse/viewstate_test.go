package browse

import (
	"net/url"
	"testing"
)

func TestParseViewState(t *testing.T) {
	tests := []struct {
		query string
		want  ViewState
	}{
		{"", ViewState{Sort: SortType, Direction: Asc}},
		{"sort=size&direction=desc&filter=log", ViewState{Sort: SortSize, Direction: Desc, Filter: "log"}},
		{"sort=bogus&direction=sideways", ViewState{Sort: SortType, Direction: Asc}},
		{"sort=name", ViewState{Sort: SortName, Direction: Asc}},
		{"filter=a%20b", ViewState{Sort: SortType, Direction: Asc, Filter: "a b"}},
	}
	for _, tt := range tests {
		q, err := url.ParseQuery(tt.query)
		if err != nil {
			t.Fatalf("ParseQuery(%q): %v", tt.query, err)
		}
		if got := ParseViewState(q); got != tt.want {
			t.Errorf("ParseViewState(%q) = %+v, want %+v", tt.query, got, tt.want)
		}
	}
}

func TestEncodeKeepsUnknownKeys(t *testing.T) {
	q := url.Values{"view": {"grid"}, ParamFilter: {"old"}}
	v := ViewState{Sort: SortName, Direction: Desc}

	v.encodeSort(q)
	if q.Get(ParamSort) != "name" || q.Get(ParamDirection) != "desc" {
		t.Errorf("sort keys = %q/%q, want name/desc", q.Get(ParamSort), q.Get(ParamDirection))
	}
	if q.Get(ParamFilter) != "old" {
		t.Errorf("encodeSort touched the filter: %q", q.Get(ParamFilter))
	}

	v.encodeFilter(q)
	if q.Has(ParamFilter) {
		t.Errorf("empty filter should delete the key, got %q", q.Get(ParamFilter))
	}
	if q.Get("view") != "grid" {
		t.Errorf("unknown key lost: %v", q)
	}

	v.Filter = "a b"
	v.encodeFilter(q)
	if q.Get(ParamFilter) != "a b" {
		t.Errorf("filter = %q, want %q", q.Get(ParamFilter), "a b")
	}
}

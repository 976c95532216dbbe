package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newContext(target string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	rec := httptest.NewRecorder()
	return e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), rec), rec
}

func TestFromContext_NoParams(t *testing.T) {
	c, _ := newContext("/")
	if _, ok := FromContext(c); ok {
		t.Error("expected ok=false without paging params")
	}
}

func TestFromContext(t *testing.T) {
	tests := []struct {
		target      string
		limit, offs int
	}{
		{"/?limit=50&offset=10", 50, 10},
		{"/?offset=5", DefaultLimit, 5},
		{"/?limit=500", MaxLimit, 0},
		{"/?limit=-1&offset=-3", DefaultLimit, 0},
		{"/?limit=abc&offset=2", DefaultLimit, 2},
	}
	for _, tt := range tests {
		c, _ := newContext(tt.target)
		p, ok := FromContext(c)
		if !ok {
			t.Fatalf("%s: expected ok", tt.target)
		}
		if p.Limit != tt.limit || p.Offset != tt.offs {
			t.Errorf("%s: expected %d/%d, got %d/%d", tt.target, tt.limit, tt.offs, p.Limit, p.Offset)
		}
	}
}

func TestSlice(t *testing.T) {
	items := []int{0, 1, 2, 3, 4}
	tests := []struct {
		p    Params
		want []int
	}{
		{Params{}, []int{0, 1, 2, 3, 4}},
		{Params{Limit: 2}, []int{0, 1}},
		{Params{Limit: 2, Offset: 4}, []int{4}},
		{Params{Offset: 3}, []int{3, 4}},
		{Params{Limit: 2, Offset: 9}, []int{}},
		{Params{Limit: -1, Offset: -1}, []int{0, 1, 2, 3, 4}},
	}
	for _, tt := range tests {
		got := Slice(items, tt.p)
		if len(got) != len(tt.want) {
			t.Errorf("%+v: expected %v, got %v", tt.p, tt.want, got)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("%+v: expected %v, got %v", tt.p, tt.want, got)
				break
			}
		}
	}
}

func TestApply(t *testing.T) {
	c, rec := newContext("/?limit=1&offset=1")
	got := Apply(c, []string{"a", "b", "c"})
	if len(got) != 1 || got[0] != "b" {
		t.Errorf("unexpected page %v", got)
	}
	if rec.Header().Get(TotalCountHeader) != "3" {
		t.Errorf("expected total header 3, got %q", rec.Header().Get(TotalCountHeader))
	}

	c, _ = newContext("/")
	if got := Apply(c, []string{"a", "b", "c"}); len(got) != 3 {
		t.Errorf("expected all items without paging params, got %v", got)
	}
}

func TestParams_Navigation(t *testing.T) {
	p := Params{Limit: 10, Offset: 5}
	if !p.HasNext(20) || p.HasNext(15) {
		t.Error("unexpected HasNext")
	}
	if !p.HasPrevious() || p.PreviousOffset() != 0 || p.NextOffset() != 15 {
		t.Error("unexpected navigation offsets")
	}
	if (Params{}).HasNext(100) {
		t.Error("unlimited params never have a next page")
	}
}

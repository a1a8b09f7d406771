package browse

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"testing"
)

type fakeFetcher struct {
	listings map[string]*Listing
	errs     map[string]error
	calls    []string
}

func (f *fakeFetcher) ListDirectory(_ context.Context, path string) (*Listing, error) {
	f.calls = append(f.calls, path)
	if err, ok := f.errs[path]; ok {
		return nil, err
	}
	if l, ok := f.listings[path]; ok {
		return l, nil
	}
	return nil, ErrNotFound
}

type fakeNav struct {
	urls   []string
	logins int
}

func (n *fakeNav) Navigate(u string) { n.urls = append(n.urls, u) }
func (n *fakeNav) RedirectToLogin()  { n.logins++ }

func (n *fakeNav) last(t *testing.T) *url.URL {
	t.Helper()
	if len(n.urls) == 0 {
		t.Fatal("no navigation recorded")
	}
	u, err := url.Parse(n.urls[len(n.urls)-1])
	if err != nil {
		t.Fatalf("parse %q: %v", n.urls[len(n.urls)-1], err)
	}
	return u
}

func rootListing() *Listing {
	return &Listing{
		Name: "/",
		Kind: KindDir,
		Entries: []Entry{
			{Name: "notes.txt", Kind: KindFile, Size: 10},
			{Name: "folder1", Kind: KindDir, Size: 0},
		},
	}
}

func newTestController() (*Controller, *fakeFetcher, *fakeNav) {
	f := &fakeFetcher{
		listings: map[string]*Listing{
			"/":        rootListing(),
			"/folder1": {Name: "folder1", Kind: KindDir},
			"/a":       {Name: "a", Kind: KindDir},
			"/b":       {Name: "b", Kind: KindDir},
		},
		errs: map[string]error{},
	}
	nav := &fakeNav{}
	return New("/browse", f, nav), f, nav
}

func TestMountFetchesOnce(t *testing.T) {
	c, f, nav := newTestController()
	c.Load(context.Background(), c.Mount("/browse", "sort=name&direction=desc&view=grid"))

	if !slices.Equal(f.calls, []string{"/"}) {
		t.Errorf("calls = %v, want [/]", f.calls)
	}
	if len(nav.urls) != 0 {
		t.Errorf("mount rewrote the URL: %v", nav.urls)
	}

	v := c.View()
	if want := (ViewState{Sort: SortName, Direction: Desc}); v.State != want {
		t.Errorf("state = %+v, want %+v", v.State, want)
	}
	if v.Listing == nil {
		t.Fatal("listing not installed")
	}
	if got, want := names(v.Entries), []string{"notes.txt", "folder1"}; !slices.Equal(got, want) {
		t.Errorf("entries = %v, want %v", got, want)
	}
	if v.Error != "" || v.Loading {
		t.Errorf("error = %q, loading = %v", v.Error, v.Loading)
	}
}

func TestOpenDirectoryNavigatesAndFetchesOnce(t *testing.T) {
	c, f, nav := newTestController()
	c.Load(context.Background(), c.Mount("/browse/", ""))
	f.calls = nil

	c.Load(context.Background(), c.Open(Entry{Name: "folder1", Kind: KindDir}))

	if got := c.Path().String(); got != "/folder1" {
		t.Errorf("path = %q, want /folder1", got)
	}
	if !slices.Equal(f.calls, []string{"/folder1"}) {
		t.Errorf("calls = %v, want [/folder1]", f.calls)
	}
	if !slices.Equal(nav.urls, []string{"/browse/folder1"}) {
		t.Errorf("urls = %v, want [/browse/folder1]", nav.urls)
	}
}

func TestOpenFileIsInert(t *testing.T) {
	c, f, nav := newTestController()
	c.Load(context.Background(), c.Mount("/browse", ""))
	f.calls = nil

	if req := c.Open(Entry{Name: "notes.txt", Kind: KindFile}); req != nil {
		t.Errorf("Open(file) = %+v, want nil", req)
	}
	if len(f.calls) != 0 || len(nav.urls) != 0 {
		t.Errorf("calls = %v, urls = %v, want none", f.calls, nav.urls)
	}
	if !c.Path().IsRoot() {
		t.Errorf("path = %q, want root", c.Path())
	}
}

func TestOpenKeepsQueryString(t *testing.T) {
	c, _, nav := newTestController()
	c.Load(context.Background(), c.Mount("/browse", "sort=size&filter=fold"))

	c.Open(Entry{Name: "folder1", Kind: KindDir})

	u := nav.last(t)
	if u.Path != "/browse/folder1" {
		t.Errorf("path = %q, want /browse/folder1", u.Path)
	}
	if u.Query().Get(ParamSort) != "size" || u.Query().Get(ParamFilter) != "fold" {
		t.Errorf("query = %q, want sort and filter kept", u.RawQuery)
	}
}

func TestSetFilterWritesThroughAndClearRemovesKey(t *testing.T) {
	c, f, nav := newTestController()
	c.Load(context.Background(), c.Mount("/browse", "view=grid"))
	f.calls = nil

	if req := c.SetFilter("fold"); req != nil {
		t.Error("filter changes must not refetch")
	}
	u := nav.last(t)
	if u.Query().Get(ParamFilter) != "fold" || u.Query().Get("view") != "grid" {
		t.Errorf("query = %q", u.RawQuery)
	}
	if c.State().Filter != "fold" {
		t.Errorf("filter = %q, want fold", c.State().Filter)
	}
	if got := names(c.View().Entries); !slices.Equal(got, []string{"folder1"}) {
		t.Errorf("entries = %v, want [folder1]", got)
	}

	c.SetFilter("")
	u = nav.last(t)
	if u.Query().Has(ParamFilter) {
		t.Errorf("empty filter kept the key: %q", u.RawQuery)
	}
	if u.Query().Get("view") != "grid" {
		t.Errorf("unknown key lost: %q", u.RawQuery)
	}
	if u.Query().Has(ParamSort) {
		t.Errorf("filter change wrote sort keys: %q", u.RawQuery)
	}
	if len(f.calls) != 0 {
		t.Errorf("calls = %v, want none", f.calls)
	}
}

func TestSetSortWritesThrough(t *testing.T) {
	c, _, nav := newTestController()
	c.Load(context.Background(), c.Mount("/browse", ""))

	c.SetSort(SortSize, Desc)

	u := nav.last(t)
	if u.Query().Get(ParamSort) != "size" || u.Query().Get(ParamDirection) != "desc" {
		t.Errorf("query = %q, want sort=size direction=desc", u.RawQuery)
	}
	if want := (ViewState{Sort: SortSize, Direction: Desc}); c.State() != want {
		t.Errorf("state = %+v, want %+v", c.State(), want)
	}
	if got := nav.urls[len(nav.urls)-1]; got != c.URL() {
		t.Errorf("navigated to %q, controller URL is %q", got, c.URL())
	}
}

func TestSetSortUnknownFallsBack(t *testing.T) {
	c, _, _ := newTestController()
	c.Mount("/browse", "")
	c.SetSort("colour", "up")
	if c.State() != DefaultViewState() {
		t.Errorf("state = %+v, want defaults", c.State())
	}
}

func TestUnauthorizedRedirectsWithoutError(t *testing.T) {
	c, f, nav := newTestController()
	f.errs["/"] = fmt.Errorf("list: %w", ErrUnauthorized)

	c.Load(context.Background(), c.Mount("/browse", ""))

	v := c.View()
	if nav.logins != 1 {
		t.Errorf("logins = %d, want 1", nav.logins)
	}
	if v.Error != "" || v.Listing != nil {
		t.Errorf("error = %q, listing = %v, want neither", v.Error, v.Listing)
	}
}

func TestNotFoundShowsMessage(t *testing.T) {
	c, _, nav := newTestController()
	c.Load(context.Background(), c.Mount("/browse/missing", ""))

	v := c.View()
	if v.Error != MsgNotFound {
		t.Errorf("error = %q, want %q", v.Error, MsgNotFound)
	}
	if v.Listing != nil || len(v.Entries) != 0 {
		t.Errorf("listing = %v, entries = %v, want none", v.Listing, v.Entries)
	}
	if nav.logins != 0 {
		t.Errorf("logins = %d, want 0", nav.logins)
	}
}

func TestGenericFailures(t *testing.T) {
	for _, err := range []error{
		errors.New("server returned 500"),
		errors.New("dial tcp: connection refused"),
		ErrMalformed,
	} {
		c, f, _ := newTestController()
		f.errs["/"] = err
		c.Load(context.Background(), c.Mount("/browse", ""))
		if v := c.View(); v.Error != MsgLoadFailed || v.Listing != nil {
			t.Errorf("%v: error = %q, listing = %v", err, v.Error, v.Listing)
		}
	}
}

func TestNilListingIsAFailure(t *testing.T) {
	c, _, _ := newTestController()
	req := c.Mount("/browse", "")
	if !c.Apply(Result{Request: *req}) {
		t.Fatal("result for the active request was dropped")
	}
	if c.View().Error != MsgLoadFailed {
		t.Errorf("error = %q, want %q", c.View().Error, MsgLoadFailed)
	}
}

func TestSuccessClearsPreviousError(t *testing.T) {
	c, f, _ := newTestController()
	f.errs["/"] = errors.New("boom")
	c.Load(context.Background(), c.Mount("/browse", ""))
	if c.View().Error != MsgLoadFailed {
		t.Fatalf("error = %q, want %q", c.View().Error, MsgLoadFailed)
	}

	delete(f.errs, "/")
	req := c.SetFilter("x")
	if req == nil {
		t.Fatal("changing the view while failed should retry the fetch")
	}
	c.Load(context.Background(), req)

	if c.View().Error != "" || c.View().Listing == nil {
		t.Errorf("error = %q, listing = %v", c.View().Error, c.View().Listing)
	}
}

func TestErrorDoesNotSurviveNavigation(t *testing.T) {
	c, _, _ := newTestController()
	c.Load(context.Background(), c.Mount("/browse/missing", ""))
	if c.View().Error != MsgNotFound {
		t.Fatalf("error = %q, want %q", c.View().Error, MsgNotFound)
	}

	req := c.SetRoute("/browse/a")
	if v := c.View(); v.Error != "" || !v.Loading {
		t.Errorf("after route change: error = %q, loading = %v", v.Error, v.Loading)
	}
	c.Load(context.Background(), req)
	if c.View().Error != "" {
		t.Errorf("error = %q after load", c.View().Error)
	}
}

func TestSupersededResultIsDropped(t *testing.T) {
	c, _, _ := newTestController()
	ctx := context.Background()
	c.Load(ctx, c.Mount("/browse", ""))

	p1 := c.Open(Entry{Name: "a", Kind: KindDir})
	res1 := c.Fetch(ctx, *p1)
	p2 := c.NavigateTo(Path{"b"})
	res2 := c.Fetch(ctx, *p2)

	if !c.Apply(res2) {
		t.Error("latest result was dropped")
	}
	if c.Apply(res1) {
		t.Error("late result for /a was applied")
	}

	v := c.View()
	if v.Path.String() != "/b" || v.Listing == nil || v.Listing.Name != "b" {
		t.Errorf("path = %q, listing = %+v, want /b", v.Path, v.Listing)
	}
}

func TestSupersededBySamePathRefetch(t *testing.T) {
	c, f, _ := newTestController()
	ctx := context.Background()
	f.errs["/"] = errors.New("boom")
	c.Load(ctx, c.Mount("/browse", ""))

	stale := c.SetFilter("a")
	delete(f.errs, "/")
	fresh := c.SetFilter("b")
	if stale == nil || fresh == nil {
		t.Fatalf("stale = %v, fresh = %v, want both requests", stale, fresh)
	}

	f.errs["/"] = errors.New("late failure")
	late := c.Fetch(ctx, *stale)
	delete(f.errs, "/")

	if !c.Apply(c.Fetch(ctx, *fresh)) {
		t.Error("fresh result was dropped")
	}
	if c.Apply(late) {
		t.Error("stale result was applied")
	}
	if c.View().Error != "" {
		t.Errorf("error = %q, want none", c.View().Error)
	}
}

func TestSetRouteFetchesOnlyOnPathChange(t *testing.T) {
	c, f, _ := newTestController()
	ctx := context.Background()
	c.Load(ctx, c.Mount("/browse/a", ""))

	if req := c.SetRoute("/browse/a/"); req != nil {
		t.Errorf("same path refetched: %+v", req)
	}
	c.Load(ctx, c.SetRoute("/browse/b"))
	if !slices.Equal(f.calls, []string{"/a", "/b"}) {
		t.Errorf("calls = %v, want [/a /b]", f.calls)
	}
}

func TestMalformedRouteListsRoot(t *testing.T) {
	c, f, _ := newTestController()
	c.Load(context.Background(), c.Mount("/browse/a/%2E%2E", ""))

	if !c.Path().IsRoot() {
		t.Errorf("path = %q, want root", c.Path())
	}
	if crumbs := c.View().Crumbs; len(crumbs) != 1 {
		t.Errorf("crumbs = %+v, want only the root", crumbs)
	}
	if !slices.Equal(f.calls, []string{"/"}) {
		t.Errorf("calls = %v, want [/]", f.calls)
	}
}

func TestOpenCrumb(t *testing.T) {
	c, f, nav := newTestController()
	ctx := context.Background()
	c.Load(ctx, c.Mount("/browse/a", ""))

	crumbs := c.View().Crumbs
	if len(crumbs) != 2 {
		t.Fatalf("got %d crumbs, want 2", len(crumbs))
	}
	if req := c.OpenCrumb(crumbs[1]); req != nil {
		t.Errorf("current crumb navigated: %+v", req)
	}

	c.Load(ctx, c.OpenCrumb(crumbs[0]))
	if !c.Path().IsRoot() {
		t.Errorf("path = %q, want root", c.Path())
	}
	if !slices.Equal(f.calls, []string{"/a", "/"}) {
		t.Errorf("calls = %v, want [/a /]", f.calls)
	}
	if got := nav.urls[len(nav.urls)-1]; got != "/browse/" {
		t.Errorf("navigated to %q, want /browse/", got)
	}
}

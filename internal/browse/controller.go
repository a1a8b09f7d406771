package browse

import (
	"context"
	"errors"
	"net/url"

	"github.com/fruitsalade/explorer/internal/logging"
)

// Errors a Fetcher returns to classify a failed listing. Anything else,
// including ErrMalformed, is a generic failure.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("directory not found")
)

// Messages shown for failed listings.
const (
	MsgNotFound   = "Directory not found"
	MsgLoadFailed = "Failed to load directory contents"
)

// Fetcher lists one directory. path is the logical path, "/" for the root.
type Fetcher interface {
	ListDirectory(ctx context.Context, path string) (*Listing, error)
}

// Navigator is the router the controller drives.
type Navigator interface {
	// Navigate moves to url, a route plus query string.
	Navigate(url string)
	// RedirectToLogin sends the user to the login entry point.
	RedirectToLogin()
}

// Request identifies one issued listing fetch.
type Request struct {
	Gen  uint64
	Path Path
}

// Result is the outcome of a Request.
type Result struct {
	Request
	Listing *Listing
	Err     error
}

// View is a snapshot for renderers.
type View struct {
	Path    Path
	URL     string
	State   ViewState
	Listing *Listing // nil while absent
	Entries []Entry  // filtered and sorted
	Crumbs  []Crumb
	Error   string
	Loading bool
}

// Controller keeps route, query string and listing consistent.
//
// It is not safe for concurrent use. Drive it from one goroutine; only
// Fetch may run elsewhere, and its Result must be handed back to Apply.
type Controller struct {
	prefix  string
	fetcher Fetcher
	nav     Navigator

	query   url.Values
	state   ViewState
	path    Path
	mounted bool

	listing *Listing
	errMsg  string

	gen     uint64
	pending bool
}

// New returns a controller for routes mounted under prefix.
func New(prefix string, f Fetcher, nav Navigator) *Controller {
	return &Controller{
		prefix:  prefix,
		fetcher: f,
		nav:     nav,
		query:   url.Values{},
		state:   DefaultViewState(),
	}
}

// Mount initializes the controller from the current route and query string
// and issues the first fetch.
func (c *Controller) Mount(routePath, rawQuery string) *Request {
	// A partly malformed query keeps whatever pairs did parse.
	q, _ := url.ParseQuery(rawQuery)
	if q == nil {
		q = url.Values{}
	}
	c.query = q
	c.state = ParseViewState(q)
	c.mounted = true
	return c.begin(Resolve(routePath, c.prefix))
}

// SetRoute reacts to a route change. A fetch is issued only when the
// resolved path differs from the active one.
func (c *Controller) SetRoute(routePath string) *Request {
	p := Resolve(routePath, c.prefix)
	if c.mounted && p.Equal(c.path) {
		return nil
	}
	c.mounted = true
	return c.begin(p)
}

// SetSort changes the sort and writes it to the query string. While an error
// is shown the current path is fetched again.
func (c *Controller) SetSort(field SortField, dir SortDirection) *Request {
	if _, ok := ParseSortField(string(field)); !ok {
		field = SortType
	}
	if _, ok := ParseSortDirection(string(dir)); !ok {
		dir = Asc
	}
	c.state.Sort, c.state.Direction = field, dir
	c.state.encodeSort(c.query)
	c.nav.Navigate(c.URL())
	return c.retry()
}

// SetFilter changes the filter text. An empty text drops the filter key.
func (c *Controller) SetFilter(text string) *Request {
	c.state.Filter = text
	c.state.encodeFilter(c.query)
	c.nav.Navigate(c.URL())
	return c.retry()
}

// Open activates an entry. Only directories navigate; files are inert.
func (c *Controller) Open(e Entry) *Request {
	if !e.IsDir() {
		return nil
	}
	return c.NavigateTo(c.path.Child(e.Name))
}

// OpenCrumb follows a breadcrumb if it is navigable.
func (c *Controller) OpenCrumb(cr Crumb) *Request {
	if !cr.Navigable {
		return nil
	}
	return c.NavigateTo(cr.Path)
}

// NavigateTo moves to p, keeping the query string, and fetches it.
func (c *Controller) NavigateTo(p Path) *Request {
	if c.mounted && p.Equal(c.path) {
		return nil
	}
	c.mounted = true
	req := c.begin(p)
	c.nav.Navigate(c.URL())
	return req
}

func (c *Controller) retry() *Request {
	if c.errMsg == "" {
		return nil
	}
	return c.begin(c.path)
}

// begin makes p the active path and issues a new generation.
func (c *Controller) begin(p Path) *Request {
	if !p.Equal(c.path) {
		c.listing = nil
		c.errMsg = ""
	}
	c.path = p
	c.gen++
	c.pending = true
	return &Request{Gen: c.gen, Path: p}
}

// Fetch performs req. It touches no controller state.
func (c *Controller) Fetch(ctx context.Context, req Request) Result {
	l, err := c.fetcher.ListDirectory(ctx, req.Path.String())
	return Result{Request: req, Listing: l, Err: err}
}

// Apply installs res unless a newer request has been issued since, or the
// active path moved on. It reports whether res was applied.
func (c *Controller) Apply(res Result) bool {
	if res.Gen != c.gen || !res.Path.Equal(c.path) {
		logging.Debug("dropping superseded listing",
			logging.String("path", res.Path.String()),
			logging.Uint64("gen", res.Gen),
			logging.Uint64("current_gen", c.gen),
		)
		return false
	}
	c.pending = false

	switch {
	case res.Err == nil && res.Listing != nil:
		c.listing = res.Listing
		c.errMsg = ""
	case errors.Is(res.Err, ErrUnauthorized):
		c.listing = nil
		c.errMsg = ""
		c.nav.RedirectToLogin()
	case errors.Is(res.Err, ErrNotFound):
		c.listing = nil
		c.errMsg = MsgNotFound
	default:
		c.listing = nil
		c.errMsg = MsgLoadFailed
		logging.Debug("directory listing failed",
			logging.String("path", res.Path.String()),
			logging.Err(res.Err),
		)
	}
	return true
}

// Load fetches and applies req synchronously. A nil req is a no-op.
func (c *Controller) Load(ctx context.Context, req *Request) {
	if req == nil {
		return
	}
	c.Apply(c.Fetch(ctx, *req))
}

// URL returns the route and query string the controller state maps to.
func (c *Controller) URL() string {
	u := c.path.Route(c.prefix)
	if enc := c.query.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}

func (c *Controller) Path() Path       { return c.path }
func (c *Controller) State() ViewState { return c.state }

// View derives everything a renderer needs.
func (c *Controller) View() View {
	return View{
		Path:    c.path,
		URL:     c.URL(),
		State:   c.state,
		Listing: c.listing,
		Entries: Display(c.listing, c.state),
		Crumbs:  Breadcrumbs(c.path),
		Error:   c.errMsg,
		Loading: c.pending,
	}
}

package api

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/fruitsalade/explorer/internal/auth"
	"github.com/fruitsalade/explorer/internal/browse"
	"github.com/fruitsalade/explorer/internal/logging"
	"github.com/fruitsalade/explorer/internal/storage"
)

//go:embed templates/*.html
var templateFS embed.FS

// sortOption is one entry of the sort select.
type sortOption struct {
	Value string
	Label string
}

var sortOptions = []sortOption{
	{"type-asc", "Type (Directories first)"},
	{"type-desc", "Type (Files first)"},
	{"name-asc", "Name (A to Z)"},
	{"name-desc", "Name (Z to A)"},
	{"size-asc", "Size (Smallest first)"},
	{"size-desc", "Size (Largest first)"},
}

func parsePages() *template.Template {
	return template.Must(template.New("").Funcs(template.FuncMap{
		"formatSize": browse.FormatSize,
	}).ParseFS(templateFS, "templates/*.html"))
}

// storageFetcher lists directories in process for a page request. Without
// claims every listing is unauthorized.
type storageFetcher struct {
	lister storage.Lister
	claims *auth.Claims
}

func (f storageFetcher) ListDirectory(ctx context.Context, p string) (*browse.Listing, error) {
	if f.claims == nil {
		return nil, browse.ErrUnauthorized
	}
	resp, err := f.lister.List(ctx, p)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("%w: %s", browse.ErrNotFound, p)
	case err != nil:
		return nil, err
	}
	return browse.FromResponse(resp)
}

// redirectNavigator turns controller navigation into a single HTTP redirect.
type redirectNavigator struct {
	target string
	login  bool
}

func (n *redirectNavigator) Navigate(u string) { n.target = u }
func (n *redirectNavigator) RedirectToLogin()  { n.login = true }

type browsePage struct {
	User        string
	Prefix      string
	Action      string
	View        browse.View
	Crumbs      []crumbLink
	Rows        []row
	SortOptions []sortOption
	SortValue   string
}

type crumbLink struct {
	Label string
	Href  string // empty for the current directory
}

type row struct {
	browse.Entry
	Href string // empty for files
}

type loginPage struct {
	Error    string
	Username string
}

func (s *Server) newController(r *http.Request) (*browse.Controller, *redirectNavigator) {
	nav := &redirectNavigator{}
	f := storageFetcher{lister: s.lister, claims: auth.GetClaims(r.Context())}
	return browse.New(s.prefix, f, nav), nav
}

// handleBrowsePage handles GET {prefix}/{path...}
func (s *Server) handleBrowsePage(w http.ResponseWriter, r *http.Request) {
	ctrl, nav := s.newController(r)
	ctrl.Load(r.Context(), ctrl.Mount(r.URL.EscapedPath(), r.URL.RawQuery))
	if nav.login {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	view := ctrl.View()
	page := browsePage{
		Prefix:      s.prefix,
		Action:      view.URL,
		View:        view,
		SortOptions: sortOptions,
		SortValue:   string(view.State.Sort) + "-" + string(view.State.Direction),
	}
	if c := auth.GetClaims(r.Context()); c != nil {
		page.User = c.Username
	}

	query := queryOf(view.URL)
	for _, c := range view.Crumbs {
		cl := crumbLink{Label: c.Label}
		if c.Navigable {
			cl.Href = c.Path.Route(s.prefix) + query
		}
		page.Crumbs = append(page.Crumbs, cl)
	}
	for _, e := range view.Entries {
		rw := row{Entry: e}
		if e.IsDir() {
			rw.Href = view.Path.Child(e.Name).Route(s.prefix) + query
		}
		page.Rows = append(page.Rows, rw)
	}

	s.render(w, r, http.StatusOK, "browse.html", page)
}

// handleBrowseAction handles the sort and filter forms. The new state is
// written to the query string and the browser follows it with a GET.
func (s *Server) handleBrowseAction(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	ctrl, nav := s.newController(r)
	ctrl.Mount(r.URL.EscapedPath(), r.URL.RawQuery)
	switch r.PostForm.Get("action") {
	case "sort":
		field, dir := splitSort(r.PostForm.Get("sort"))
		ctrl.SetSort(field, dir)
	case "filter":
		ctrl.SetFilter(r.PostForm.Get("filter"))
	default:
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}

	target := nav.target
	if target == "" {
		target = ctrl.URL()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// splitSort parses "field-direction". Unknown parts fall back to defaults
// inside the controller.
func splitSort(v string) (browse.SortField, browse.SortDirection) {
	field, dir, ok := strings.Cut(v, "-")
	if !ok {
		dir = string(browse.Asc)
	}
	return browse.SortField(field), browse.SortDirection(dir)
}

func queryOf(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.RawQuery == "" {
		return ""
	}
	return "?" + parsed.RawQuery
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "login.html", loginPage{})
}

func (s *Server) handleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.render(w, r, http.StatusBadRequest, "login.html", loginPage{Error: "Invalid form"})
		return
	}
	username := r.PostForm.Get("username")
	password := r.PostForm.Get("password")
	if username == "" || password == "" {
		s.render(w, r, http.StatusBadRequest, "login.html",
			loginPage{Error: "Username and password required", Username: username})
		return
	}

	resp, err := s.auth.Login(r.Context(), username, password, "web")
	if errors.Is(err, auth.ErrInvalidCredentials) {
		s.render(w, r, http.StatusUnauthorized, "login.html",
			loginPage{Error: "Invalid credentials", Username: username})
		return
	}
	if err != nil {
		logging.WithContext(r.Context()).Error("login failed", logging.Err(err))
		s.render(w, r, http.StatusInternalServerError, "login.html",
			loginPage{Error: "Login failed, try again", Username: username})
		return
	}

	s.auth.SetSessionCookie(w, resp.Token, resp.ExpiresAt)
	http.Redirect(w, r, s.prefix+"/", http.StatusSeeOther)
}

func (s *Server) handleLogoutSubmit(w http.ResponseWriter, r *http.Request) {
	if tokenStr := auth.ExtractToken(r); tokenStr != "" {
		if err := s.auth.RevokeToken(r.Context(), tokenStr); err != nil {
			logging.WithContext(r.Context()).Error("logout revoke failed", logging.Err(err))
		}
	}
	s.auth.ClearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleNotFoundPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusNotFound, "notfound.html", struct{ Prefix string }{s.prefix})
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.pages.ExecuteTemplate(w, name, data); err != nil {
		logging.WithContext(r.Context()).Error("render page failed",
			logging.String("template", name), logging.Err(err))
	}
}

// Package view renders the HTML pages.
//
// PER-PAGE TEMPLATE SETS:
// Every page_*.gohtml file is parsed together with layout.gohtml into its own
// *template.Template. Pages fill the "title" and "content" blocks the layout
// declares, so two pages can both define "content" without clobbering each
// other (they would in a single shared set).
//
//	layout.gohtml        {{define "layout"}} ... {{template "content" .}} ... {{end}}
//	page_dashboard.gohtml {{define "content"}} ... {{end}}
//
// Pages are rendered into a buffer first, so a template error becomes a clean
// 500 instead of half a page.
package view

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/url"
	"path"
	"strings"

	"github.com/sakif/learning-shelf/internal/model"
	"github.com/sakif/learning-shelf/internal/ytutil"
)

const layoutFile = "layout.gohtml"

// ErrPageNotFound is returned by Render for a page name that was never parsed.
var ErrPageNotFound = errors.New("view: page not found")

// Page is the data every template receives.
type Page struct {
	User    *model.User // nil for anonymous visitors
	Flash   string
	GitHub  bool // show "Sign in with GitHub"
	Content any  // page-specific data
}

// Renderer holds one parsed template set per page.
type Renderer struct {
	pages map[string]*template.Template
}

// Funcs are the helpers available in every template.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"embedURL":     ytutil.EmbedURL,
		"watchURL":     ytutil.WatchURL,
		"thumbnailURL": ytutil.ThumbnailURL,
		"playlistPath": PlaylistPath,
	}
}

// PlaylistPath is the URL of a playlist view. The name is path-escaped so
// playlists containing "/" or spaces still route to /playlist/{name}.
func PlaylistPath(name string) string {
	return "/playlist/" + url.PathEscape(name)
}

// New parses every page_*.gohtml in fsys.
func New(fsys fs.FS) (*Renderer, error) {
	pageFiles, err := fs.Glob(fsys, "page_*.gohtml")
	if err != nil {
		return nil, fmt.Errorf("view: listing pages: %w", err)
	}
	if len(pageFiles) == 0 {
		return nil, errors.New("view: no page templates found")
	}

	r := &Renderer{pages: make(map[string]*template.Template, len(pageFiles))}
	for _, file := range pageFiles {
		name := strings.TrimPrefix(strings.TrimSuffix(path.Base(file), ".gohtml"), "page_")

		// Layout first: the page's "title" must replace the layout's default block.
		tpl, err := template.New(name).Funcs(Funcs()).ParseFS(fsys, layoutFile, file)
		if err != nil {
			return nil, fmt.Errorf("view: parsing %s: %w", file, err)
		}
		r.pages[name] = tpl
	}
	return r, nil
}

// Render executes page (e.g. "dashboard" for page_dashboard.gohtml) into w.
func (r *Renderer) Render(w io.Writer, page string, data Page) error {
	tpl, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("%w: %q", ErrPageNotFound, page)
	}

	var buf bytes.Buffer
	if err := tpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("view: rendering %s: %w", page, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

package api

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dgallion1/docmerge/internal/catalog"
	"github.com/dgallion1/docmerge/internal/parser"
	"github.com/go-chi/chi/v5"
)

var errEscapesRoot = errors.New("path escapes the served tree")

// resolve cleans a slash-separated request path into a name relative to
// the served tree, "." for the tree itself.
func resolve(rel string) (string, error) {
	for _, seg := range strings.Split(rel, "/") {
		if seg == ".." {
			return "", errEscapesRoot
		}
	}
	clean := strings.TrimPrefix(path.Clean("/"+rel), "/")
	if clean == "" {
		return ".", nil
	}
	return filepath.FromSlash(clean), nil
}

// openRoot opens the served tree fresh for each request, since a cleaning
// merge replaces the directory. Every lookup through the returned root
// stays inside it, symlinks included.
func (s *Server) openRoot(w http.ResponseWriter) (*os.Root, bool) {
	root, err := os.OpenRoot(s.root)
	if err != nil {
		statusForFSError(w, err)
		return nil, false
	}
	return root, true
}

func (s *Server) catalogOptions() catalog.Options {
	return catalog.Options{
		Parser:        parser.Options{PDFFallbackPdftotext: s.cfg.PDFFallbackPdftotext},
		MaxParseBytes: s.cfg.MaxParseBytes,
	}
}

// handleCatalog lists every file of the served tree with its title and outline.
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	cat, err := catalog.Build(r.Context(), s.root, s.catalogOptions(), s.log)
	if err != nil {
		jsonError(w, "failed to build catalog: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

// handleOutline returns the full parsed tree of one document.
func (s *Server) handleOutline(w http.ResponseWriter, r *http.Request) {
	rel := chi.URLParam(r, "*")
	name, err := resolve(rel)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	format := parser.Format(name)
	if format == "" {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(name)), http.StatusUnsupportedMediaType)
		return
	}

	root, ok := s.openRoot(w)
	if !ok {
		return
	}
	defer root.Close()

	f, err := root.Open(name)
	if err != nil {
		s.statusForRootError(w, root, name, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		statusForFSError(w, err)
		return
	}
	if s.cfg.MaxParseBytes > 0 && info.Size() > s.cfg.MaxParseBytes {
		jsonError(w, fmt.Sprintf("file exceeds max parse size (%d bytes)", s.cfg.MaxParseBytes), http.StatusRequestEntityTooLarge)
		return
	}

	tree, err := catalog.Outline(f, name, s.catalogOptions().Parser)
	if err != nil {
		jsonError(w, "failed to parse document: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"path":   rel,
		"format": format,
		"title":  catalog.Title(tree, format),
		"tree":   tree,
	})
}

// handleView renders Markdown as HTML, lists directories, and serves
// everything else as-is.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	rel := strings.Trim(chi.URLParam(r, "*"), "/")
	name, err := resolve(rel)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	root, ok := s.openRoot(w)
	if !ok {
		return
	}
	defer root.Close()

	f, err := root.Open(name)
	if err != nil {
		s.statusForRootError(w, root, name, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		statusForFSError(w, err)
		return
	}

	switch {
	case info.IsDir():
		s.renderDir(w, rel, f)
	case parser.Format(name) == "markdown":
		src, err := io.ReadAll(f)
		if err != nil {
			statusForFSError(w, err)
			return
		}
		s.renderMarkdown(w, path.Base("/"+rel), src)
	default:
		http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	}
}

func (s *Server) renderDir(w http.ResponseWriter, rel string, dir *os.File) {
	entries, err := dir.ReadDir(-1)
	if err != nil {
		statusForFSError(w, err)
		return
	}
	slices.SortFunc(entries, func(a, b fs.DirEntry) int {
		return strings.Compare(a.Name(), b.Name())
	})

	title := rel
	if title == "" {
		title = "/"
	}
	var md bytes.Buffer
	fmt.Fprintf(&md, "# %s\n\n", title)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		link := "/view/" + escapePath(path.Join(rel, e.Name()))
		fmt.Fprintf(&md, "- [%s](<%s>)\n", markdownEscaper.Replace(name), link)
	}
	s.renderMarkdown(w, title, md.Bytes())
}

func (s *Server) renderMarkdown(w http.ResponseWriter, title string, src []byte) {
	var body bytes.Buffer
	if err := s.md.Convert(src, &body); err != nil {
		jsonError(w, "failed to render markdown: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<!doctype html>\n<html><head><meta charset=\"utf-8\"><title>%s</title></head>\n<body>\n%s</body></html>\n",
		html.EscapeString(title), body.String())
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, `[`, `\[`, `]`, `\]`, `*`, `\*`, `_`, `\_`, "`", "\\`", `<`, `\<`,
)

func escapePath(p string) string {
	segs := strings.Split(p, "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return strings.Join(segs, "/")
}

// statusForRootError reports a failed lookup inside the served tree. A
// symlink that exists but cannot be followed within the tree is refused.
func (s *Server) statusForRootError(w http.ResponseWriter, root *os.Root, name string, err error) {
	if !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, fs.ErrPermission) {
		if fi, lerr := root.Lstat(name); lerr == nil && fi.Mode()&fs.ModeSymlink != 0 {
			s.log.Warn("refused symlink leaving the served tree", "path", name)
			jsonError(w, errEscapesRoot.Error(), http.StatusForbidden)
			return
		}
	}
	statusForFSError(w, err)
}

func statusForFSError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		jsonError(w, "not found", http.StatusNotFound)
	case errors.Is(err, fs.ErrPermission):
		jsonError(w, "permission denied", http.StatusForbidden)
	default:
		jsonError(w, err.Error(), http.StatusInternalServerError)
	}
}

// Package assets minifies the HTML templates and static files into the dist
// directory served in production.
package assets

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
)

const (
	mediaHTML = "text/html"
	mediaCSS  = "text/css"
	mediaJS   = "application/javascript"
)

// Result describes one minified file.
type Result struct {
	Src      string
	Dst      string
	Original int
	Minified int
}

// Reduction returns the size saving in percent.
func (r Result) Reduction() float64 {
	if r.Original == 0 {
		return 0
	}
	return float64(r.Original-r.Minified) / float64(r.Original) * 100
}

func (r Result) String() string {
	return fmt.Sprintf("%s: %s -> %s (%.1f%% reduction)",
		r.Src, humanize.Bytes(uint64(r.Original)), humanize.Bytes(uint64(r.Minified)), r.Reduction())
}

// NewMinifier returns a minifier for HTML templates, CSS and JavaScript.
// Go template actions inside HTML are left untouched, and document and end
// tags are kept so that partial templates still compose.
func NewMinifier() *minify.M {
	m := minify.New()
	m.AddFunc(mediaCSS, css.Minify)
	m.AddFunc(mediaJS, js.Minify)
	m.Add(mediaHTML, &html.Minifier{
		KeepDocumentTags: true,
		KeepEndTags:      true,
		KeepQuotes:       true,
		TemplateDelims:   html.GoTemplateDelims,
	})
	return m
}

// mediaType maps a file extension to the minifier media type, or "" for
// files that are copied as they are.
func mediaType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html":
		return mediaHTML
	case ".css":
		return mediaCSS
	case ".js":
		return mediaJS
	}
	return ""
}

// Build minifies root/templates and root/static into dst, keeping the
// relative layout. Files of other types under static are copied unchanged.
func Build(root, dst string) ([]Result, error) {
	m := NewMinifier()
	var results []Result
	for _, dir := range []string{"templates", "static"} {
		src := filepath.Join(root, dir)
		err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			res, err := File(m, path, filepath.Join(dst, rel))
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			results = append(results, res)
			return nil
		})
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// File minifies (or copies) a single file from src to dst.
func File(m *minify.M, src, dst string) (Result, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return Result{}, err
	}
	out := data
	if mt := mediaType(src); mt != "" {
		if out, err = m.Bytes(mt, data); err != nil {
			return Result{}, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return Result{}, err
	}
	if err := os.WriteFile(dst, out, 0o644); err != nil {
		return Result{}, err
	}
	return Result{Src: src, Dst: dst, Original: len(data), Minified: len(out)}, nil
}

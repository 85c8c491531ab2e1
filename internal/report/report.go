// Package report renders a search result as a static HTML page.
package report

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/lox/daylightmatch/internal/htmlutil"
	"github.com/lox/daylightmatch/internal/models"
)

//go:embed templates/*
var templateFS embed.FS

const stylesheetName = "styles.css"

var tmpl = newTemplates()

func newTemplates() *template.Template {
	funcs := template.FuncMap{
		"longDate": func(t time.Time) string {
			return t.Format("January 02, 2006")
		},
		"deref": func(n *int) int {
			if n == nil {
				return 0
			}
			return *n
		},
		"plural": func(n int, unit string) string {
			if n == 1 {
				return fmt.Sprintf("%d %s", n, unit)
			}
			return fmt.Sprintf("%d %ss", n, unit)
		},
	}
	return template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))
}

// Page is everything the report template needs.
type Page struct {
	Place       string
	Result      models.SearchResult
	WindowLabel string // e.g. "3-9 months"
	OGImage     string // relative URL of the preview image, optional
	GeneratedAt time.Time
}

// WindowLabel describes a days-ago window in months, or in days when the
// bounds are not whole months.
func WindowLabel(minDaysAgo, maxDaysAgo int) string {
	if minDaysAgo%30 == 0 && maxDaysAgo%30 == 0 {
		return fmt.Sprintf("%d-%d months", minDaysAgo/30, maxDaysAgo/30)
	}
	return fmt.Sprintf("%d-%d days", minDaysAgo, maxDaysAgo)
}

// Render writes the HTML report for page to w.
func Render(w io.Writer, page Page) error {
	if page.WindowLabel == "" {
		page.WindowLabel = WindowLabel(90, 270)
	}
	if page.GeneratedAt.IsZero() {
		page.GeneratedAt = time.Now()
	}
	return tmpl.ExecuteTemplate(w, "report.html", page)
}

// WriteFile renders page to path, replacing any previous report. The page is
// rendered fully before the file is touched, and written via a temporary file
// in the same directory so a failed write leaves the old report in place. A
// default stylesheet is written next to the report when none exists.
func WriteFile(path string, page Page) error {
	var buf bytes.Buffer
	if err := Render(&buf, page); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	if err := writeAtomic(path, buf.Bytes()); err != nil {
		return err
	}
	return ensureStylesheet(filepath.Dir(path))
}

// Text returns a plain-text rendition of rendered HTML.
func Text(html string) string {
	return htmlutil.ToText(html)
}

// Stylesheet returns the default stylesheet.
func Stylesheet() []byte {
	b, err := templateFS.ReadFile("templates/" + stylesheetName)
	if err != nil {
		panic(err)
	}
	return b
}

func ensureStylesheet(dir string) error {
	path := filepath.Join(dir, stylesheetName)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat stylesheet: %w", err)
	}
	if err := os.WriteFile(path, Stylesheet(), 0644); err != nil {
		return fmt.Errorf("write stylesheet: %w", err)
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	return nil
}

// WriteBytes writes an auxiliary artifact (such as the preview image) next to
// the report with the same replace semantics.
func WriteBytes(path string, data []byte) error {
	return writeAtomic(path, data)
}

// Package compare runs one daylight comparison: search, render, write and
// optionally publish.
package compare

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lox/daylightmatch/internal/metrics"
	"github.com/lox/daylightmatch/internal/models"
	"github.com/lox/daylightmatch/internal/report"
	"github.com/lox/daylightmatch/internal/search"
)

// Finder finds the most similar past day to today.
type Finder interface {
	FindSimilarDay(ctx context.Context, today time.Time) (models.SearchResult, error)
}

// Uploader publishes written files.
type Uploader interface {
	Upload(ctx context.Context, paths ...string) error
}

type Options struct {
	Place       string
	Today       time.Time
	Window      search.Window
	Output      string    // report path, replaced on each successful run
	OGImage     string    // preview image path, disabled when empty
	MetricsFile string    // Prometheus textfile path, disabled when empty
	Print       io.Writer // receives a plain-text copy of the report when set
}

type Runner struct {
	finder   Finder
	uploader Uploader
	log      logrus.FieldLogger
}

// New creates a runner. uploader may be nil.
func New(finder Finder, uploader Uploader, log logrus.FieldLogger) *Runner {
	return &Runner{finder: finder, uploader: uploader, log: log}
}

// Run performs the comparison. It fails only when today's data cannot be
// fetched, in which case no report is written. Problems writing or
// publishing the report are logged and leave any previous report in place.
func (r *Runner) Run(ctx context.Context, opts Options) error {
	if opts.MetricsFile != "" {
		defer r.writeMetrics(opts.MetricsFile)
	}

	res, err := r.finder.FindSimilarDay(ctx, opts.Today)
	if err != nil {
		r.log.WithError(err).WithField("date", opts.Today.Format(models.DateLayout)).
			Error("Could not fetch today's daylight data")
		return err
	}

	page := report.Page{
		Place:       opts.Place,
		Result:      res,
		WindowLabel: report.WindowLabel(opts.Window.MinDaysAgo, opts.Window.MaxDaysAgo),
		GeneratedAt: time.Now(),
	}

	written := []string{}
	if opts.OGImage != "" {
		if err := r.writeOGImage(opts.OGImage, page); err != nil {
			r.log.WithError(err).WithField("path", opts.OGImage).Error("Failed to write preview image")
		} else {
			page.OGImage = relativeTo(opts.Output, opts.OGImage)
			written = append(written, opts.OGImage)
		}
	}

	if err := report.WriteFile(opts.Output, page); err != nil {
		r.log.WithError(err).WithField("path", opts.Output).Error("Failed to write HTML report")
		return nil
	}
	metrics.LastSuccessTimestamp.SetToCurrentTime()
	r.log.WithField("path", opts.Output).Info("Report generated successfully")
	written = append(written, opts.Output, filepath.Join(filepath.Dir(opts.Output), "styles.css"))

	if opts.Print != nil {
		var buf bytes.Buffer
		if err := report.Render(&buf, page); err == nil {
			fmt.Fprintln(opts.Print, report.Text(buf.String()))
		}
	}

	if r.uploader != nil {
		if err := r.uploader.Upload(ctx, written...); err != nil {
			r.log.WithError(err).Error("Failed to publish report")
		}
	}
	return nil
}

func (r *Runner) writeOGImage(path string, page report.Page) error {
	data, err := report.OGImage(page)
	if err != nil {
		return err
	}
	return report.WriteBytes(path, data)
}

func (r *Runner) writeMetrics(path string) {
	if err := metrics.WriteTextfile(path); err != nil {
		r.log.WithError(err).WithField("path", path).Warn("Failed to write metrics")
	}
}

// relativeTo returns target as a URL relative to the directory of the
// report, falling back to its base name.
func relativeTo(reportPath, target string) string {
	rel, err := filepath.Rel(filepath.Dir(reportPath), target)
	if err != nil {
		return filepath.Base(target)
	}
	return filepath.ToSlash(rel)
}

// Package sunapi fetches daily sunrise, sunset and day length for a fixed
// location from the sunrisesunset.io JSON API.
package sunapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/lox/daylightmatch/internal/httputil"
	"github.com/lox/daylightmatch/internal/metrics"
	"github.com/lox/daylightmatch/internal/models"
)

const (
	DefaultBaseURL   = "https://api.sunrisesunset.io/json"
	DefaultLat       = 42.3601
	DefaultLng       = -71.0589
	DefaultRetries   = 3
	DefaultRetryBase = time.Second
)

// Config describes where and how the client fetches. A zero HTTPClient is
// replaced with one using Timeout.
type Config struct {
	BaseURL    string
	Lat        float64
	Lng        float64
	Timeout    time.Duration
	Retries    int
	RetryBase  time.Duration
	HTTPClient *http.Client
}

// DefaultConfig returns the Boston configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		Lat:       DefaultLat,
		Lng:       DefaultLng,
		Timeout:   httputil.DefaultTimeout,
		Retries:   DefaultRetries,
		RetryBase: DefaultRetryBase,
	}
}

// Client fetches day records and caches successful results for its lifetime,
// which is one run. Failures are never cached.
type Client struct {
	cfg        Config
	httpClient *http.Client
	cache      *cache.Cache
	log        logrus.FieldLogger
}

// New creates a client with an empty cache.
func New(cfg Config, log logrus.FieldLogger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = DefaultRetryBase
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = httputil.NewClient(cfg.Timeout)
	}
	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		cache:      cache.New(cache.NoExpiration, 0),
		log:        log.WithField("component", "sunapi"),
	}
}

type apiResponse struct {
	Results *apiResults `json:"results"`
	Status  string      `json:"status"`
}

type apiResults struct {
	Sunrise   *string `json:"sunrise"`
	Sunset    *string `json:"sunset"`
	DayLength *string `json:"day_length"`
}

// Fetch returns the record for date, from cache when this client already
// fetched it. Any failure is returned as a *FetchError carrying the date.
func (c *Client) Fetch(ctx context.Context, date time.Time) (models.DayRecord, error) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	key := day.Format(models.DateLayout)

	if v, ok := c.cache.Get(key); ok {
		metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
		return v.(models.DayRecord), nil
	}
	metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()

	rec, err := c.fetch(ctx, day, key)
	if err != nil {
		metrics.FetchFailuresTotal.Inc()
		return models.DayRecord{}, &FetchError{Date: day, Cause: err}
	}

	c.cache.Set(key, rec, cache.NoExpiration)
	return rec, nil
}

// CacheSize returns the number of records cached so far.
func (c *Client) CacheSize() int {
	return c.cache.ItemCount()
}

func (c *Client) fetch(ctx context.Context, day time.Time, key string) (models.DayRecord, error) {
	reqURL, err := c.requestURL(key)
	if err != nil {
		return models.DayRecord{}, err
	}

	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("User-Agent", httputil.UserAgent)
		req.Header.Set("Accept", "application/json")

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		metrics.SunAPILatency.Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.SunAPICallsTotal.WithLabelValues("error").Inc()
			err = fmt.Errorf("fetch: %w", err)
			if !retryableTransportError(ctx, err) {
				return backoff.Permanent(err)
			}
			return err
		}
		defer resp.Body.Close()
		metrics.SunAPICallsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			statusErr := &StatusError{Code: resp.StatusCode, Body: string(b)}
			if statusErr.Transient() {
				return statusErr
			}
			return backoff.Permanent(statusErr)
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			err = fmt.Errorf("read body: %w", err)
			if !retryableTransportError(ctx, err) {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.log.WithFields(logrus.Fields{
			"date": key,
			"wait": wait,
		}).WithError(err).Debug("retrying after transient failure")
	}

	if err := backoff.RetryNotify(operation, c.newBackOff(ctx), notify); err != nil {
		return models.DayRecord{}, err
	}

	return decode(body, day)
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.RetryBase
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = c.cfg.RetryBase * time.Duration(1<<uint(c.cfg.Retries))
	bo.MaxElapsedTime = 0
	bo.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.cfg.Retries)), ctx)
}

func (c *Client) requestURL(date string) (string, error) {
	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set("lat", strconv.FormatFloat(c.cfg.Lat, 'f', -1, 64))
	q.Set("lng", strconv.FormatFloat(c.cfg.Lng, 'f', -1, 64))
	q.Set("date", date)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// retryableTransportError treats connection-level failures as transient. A
// request that hit the client timeout, or whose context ended, is terminal.
func retryableTransportError(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return false
	}
	return true
}

func decode(body []byte, day time.Time) (models.DayRecord, error) {
	var data apiResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return models.DayRecord{}, fmt.Errorf("unmarshal: %w", err)
	}
	if data.Status != "" && data.Status != "OK" {
		return models.DayRecord{}, fmt.Errorf("%w: %s", ErrAPIStatus, data.Status)
	}
	if data.Results == nil {
		return models.DayRecord{}, ErrNoResults
	}

	r := data.Results
	switch {
	case r.Sunrise == nil:
		return models.DayRecord{}, fmt.Errorf("%w: sunrise", ErrMissingField)
	case r.Sunset == nil:
		return models.DayRecord{}, fmt.Errorf("%w: sunset", ErrMissingField)
	case r.DayLength == nil:
		return models.DayRecord{}, fmt.Errorf("%w: day_length", ErrMissingField)
	}

	return models.DayRecord{
		Date:      day,
		Sunrise:   *r.Sunrise,
		Sunset:    *r.Sunset,
		DayLength: *r.DayLength,
	}, nil
}

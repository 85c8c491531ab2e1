package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/sirupsen/logrus"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"

	"github.com/lox/daylightmatch/internal/compare"
	"github.com/lox/daylightmatch/internal/models"
	"github.com/lox/daylightmatch/internal/publish"
	"github.com/lox/daylightmatch/internal/search"
	"github.com/lox/daylightmatch/internal/sunapi"
)

type CLI struct {
	EnvFile kongdotenv.ENVFileConfig `kong:"optional,name='env-file',default='.env',help='Path to .env file.'"`

	Lat      float64 `help:"Latitude of the location." default:"42.3601" env:"DAYLIGHT_LAT"`
	Lng      float64 `help:"Longitude of the location." default:"-71.0589" env:"DAYLIGHT_LNG"`
	Place    string  `help:"Place name shown in the report." default:"Boston" env:"DAYLIGHT_PLACE"`
	Timezone string  `help:"IANA time zone that defines today." default:"America/New_York" env:"DAYLIGHT_TZ"`
	Date     string  `help:"Compare this date (YYYY-MM-DD) instead of today."`

	APIURL    string        `name:"api-url" help:"Sunrise/sunset API endpoint." default:"https://api.sunrisesunset.io/json" env:"DAYLIGHT_API_URL"`
	Timeout   time.Duration `help:"Per-request timeout." default:"10s"`
	Retries   int           `help:"Retries for transient API failures." default:"3"`
	RetryBase time.Duration `help:"Initial retry backoff, doubled per retry." default:"1s"`

	MinDaysAgo    int `help:"Nearest day of the search window." default:"90"`
	MaxDaysAgo    int `help:"Farthest day of the search window." default:"270"`
	MaxDiff       int `help:"Reject matches more than this many minutes apart (negative for no bound)." default:"-1" env:"DAYLIGHT_MAX_DIFF"`
	EarlyExitDiff int `help:"Stop searching at a match this many minutes apart or closer (negative to scan the whole window)." default:"1"`

	Output      string `short:"o" help:"Report output path." default:"index.html" env:"DAYLIGHT_OUTPUT"`
	OGImage     string `name:"og-image" help:"Write an Open Graph preview PNG to this path." env:"DAYLIGHT_OG_IMAGE"`
	MetricsFile string `help:"Write Prometheus metrics to this textfile." env:"DAYLIGHT_METRICS_FILE"`
	Print       bool   `help:"Print a plain-text copy of the report to stdout."`

	FTPAddr     string `name:"ftp-addr" help:"Publish the report to this FTP server (host:port)." env:"DAYLIGHT_FTP_ADDR"`
	FTPUser     string `name:"ftp-user" help:"FTP user." env:"DAYLIGHT_FTP_USER"`
	FTPPassword string `name:"ftp-password" help:"FTP password." env:"DAYLIGHT_FTP_PASSWORD"`
	FTPDir      string `name:"ftp-dir" help:"Remote FTP directory." env:"DAYLIGHT_FTP_DIR"`

	LogLevel  string `help:"Log level." default:"info" enum:"debug,info,warn,error" env:"DAYLIGHT_LOG_LEVEL"`
	LogFormat string `help:"Log format." default:"text" enum:"text,json" env:"DAYLIGHT_LOG_FORMAT"`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("daylightmatch"),
		kong.Description("Find the past day whose daylight length best matches today's and render an HTML comparison."),
		kong.UsageOnError(),
	)

	log := newLogger(cli.LogLevel, cli.LogFormat)
	if err := run(cli, log); err != nil {
		log.WithError(err).Error("Exiting")
		kctx.Exit(1)
	}
}

func newLogger(level, format string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	if lvl, err := logrus.ParseLevel(level); err == nil {
		log.SetLevel(lvl)
	}
	if format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}

func run(cli CLI, log *logrus.Logger) error {
	loc, err := time.LoadLocation(cli.Timezone)
	if err != nil {
		log.WithError(err).Warnf("could not load %s timezone, using UTC", cli.Timezone)
		loc = time.UTC
	}

	today := time.Now().In(loc)
	if cli.Date != "" {
		today, err = time.ParseInLocation(models.DateLayout, cli.Date, loc)
		if err != nil {
			return fmt.Errorf("parse --date: %w", err)
		}
	}

	window := search.Window{MinDaysAgo: cli.MinDaysAgo, MaxDaysAgo: cli.MaxDaysAgo}
	if err := window.Validate(); err != nil {
		return err
	}

	client := sunapi.New(sunapi.Config{
		BaseURL:   cli.APIURL,
		Lat:       cli.Lat,
		Lng:       cli.Lng,
		Timeout:   cli.Timeout,
		Retries:   cli.Retries,
		RetryBase: cli.RetryBase,
	}, log)
	searcher := search.New(client, window, search.Policy{
		EarlyExitDiff: cli.EarlyExitDiff,
		MaxDiff:       cli.MaxDiff,
	}, log)

	var uploader compare.Uploader
	ftpCfg := publish.FTPConfig{
		Addr:     cli.FTPAddr,
		User:     cli.FTPUser,
		Password: cli.FTPPassword,
		Dir:      cli.FTPDir,
	}
	if ftpCfg.Enabled() {
		uploader = publish.NewFTP(ftpCfg, log)
	}

	opts := compare.Options{
		Place:       cli.Place,
		Today:       today,
		Window:      window,
		Output:      cli.Output,
		OGImage:     cli.OGImage,
		MetricsFile: cli.MetricsFile,
	}
	if cli.Print {
		opts.Print = os.Stdout
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.WithFields(logrus.Fields{
		"place": cli.Place,
		"lat":   cli.Lat,
		"lng":   cli.Lng,
		"date":  today.Format(models.DateLayout),
	}).Info("Starting daylight comparison")

	return compare.New(searcher, uploader, log).Run(ctx, opts)
}

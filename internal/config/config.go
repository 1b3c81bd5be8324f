package config

import (
	"errors"
	"net/url"
	"strings"

	flags "github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Default endpoints of the intel map service. The wire protocol is specific
// to this service, so these only change when pointing at a staging mirror.
const (
	DefaultReportURL      = "https://map.pleaseignore.com/report.pl"
	DefaultChannelListURL = "https://map.pleaseignore.com/intelchannels.pl"
)

type Options struct {
	Username       string `long:"username" env:"INTEL_USERNAME" description:"Reporting service username"`
	Password       string `long:"password" env:"INTEL_PASSWORD" description:"Reporting service password (hashed before use)"`
	ReportURL      string `long:"report-url" env:"INTEL_REPORT_URL" description:"Reporting endpoint URL"`
	ChannelListURL string `long:"channel-list-url" env:"INTEL_CHANNEL_LIST_URL" description:"Channel list endpoint URL"`
	LogDir         string `long:"log-dir" env:"INTEL_LOG_DIR" description:"Directory containing EVE chat logs"`
	Debug          bool   `long:"debug" env:"INTEL_DEBUG" description:"Enable verbose debug output"`
}

type Endpoints struct {
	ReportURL      string
	ChannelListURL string
}

func ParseOptions(defaultLogDirFn func() string) (Options, error) {
	_ = godotenv.Load()
	opts := Options{}
	if _, err := flags.Parse(&opts); err != nil {
		return Options{}, err
	}
	if opts.LogDir == "" && defaultLogDirFn != nil {
		opts.LogDir = defaultLogDirFn()
	}
	return opts, nil
}

func ValidateRequired(opts Options) error {
	if strings.TrimSpace(opts.Username) == "" {
		return errors.New("username is required")
	}
	if strings.TrimSpace(opts.Password) == "" {
		return errors.New("password is required")
	}
	if strings.TrimSpace(opts.LogDir) == "" {
		return errors.New("log directory is required")
	}
	return nil
}

func BuildEndpoints(reportURL string, channelListURL string) (Endpoints, error) {
	report, err := normalizeEndpointURL(reportURL, DefaultReportURL)
	if err != nil {
		return Endpoints{}, err
	}
	list, err := normalizeEndpointURL(channelListURL, DefaultChannelListURL)
	if err != nil {
		return Endpoints{}, err
	}
	return Endpoints{ReportURL: report, ChannelListURL: list}, nil
}

func normalizeEndpointURL(raw string, fallback string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		value = fallback
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return "", err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", errors.New("expected absolute URL like https://example.com/report.pl")
	}
	if !strings.EqualFold(parsed.Scheme, "http") && !strings.EqualFold(parsed.Scheme, "https") {
		return "", errors.New("endpoint URL scheme must be http or https")
	}
	parsed.Fragment = ""
	return strings.TrimRight(parsed.String(), "/"), nil
}

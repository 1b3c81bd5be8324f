package config

import "testing"

func TestBuildEndpoints_DefaultsWhenBlank(t *testing.T) {
	endpoints, err := BuildEndpoints("", "")
	if err != nil {
		t.Fatalf("BuildEndpoints failed: %v", err)
	}
	if endpoints.ReportURL != DefaultReportURL {
		t.Fatalf("ReportURL = %q, want %q", endpoints.ReportURL, DefaultReportURL)
	}
	if endpoints.ChannelListURL != DefaultChannelListURL {
		t.Fatalf("ChannelListURL = %q, want %q", endpoints.ChannelListURL, DefaultChannelListURL)
	}
}

func TestBuildEndpoints_Overrides(t *testing.T) {
	endpoints, err := BuildEndpoints("http://127.0.0.1:8090/report.pl", "http://127.0.0.1:8090/intelchannels.pl")
	if err != nil {
		t.Fatalf("BuildEndpoints failed: %v", err)
	}
	if endpoints.ReportURL != "http://127.0.0.1:8090/report.pl" {
		t.Fatalf("ReportURL = %q", endpoints.ReportURL)
	}
	if endpoints.ChannelListURL != "http://127.0.0.1:8090/intelchannels.pl" {
		t.Fatalf("ChannelListURL = %q", endpoints.ChannelListURL)
	}
}

func TestBuildEndpoints_InvalidScheme(t *testing.T) {
	tests := []string{
		"ftp://example.com/report.pl",
		"file:///tmp/report.pl",
		"/report.pl",
	}
	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			if _, err := BuildEndpoints(raw, ""); err == nil {
				t.Fatalf("expected error for %q", raw)
			}
		})
	}
}

func TestValidateRequired(t *testing.T) {
	valid := Options{Username: "pilot", Password: "secret", LogDir: "/tmp/logs"}
	if err := ValidateRequired(valid); err != nil {
		t.Fatalf("ValidateRequired(valid) = %v", err)
	}
	tests := []struct {
		name string
		opts Options
	}{
		{name: "missing username", opts: Options{Password: "secret", LogDir: "/tmp"}},
		{name: "missing password", opts: Options{Username: "pilot", LogDir: "/tmp"}},
		{name: "missing log dir", opts: Options{Username: "pilot", Password: "secret"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateRequired(tt.opts); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

package infra

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/xela07ax/condgate/internal/gate"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 8080 || cfg.GRPC.Port != 50052 {
		t.Errorf("ports = %d/%d, want 8080/50052", cfg.Server.Port, cfg.GRPC.Port)
	}
	if cfg.Journal.FlushInterval != 500*time.Millisecond {
		t.Errorf("flush interval = %v", cfg.Journal.FlushInterval)
	}
	if cfg.Registry.RetryAttempts != 3 {
		t.Errorf("retry attempts = %d, want 3", cfg.Registry.RetryAttempts)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	cfg, err := LoadConfig(writeConfig(t, "server:\n  port: 8081\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d, want 9000 from env", cfg.Server.Port)
	}
}

func TestConfigRules(t *testing.T) {
	dir := writeConfig(t, `
gates:
  kudos:
    attribute: language
    included: "Python, C"
    excluded: Java
  render:
    attribute: format
    included: [pdf, html]
  open:
    attribute: owner
`)
	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatal(err)
	}
	rules, err := cfg.Rules()
	if err != nil {
		t.Fatal(err)
	}

	type view struct {
		Name, Attribute    string
		Included, Excluded []string
	}
	got := make([]view, 0, len(rules))
	for _, r := range rules {
		g := r.Gate()
		got = append(got, view{r.Name, r.Attribute, g.Included().Strings(), g.Excluded().Strings()})
	}
	want := []view{
		{"kudos", "language", []string{"C", "PYTHON"}, []string{"JAVA"}},
		{"open", "owner", nil, nil},
		{"render", "format", []string{"HTML", "PDF"}, nil},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("rules mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigRulesKeepRawFilter(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
gates:
  typo:
    attribute: language
    included: " "
`))
	if err != nil {
		t.Fatal(err)
	}
	rules, err := cfg.Rules()
	if err != nil {
		t.Fatal(err)
	}
	if len(rules) != 1 {
		t.Fatalf("rules = %+v, want one", rules)
	}
	if rules[0].IncludeFilter.String() != `" "` {
		t.Errorf("IncludeFilter = %s, want raw blank string", rules[0].IncludeFilter)
	}
	// Пустой included из конфига не должен превращаться в "без ограничений"
	d, err := rules[0].Gate().Decide(map[string]any{"language": "perl"})
	if err != nil {
		t.Fatal(err)
	}
	if d.Allowed {
		t.Errorf("Decide(perl) = %+v, want suppressed by blank included", d)
	}
}

func TestConfigRulesMalformed(t *testing.T) {
	cfg := &Config{Gates: map[string]GateConfig{
		"bad": {Attribute: "language", Included: 42},
	}}
	if _, err := cfg.Rules(); !errors.Is(err, gate.ErrMalformedFilter) {
		t.Errorf("Rules() error = %v, want ErrMalformedFilter", err)
	}
}

func TestLoadConfigBrokenFile(t *testing.T) {
	if _, err := LoadConfig(writeConfig(t, "server: [\n")); err == nil {
		t.Error("LoadConfig() error = nil, want parse error")
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		cfg     LoggerConfig
		wantErr bool
	}{
		{LoggerConfig{Level: "info", Format: "json"}, false},
		{LoggerConfig{Level: "debug", Format: "console"}, false},
		{LoggerConfig{Level: "loud", Format: "json"}, true},
		{LoggerConfig{Level: "info", Format: "xml"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.cfg.Level+"/"+tt.cfg.Format, func(t *testing.T) {
			_, err := NewLogger(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewLogger(%+v) error = %v, wantErr %v", tt.cfg, err, tt.wantErr)
			}
		})
	}
}

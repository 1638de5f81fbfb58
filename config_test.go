package telerelay

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

const sampleConfig = `{
  "api_id": 12345,
  "api_hash": "0123456789abcdef",
  "sessions": ["main", "backup"],
  "mappings": [
    {
      "source": -1001111111111,
      "destination": "-2222222222",
      "keyword_filtering_enabled": true,
      "keywords_include": ["buy"],
      "number_threshold_enabled": true,
      "number_threshold_min": 10,
      "number_threshold_max": null,
      "modification_enabled": true,
      "prefix_enabled": true,
      "prefix": "Signal"
    },
    {
      "source": "-1003333333333",
      "destination": 4444,
      "enabled": false,
      "number_regex_patterns": ["total (\\d+)"],
      "number_threshold_max": 500
    }
  ]
}`

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}

	if cfg.APIID != 12345 || cfg.APIHash != "0123456789abcdef" {
		t.Errorf("credentials = %d/%q", cfg.APIID, cfg.APIHash)
	}
	if cfg.SessionDir != "sessions" {
		t.Errorf("SessionDir = %q, want default %q", cfg.SessionDir, "sessions")
	}
	if !slices.Equal(cfg.Sessions, []string{"main", "backup"}) {
		t.Errorf("Sessions = %v", cfg.Sessions)
	}
	if len(cfg.Mappings) != 2 {
		t.Fatalf("len(Mappings) = %d, want 2", len(cfg.Mappings))
	}

	first := cfg.Mappings[0]
	if !first.Enabled {
		t.Error("Enabled should default to true")
	}
	if !first.Source.IsLiteral() || first.Destination.IsLiteral() {
		t.Error("source should be an integer and destination a string")
	}
	if !math.IsInf(first.NumberThresholdMax, 1) {
		t.Errorf("NumberThresholdMax = %v, want +Inf for null", first.NumberThresholdMax)
	}
	if !slices.Equal(first.NumberRegexPatterns, []string{DefaultNumberPattern}) {
		t.Errorf("NumberRegexPatterns = %v, want default", first.NumberRegexPatterns)
	}
	if !first.PrefixEnabled || first.Prefix != "Signal" || first.SuffixEnabled {
		t.Errorf("modification fields = %+v", first)
	}

	second := cfg.Mappings[1]
	if second.Enabled {
		t.Error("explicit enabled=false should be kept")
	}
	if second.NumberThresholdMin != 0 || second.NumberThresholdMax != 500 {
		t.Errorf("thresholds = [%v, %v], want [0, 500]", second.NumberThresholdMin, second.NumberThresholdMax)
	}
	if !slices.Equal(second.NumberRegexPatterns, []string{`total (\d+)`}) {
		t.Errorf("NumberRegexPatterns = %v", second.NumberRegexPatterns)
	}
}

func TestParseConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{
			name:    "missing api id",
			data:    `{"api_hash": "x"}`,
			wantErr: ErrMissingAPIID,
		},
		{
			name:    "missing api hash",
			data:    `{"api_id": 1}`,
			wantErr: ErrMissingAPIHash,
		},
		{
			name:    "missing destination",
			data:    `{"api_id": 1, "api_hash": "x", "mappings": [{"source": 1}]}`,
			wantErr: ErrMissingChatID,
		},
		{
			name:    "invalid destination",
			data:    `{"api_id": 1, "api_hash": "x", "mappings": [{"source": 1, "destination": "@name"}]}`,
			wantErr: ErrInvalidChatID,
		},
		{
			name:    "invalid source",
			data:    `{"api_id": 1, "api_hash": "x", "mappings": [{"source": "abc", "destination": 2}]}`,
			wantErr: ErrInvalidChatID,
		},
		{
			name:    "min above max",
			data:    `{"api_id": 1, "api_hash": "x", "mappings": [{"source": 1, "destination": 2, "number_threshold_min": 5, "number_threshold_max": 1}]}`,
			wantErr: ErrInvalidThreshold,
		},
		{
			name:    "session with path",
			data:    `{"api_id": 1, "api_hash": "x", "sessions": ["../evil"]}`,
			wantErr: ErrInvalidSessionName,
		},
		{
			name:    "duplicate session",
			data:    `{"api_id": 1, "api_hash": "x", "sessions": ["a", "a"]}`,
			wantErr: ErrInvalidSessionName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.data))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseConfig() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := ParseConfig([]byte(`{not json`)); err == nil {
		t.Error("ParseConfig() with malformed JSON should fail")
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("LoadConfig() of a missing file should fail")
	} else {
		var cerr *ConfigError
		if !errors.As(err, &cerr) || cerr.Path != path {
			t.Errorf("LoadConfig() error = %v, want *ConfigError for %s", err, path)
		}
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("LoadConfig() error = %v, want wrapped os.ErrNotExist", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if got, want := cfg.SessionPath("main"), filepath.Join("sessions", "main.session"); got != want {
		t.Errorf("SessionPath() = %q, want %q", got, want)
	}
}

func TestMappingKey(t *testing.T) {
	a := Mapping{Source: ChatInt(-1001), Destination: ChatString("-2")}
	b := Mapping{Source: ChatString("-1001"), Destination: ChatInt(-2)}
	if a.Key() != b.Key() {
		t.Errorf("Key() differs for equal ids: %v vs %v", a.Key(), b.Key())
	}
}

func TestReadConfig_SkipsValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"api_id": 1, "api_hash": "x", "sessions": ["a", "a"],
	  "mappings": [{"source": 1, "destination": 2, "number_threshold_min": 5, "number_threshold_max": 1}]}`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfig(path); !errors.Is(err, ErrInvalidThreshold) {
		t.Errorf("LoadConfig() error = %v, want ErrInvalidThreshold", err)
	}

	cfg, err := ReadConfig(path)
	if err != nil {
		t.Fatalf("ReadConfig() error = %v", err)
	}
	if cfg.SessionDir != "sessions" || len(cfg.Mappings) != 1 {
		t.Errorf("ReadConfig() = %+v, want defaults applied and one mapping", cfg)
	}
	if err := cfg.Mappings[0].validate(); !errors.Is(err, ErrInvalidThreshold) {
		t.Errorf("Mapping.validate() error = %v, want ErrInvalidThreshold", err)
	}

	writeFile(t, path, "{broken")
	var cerr *ConfigError
	if _, err := ReadConfig(path); !errors.As(err, &cerr) {
		t.Errorf("ReadConfig() error = %v, want *ConfigError", err)
	}
}

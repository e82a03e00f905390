package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// APIConfig holds the scoring service HTTP settings.
type APIConfig struct {
	ListenAddr  string `yaml:"listen_addr"`
	ServiceAddr string `yaml:"service_addr"` // advertised destination address for tracker-derived features
	ServicePort int    `yaml:"service_port"`
}

// ClassifierConfig points at the trained model artifact.
type ClassifierConfig struct {
	ModelPath string `yaml:"model_path"`
}

// PipelineConfig holds the feature-synthesis policy knobs. The defaults
// mirror the demo deployment; every value here is tunable per site.
type PipelineConfig struct {
	IdleTimeout      string  `yaml:"idle_timeout"`       // flow expiry gap, e.g. "5s"
	ApproxEventBytes int     `yaml:"approx_event_bytes"` // assumed size of one event on the tracker path
	LocalClamp       bool    `yaml:"local_clamp"`        // clamp loopback flows to demo-realistic values
	VitalsConfidence float64 `yaml:"vitals_confidence"`  // confidence when only the rule layer fires
}

// IdleTimeoutDuration parses the idle timeout.
func (p PipelineConfig) IdleTimeoutDuration() (time.Duration, error) {
	d, err := time.ParseDuration(p.IdleTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid pipeline idle_timeout: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("pipeline idle_timeout must be positive")
	}
	return d, nil
}

// VitalsConfig holds the rule-engine thresholds.
type VitalsConfig struct {
	SpO2Low       float64 `yaml:"spo2_low"`       // below this, low oxygen saturation
	SpO2Critical  float64 `yaml:"spo2_critical"`  // below this, severity escalates to high
	PulseHigh     int     `yaml:"pulse_high"`     // above this, tachycardia
	PulseCritical int     `yaml:"pulse_critical"` // above this, severity escalates to high
}

// NATSConfig holds the verdict broadcast settings for the scoring service.
type NATSConfig struct {
	Enabled     bool   `yaml:"enabled"`
	URL         string `yaml:"url"`
	VerdictRoot string `yaml:"verdict_root"`
}

// BridgeConfig holds the bus bridge settings.
type BridgeConfig struct {
	NATSURL        string `yaml:"nats_url"`
	IngressRoot    string `yaml:"ingress_root"`
	EgressRoot     string `yaml:"egress_root"`
	GatewayID      string `yaml:"gateway_id"`
	GatewayIP      string `yaml:"gateway_ip"`
	DeviceIP       string `yaml:"device_ip"` // default source address when the device does not report one
	APIURL         string `yaml:"api_url"`
	ScoringTimeout string `yaml:"scoring_timeout"`
	PublishAlerts  bool   `yaml:"publish_alerts"`
}

// ScoringTimeoutDuration parses the hard timeout on the scoring call.
func (b BridgeConfig) ScoringTimeoutDuration() (time.Duration, error) {
	d, err := time.ParseDuration(b.ScoringTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid bridge scoring_timeout: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("bridge scoring_timeout must be positive")
	}
	return d, nil
}

// TextSinkConfig holds the JSON-lines verdict log settings.
type TextSinkConfig struct {
	Enabled  bool   `yaml:"enabled"`
	RootPath string `yaml:"root_path"`
}

// ClickHouseConfig holds the connection settings for the verdict table.
type ClickHouseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// SinksConfig groups the optional verdict sinks.
type SinksConfig struct {
	Text       TextSinkConfig   `yaml:"text"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	API        APIConfig        `yaml:"api"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Vitals     VitalsConfig     `yaml:"vitals"`
	NATS       NATSConfig       `yaml:"nats"`
	Bridge     BridgeConfig     `yaml:"bridge"`
	Sinks      SinksConfig      `yaml:"sinks"`
}

// LoadConfig reads the configuration from a YAML file and returns a Config
// struct with defaults applied for anything the file leaves unset.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	return cfg, nil
}

// Default returns a Config populated with the consolidated demo defaults.
func Default() *Config {
	return &Config{
		API: APIConfig{
			ListenAddr:  ":8000",
			ServiceAddr: "127.0.0.1",
			ServicePort: 8000,
		},
		Classifier: ClassifierConfig{
			ModelPath: "configs/model.json",
		},
		Pipeline: PipelineConfig{
			IdleTimeout:      "5s",
			ApproxEventBytes: 300,
			LocalClamp:       true,
			VitalsConfidence: 0.9,
		},
		Vitals: VitalsConfig{
			SpO2Low:       90.0,
			SpO2Critical:  85.0,
			PulseHigh:     130,
			PulseCritical: 150,
		},
		NATS: NATSConfig{
			Enabled:     false,
			URL:         "nats://127.0.0.1:4222",
			VerdictRoot: "twinguard.verdicts",
		},
		Bridge: BridgeConfig{
			NATSURL:        "nats://127.0.0.1:4222",
			IngressRoot:    "edge",
			EgressRoot:     "plx.reading",
			GatewayID:      "pi-01",
			GatewayIP:      "192.168.1.1",
			DeviceIP:       "192.168.1.100",
			APIURL:         "http://127.0.0.1:8000/analyze_vitals",
			ScoringTimeout: "2s",
			PublishAlerts:  false,
		},
		Sinks: SinksConfig{
			Text: TextSinkConfig{Enabled: false, RootPath: "data/verdicts"},
			ClickHouse: ClickHouseConfig{
				Enabled:  false,
				Host:     "127.0.0.1",
				Port:     9000,
				Database: "default",
				Username: "default",
			},
		},
	}
}

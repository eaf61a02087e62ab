package taglib

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// trackingEnv holds the identifiers that can be set from the environment.
type trackingEnv struct {
	// Env: LYTICS_TAG_ID
	LyticsTagID string `envconfig:"LYTICS_TAG_ID"`
	// Env: GA_MEASUREMENT_ID
	GAMeasurementID string `envconfig:"GA_MEASUREMENT_ID"`
}

type configFile struct {
	Tracking map[Service]string `yaml:"tracking"`
}

// LoadConfig builds the injection config from an optional YAML file and the
// environment. Environment variables win over the file.
//
//	tracking:
//	  lytics: a84fef4e65fe894eecb707074a47c0f2
//	  gtag: G-XXXXXXXXXX
func LoadConfig(path string) (InjectionConfig, error) {
	cfg := InjectionConfig{}

	if path != "" {
		fileCfg, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		for k, v := range fileCfg {
			cfg[k] = v
		}
	}

	env := trackingEnv{
		LyticsTagID:     cfg[ServiceLytics],
		GAMeasurementID: cfg[ServiceGtag],
	}
	if err := envconfig.Process("", &env); err != nil {
		return nil, fmt.Errorf("failed to load tracking identifiers from environment: %w", err)
	}

	setIfPresent(cfg, ServiceLytics, env.LyticsTagID)
	setIfPresent(cfg, ServiceGtag, env.GAMeasurementID)
	return cfg, nil
}

func readConfigFile(path string) (InjectionConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	var f configFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("syntax error in config file '%s': %w", path, err)
	}

	known := make(map[Service]bool)
	for _, s := range Services() {
		known[s] = true
	}
	for s := range f.Tracking {
		if !known[s] {
			return nil, fmt.Errorf("unknown tracking service '%s' in config file '%s'", s, path)
		}
	}
	return f.Tracking, nil
}

func setIfPresent(cfg InjectionConfig, s Service, id string) {
	if id == "" {
		delete(cfg, s)
		return
	}
	cfg[s] = id
}

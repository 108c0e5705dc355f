package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v2"
)

// initConfig decodes a configuration file into target.
//
// Parameters:
// - file: *os.File - the file to read the configuration from.
// - target: any - a pointer to the configuration struct.
//
// Returns:
// - error: an error if the configuration file format is unknown or if there was an error decoding the file.
func initConfig(file *os.File, target any) error {
	if strings.HasSuffix(file.Name(), ".toml") {
		_, err := toml.NewDecoder(file).Decode(target)
		return err
	}
	if strings.HasSuffix(file.Name(), ".yaml") || strings.HasSuffix(file.Name(), ".yml") {
		return yaml.NewDecoder(file).Decode(target)
	}
	if strings.HasSuffix(file.Name(), ".json") {
		return json.NewDecoder(file).Decode(target)
	}
	return fmt.Errorf("unknown config format type: %s. Use .toml, .yaml or .json suffix in filename", file.Name())
}

// ValueOrDefaultDuration returns value unless it is zero or negative.
func ValueOrDefaultDuration(value time.Duration, def time.Duration) time.Duration {
	if value <= 0 {
		return def
	}
	return value
}

// ValueOrDefaultInt returns value unless it is zero or negative.
func ValueOrDefaultInt(value int, def int) int {
	if value <= 0 {
		return def
	}
	return value
}

func ValueOrDefaultFloat(value float64, def float64) float64 {
	if value <= 0 {
		return def
	}
	return value
}

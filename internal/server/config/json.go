package config

import (
	"encoding/json"
	"os"

	"boltboard/internal/flagx"
)

// JsonConfig mirrors Config for JSON unmarshalling.
type JsonConfig struct {
	EndpointAddr  string `json:"endpoint_addr"`
	DBFile        string `json:"db_file"`
	AllowedOrigin string `json:"allowed_origin"`
}

// parseJson overlays values from the JSON file named by -c/-config, when
// present. A missing flag means no file is loaded; an unreadable or invalid
// file panics, since starting with half a config helps nobody.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.EndpointAddr != "" {
		config.EndpointAddr = c.EndpointAddr
	}
	if c.DBFile != "" {
		config.DBFile = c.DBFile
	}
	if c.AllowedOrigin != "" {
		config.AllowedOrigin = c.AllowedOrigin
	}
}

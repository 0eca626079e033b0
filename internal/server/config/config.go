// Package config handles configuration for the server: defaults, an
// optional JSON overlay and command-line flags, applied in that order.
package config

// Config holds runtime settings for the boltboard server.
//
// Fields:
//   - EndpointAddr: bind address for the HTTP API.
//   - DBFile: path of the JSON document holding posts and node entries.
//   - AllowedOrigin: browser origin allowed by CORS and the event socket.
type Config struct {
	EndpointAddr  string
	DBFile        string
	AllowedOrigin string
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.EndpointAddr = ":4000"
	c.DBFile = "db.json"
	c.AllowedOrigin = "http://localhost:3000"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}

package config

import (
	"flag"
	"os"

	"boltboard/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags:
//
//	-a string   HTTP bind address (e.g., ":4000")
//	-f string   path to the JSON db file
//	-o string   allowed browser origin
//
// os.Args is filtered through flagx.FilterArgs first so flags owned by
// other components (like -c/-config) do not trip the flag set.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-f", "-o"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DBFile, "f", config.DBFile, "path to db file")
	fs.StringVar(&config.AllowedOrigin, "o", config.AllowedOrigin, "allowed browser origin")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}

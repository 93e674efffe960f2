package config

import (
	"watttime-api/pkg/carbon"
)

// MustLoadCarbon loads etc/carbon.yaml from the project root and panics on
// error. It isolates source config so tests that only need a fetcher do not
// have to stand up the full application config.
func MustLoadCarbon() *carbon.Config {
	return carbon.MustLoad()
}

// MustBuildSources loads carbon config from the default path and builds
// fetcher instances; returns the map and default source name.
func MustBuildSources() (map[string]carbon.Fetcher, string) {
	cfg := MustLoadCarbon()
	sources, err := cfg.BuildSources()
	if err != nil {
		panic(err)
	}
	return sources, cfg.DefaultName()
}

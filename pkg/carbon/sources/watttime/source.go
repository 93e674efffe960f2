package watttime

import (
	"net/http"

	"watttime-api/pkg/carbon"
)

func init() {
	carbon.RegisterSource("watttime", func(name string, cfg *carbon.SourceConfig) (carbon.Fetcher, error) {
		opts := []Option{}
		if cfg.BaseURL != "" {
			opts = append(opts, WithBaseURL(cfg.BaseURL))
		}
		if cfg.HTTPTimeout > 0 {
			opts = append(opts, WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}))
		}
		if cfg.PageLimit > 0 {
			opts = append(opts, WithPageLimit(cfg.PageLimit))
		}
		return NewClient(cfg.Token, opts...)
	})
}

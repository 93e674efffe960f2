package watttime

import "watttime-api/pkg/carbon"

// page is one response page of the marginal endpoint. Next is empty on the
// final page (the API sends null).
type page struct {
	Count    int             `json:"count"`
	Next     string          `json:"next"`
	Previous string          `json:"previous"`
	Results  []carbon.Record `json:"results"`
}

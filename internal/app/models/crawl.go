package models

import "encoding/json"

// NearbyPub is one row returned by the find_nearby_unvisited_pubs function,
// ordered nearest first.
type NearbyPub struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Address  *string  `json:"address,omitempty"`
	Lon      float64  `json:"lon"`
	Lat      float64  `json:"lat"`
	Distance *float64 `json:"distance_meters,omitempty"`
}

// CrawlResult is the response of the crawl endpoint. Route is passed through
// from the directions provider untouched.
type CrawlResult struct {
	Route         json.RawMessage `json:"route"`
	TotalDuration float64         `json:"totalDuration"`
	PubIDs        []int64         `json:"pubIds"`
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
}

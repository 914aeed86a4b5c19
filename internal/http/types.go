package http

import (
	"github.com/fyrsmithlabs/boxd/internal/application"
	"github.com/fyrsmithlabs/boxd/internal/bridge"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Modules int    `json:"modules"`
}

// ModulesResponse is the response body for GET /api/v1/modules.
type ModulesResponse struct {
	Types     []string                   `json:"types"`
	Instances []application.InstanceInfo `json:"instances"`
}

// ConfigResponse is the response body for the config endpoints. Kind is
// "absent", "value" or "whole".
type ConfigResponse struct {
	Kind  string `json:"kind"`
	Value any    `json:"value"`
}

func newConfigResponse(res bridge.Result) ConfigResponse {
	return ConfigResponse{Kind: res.Kind().String(), Value: res.Any()}
}

// BroadcastRequest is the request body for POST /api/v1/broadcast.
type BroadcastRequest struct {
	Name string `json:"name"`
	Data any    `json:"data"`
}

// NavigateRequest is the request body for POST /api/v1/navigate. An empty
// URL keeps the current location.
type NavigateRequest struct {
	URL    string         `json:"url"`
	State  map[string]any `json:"state"`
	Params map[string]any `json:"params"`
}

// StatusResponse acknowledges a POST.
type StatusResponse struct {
	Status string `json:"status"`
}

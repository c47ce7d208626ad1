// Package server exposes a loaded entry over HTTP.
//
// The REST API is served with gin under /api/v1:
//
//	GET  /health                          liveness and last refresh result
//	GET  /api/v1/status                   coordinator state
//	GET  /api/v1/nodes                    normalized node snapshot
//	GET  /api/v1/nodes/:id                one node
//	GET  /api/v1/entities[?platform=p]    entity states
//	GET  /api/v1/entities/:id             one entity state
//	POST /api/v1/climate/:id/hvac_mode    {"hvac_mode": "heat"}
//	POST /api/v1/climate/:id/temperature  {"temperature": 21.5}
//	POST /api/v1/climate/:id/fan_mode     {"fan_mode": "Low"}
//	POST /api/v1/switch/:id/on
//	POST /api/v1/switch/:id/off
//	POST /api/v1/number/:id/value         {"value": 22}
//	POST /api/v1/refresh                  run a refresh cycle now
//	GET  /api/v1/ws                       live state stream
//
// # Authentication
//
// When a token secret is configured every /api/v1 route requires an HS256
// bearer token issued by TokenIssuer. Browsers that cannot set headers on a
// WebSocket upgrade may pass the token as ?token= instead.
//
// # Live updates
//
// The WebSocket hub subscribes to the coordinator. Each client receives the
// full entity list on connect and again after every refresh cycle, together
// with the cycle outcome. Clients may send {"type":"refresh"} to request a
// cycle.
package server

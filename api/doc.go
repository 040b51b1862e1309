// Package api documents the crewstudio HTTP API.
//
// Request handlers live in the handlers subpackage; this package only
// carries the API overview.
//
// # API Overview
//
// crewstudio exposes a small RESTful API for:
//   - Browser sessions holding per-role provider credentials
//   - The provider catalog and live model listing
//   - Assembling and running the research crew, blocking or streamed
//   - Health monitoring and metrics
//
// # Authentication
//
// A session is created with POST /api/v1/sessions. The response carries a
// signed bearer token that every other /api/v1 route requires:
//
//	Authorization: Bearer <token>
//
// WebSocket upgrades may pass the token as ?access_token= instead.
//
// # Base URL
//
// The default base URL for the API is:
//
//	http://localhost:8080
//
// Prometheus metrics are served separately on :9091/metrics.
//
// # Response Format
//
// All JSON responses share one envelope:
//
//	{
//	  "success": true,
//	  "data": { ... },
//	  "timestamp": "2026-01-01T00:00:00Z"
//	}
//
// Errors set success=false and fill "error" with code, message and
// retryable. Model listing never fails at the HTTP layer; a failed
// listing reports status "fallback", "timeout" or "unavailable" in the body.
package api

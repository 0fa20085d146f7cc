// Package api holds the request and response types of the debateflow HTTP API.
//
// # API Overview
//
// The dashboard API drives a single in-memory debate:
//   - Start, step, run and finalize the active debate
//   - Export the transcript as a plain or detailed text attachment
//   - Follow committed turns live over a websocket
//   - Archive finished transcripts and browse the archive
//   - Probe the upstream LLM ("Test API Connection")
//
// # Authentication
//
// When API keys are configured every /api/ endpoint requires the X-API-Key
// header:
//
//	X-API-Key: your-api-key
//
// # Base URL
//
// The default base URL for the API is:
//
//	http://localhost:8080
package api

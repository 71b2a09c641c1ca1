// Package google provides shared infrastructure for Google API connectors.
//
// It contains:
//   - a TokenSource adapter bridging driven.TokenProvider to oauth2.TokenSource
//   - service factories for Google API clients
//   - classification of Google API errors (401, 403, 404, 429, 410)
//   - rate limiting to respect Google API quotas
//
// # Usage
//
//	ts := google.NewTokenSource(ctx, tokenProvider)
//	svc, err := google.NewDriveService(ctx, ts)
//
// # OAuth2 Scopes
//
// The Drive connector only reads, so it requests
// https://www.googleapis.com/auth/drive.readonly.
package google

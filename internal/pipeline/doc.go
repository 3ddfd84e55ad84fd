// Package pipeline sequences one retrieval-and-assembly run: login, record
// search, asset fetch, document assembly.
//
// A run moves through authenticating → searching → fetching → assembling →
// done, with failed reachable from any stage. Cancellation is checked at
// every transition. Fatal component errors are surfaced verbatim, wrapped
// only with the stage at which they occurred; per-image decode problems are
// collected as warnings and never abort the run under the skip policy.
package pipeline

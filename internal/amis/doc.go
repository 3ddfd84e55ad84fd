// Package amis implements the authenticated session client for the AMIS
// record-management system: login, record search, and file download.
//
// Authentication state lives in an explicit Session value: created by
// Login, passed into every retrieval call, and invalidated by Close or by
// the server rejecting it, so there is no hidden shared session state
// between calls. Downloads retry transient transport failures with
// exponential backoff before surfacing a DownloadError.
package amis

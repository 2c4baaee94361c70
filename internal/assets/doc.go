// Package assets fetches remote files into a local download cache and reads
// the model formats the bridge can import.
//
// Downloads are keyed by a hash of the full URL, so a file is fetched once
// per cache directory. Transient failures (timeouts, refused connections,
// 5xx and 429 responses) are retried with exponential backoff; anything else
// is returned as a *FetchError on the first attempt.
package assets

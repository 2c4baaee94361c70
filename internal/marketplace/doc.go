// Package marketplace is a client for a Poly Haven style asset API: asset
// categories, filtered search and per-asset file listings.
//
// It only resolves which files to download. Downloading goes through the
// assets.Fetcher cache, and turning files into scene entities is left to
// the command handlers.
package marketplace

// Package fetcher downloads build package archives to local storage,
// streaming the response body to disk with bounded retries for transient
// network failures.
package fetcher

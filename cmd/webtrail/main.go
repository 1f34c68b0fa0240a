// Package main provides the entry point for the webtrail CLI.
//
// webtrail ingests browsing history, filters it against a domain
// blocklist, classifies pages, and serves analytics over the stored data.
//
// Usage:
//
//	webtrail ingest --input history.json
//	webtrail report --days 30
//	webtrail serve
//
// See --help for all available options.
package main

// main is the entry point for webtrail.
func main() {
	Execute()
}

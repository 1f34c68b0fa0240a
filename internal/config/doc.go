// Package config provides configuration management for webtrail.
//
// Configuration comes from three layers, later layers overriding earlier:
//  1. Compile-time defaults (NewConfig)
//  2. An optional YAML file (.webtrail in cwd or home directory)
//  3. CLI flags applied by the cmd package
//
// The Config struct is passed through the application via dependency
// injection rather than global state, so tests can construct arbitrary
// configurations without touching the filesystem.
package config

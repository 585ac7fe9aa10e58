// Package confloader provides configuration loading for webpanel.
//
// This package implements a flexible configuration loader that supports
// multiple sources and formats using koanf as the underlying library.
//
// Features:
//
//   - Multiple sources: files, environment variables, maps
//   - YAML configuration files
//   - Watch support: change notification on config file writes
//   - Unmarshaling into typed structs
//
// Priority (highest to lowest):
//
//  1. Environment variables
//  2. Configuration file
//  3. Default values
package confloader

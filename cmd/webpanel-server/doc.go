// Package main provides the entry point for webpanel-server.
//
// webpanel-server hosts the configuration web panel on paired HTTP and
// HTTPS listeners, reconciling both against the persisted settings at
// startup and on every configuration change.
package main

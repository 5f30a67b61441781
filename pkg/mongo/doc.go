// Package mongo provides connection helpers for MongoDB: a retrying client
// constructor driven by env-based configuration and a health-check probe.
// The mongostore package builds the document-backed subscription store on
// top of it.
package mongo

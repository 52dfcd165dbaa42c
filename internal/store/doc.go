// Package store persists posts and their publish lifecycle.
//
// The SQLite backend is the production store; Memory backs tests and
// small deployments that do not need durability.
package store

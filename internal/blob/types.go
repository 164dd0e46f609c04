// Package blob is the entry point for archive storage. It re-exports the
// core contract and selects a backend from configuration; no other package
// imports the infra drivers directly.
package blob

import (
	"rawmatqc/internal/blob/core"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface for blob storage backends.
	Store = core.Store
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	// ErrExists is returned by Put when the key is already taken.
	ErrExists = core.ErrExists
	// ErrNotFound is returned by Get and Head for unknown keys.
	ErrNotFound = core.ErrNotFound
)

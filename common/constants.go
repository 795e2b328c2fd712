// Package common holds small constants shared across the compiler that
// don't belong to any one component.
package common

const (
	// SrcFileExtension is the conventional extension for a til source file.
	SrcFileExtension = ".til"

	// Version is the compiler's reported version string.
	Version = "0.1.0"
)

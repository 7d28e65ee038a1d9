// Package errors provides classified error primitives used across qbdeploy.
//
// A ClassifiedError carries a category (config, forge, platform, ...), a
// severity, a retry strategy and structured context. Errors are built with
// the fluent ErrorBuilder and presented by CLIErrorAdapter, which also owns
// the mapping from category to process exit code.
//
// Example usage:
//
//	err := errors.ForgeError("contents request failed").
//		WithCause(cause).
//		WithContext("path", path).
//		Build()
package errors

// Package errors provides the classified error primitives used across scampish.
//
// Errors carry a category (config, store, template, render, build, internal),
// a severity and a retry strategy, plus a small structured context map. The
// fluent builder keeps construction uniform:
//
//	err := errors.StoreError("get object failed").
//		WithContext("key", key).
//		WithCause(ioErr).
//		Build()
//
// The CLI adapter maps categories to process exit codes.
package errors

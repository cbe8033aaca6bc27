// Package sanitizer normalizes free-text input before validation and storage.
//
// All functions are idempotent. Applying them more than once produces the
// same result.
package sanitizer

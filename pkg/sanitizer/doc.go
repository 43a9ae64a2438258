// Package sanitizer normalizes free-text input before validation and
// storage.
//
// All functions are idempotent - applying them twice produces the same
// result - and handle invalid input by returning empty strings rather
// than errors.
package sanitizer

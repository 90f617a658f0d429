//go:build !windows

package output

// Setup is a no-op outside Windows; ANSI escapes work as-is.
func Setup() {}

package util

import "log"

// Logging is a clumsy switch that affects what Logf does.
//
// If Logging is true, then Logf calls log.Printf.
var Logging = false

// Warnings is a separate switch for developer diagnostics such as the
// store's direct-write warning.  On by default; turn it off in
// production configurations.
var Warnings = true

// Logf is a silly utility function that calls log.Printf if Logging
// is true.
func Logf(format string, args ...interface{}) {
	if !Logging {
		return
	}
	log.Printf(format, args...)
}

// Warnf calls log.Printf (with a "warning: " prefix) if Warnings is
// true.
func Warnf(format string, args ...interface{}) {
	if !Warnings {
		return
	}
	log.Printf("warning: "+format, args...)
}

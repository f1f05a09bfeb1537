package pyexec

import _ "embed"

// driverSource is the interpreter-side protocol implementation, passed
// to the python command with -c so no support file needs installing.
//
//go:embed driver.py
var driverSource string

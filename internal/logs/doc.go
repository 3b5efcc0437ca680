// Package logs reads the clipper log file for the `clipper logs` command.
//
// Last returns the final lines of the file with bounded memory, and Follow
// polls for appended lines until its context ends, restarting from the top
// when the file is truncated or rotated.
package logs

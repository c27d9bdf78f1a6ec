// Package logs reads the shared postcast log file for the logs command.
//
// Tail shows the trailing lines of the file with bounded memory and can
// follow appends. Only complete lines advance the read offset, so a record
// being written by a concurrent postcast process is never split mid-line.
package logs

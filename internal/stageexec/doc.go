// Package stageexec runs one stage handler with the persistence and
// notification ordering every stage shares: execute on a private copy,
// persist on success, then notify.
package stageexec

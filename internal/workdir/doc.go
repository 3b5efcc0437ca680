// Package workdir derives slugs and names every path inside a video's work
// directory (<work_root>/<slug>), and guards the directory with an exclusive
// file lock so only one run touches it at a time.
package workdir

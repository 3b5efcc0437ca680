// Package preflight provides readiness checks for the binaries, credentials
// and filesystem paths clipper depends on.
//
// These checks run in three contexts:
//   - The workflow manager calls RunAll before the first stage so a run with
//     a missing ffmpeg or API key fails before any download starts.
//   - A dry run adds the network checks (CheckDrive, CheckNotifier).
//   - The CLI "clipper status" command renders CheckSystemDeps as a table.
//
// Each check is gated by what the run needs; unused features are skipped.
package preflight

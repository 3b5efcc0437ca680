// Package logging assembles the slog loggers clipper writes with.
//
// Interactive output goes to stderr through a console handler that leads with
// the slug, stage and clip id and renders the remaining attributes as labeled
// lines; `logging.format = "json"` swaps it for JSON. The log file under
// paths.log_dir always receives JSON lines so `clipper logs` can filter them.
// WithContext stamps the slug, stage, clip id and run id carried on a
// context, and WarnWithContext/ErrorWithContext guarantee the event_type and
// error_hint fields operators grep for.
package logging

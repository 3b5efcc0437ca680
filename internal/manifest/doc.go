// Package manifest loads the externally produced clip manifest
// (<name>_clips.json or <name>_clips.yaml) and rejects it wholesale on any
// structural problem. Unknown platform or category values are kept and
// reported as warnings.
package manifest

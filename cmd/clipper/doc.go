// Command clipper turns a long-form video into short clips: it fetches the
// source, transcribes it, waits for a clip manifest, cuts every clip in
// horizontal and vertical variants, and uploads the results.
//
// Every run is resumable. Re-running the same command skips stages whose
// outputs still verify on disk and retries only what failed.
package main

// Package ffmpeg wraps the ffmpeg invocations the pipeline needs: two-pass
// seek clip cutting (horizontal and 9:16 vertical), MP3 audio extraction for
// transcription, and downscaled preview copies for chat channels.
package ffmpeg

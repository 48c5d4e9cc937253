// Package ffprobe wraps ffprobe's JSON output for the render stage.
//
// Inspect runs ffprobe against a file and returns the parsed container and
// stream metadata. AudioDuration is the shortcut used to pace image slides
// against the voiceover.
package ffprobe

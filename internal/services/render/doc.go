// Package render assembles a slideshow video from generated images and a
// voiceover track using ffmpeg.
//
// Each image is shown for audio_duration / image_count seconds. The audio
// duration comes from ffprobe and falls back to a configured value when the
// probe fails. A non-zero ffmpeg exit surfaces as services.ErrRender carrying
// the tool's stderr.
package render

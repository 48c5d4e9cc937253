// Package workflow drives a video from scripting to draft.
//
// The Orchestrator resolves the client, project, and video for an intake
// request, claims the video's in-flight guard, and runs the generation
// pipeline in a detached goroutine: script, image prompts, images and voice
// in parallel, then render. Every transition goes through the video state
// machine and is flushed to the store as it happens, so readers see
// intermediate progress.
//
// Any stage failure rolls the video back to scripting with the error recorded
// in its approval note and returns the project to draft. Retry re-runs the
// pipeline for such a video. The usage ledger receives one record per
// successful billable call.
package workflow

// Package scriptgen writes video scripts and per-scene image prompts with a
// JSON-mode LLM.
//
// Prompt templates live in the embedded prompts.yaml. The script prompt asks
// for {hook, scenes[], cta}; the image prompt step always yields exactly one
// prompt per scene so scene count drives image count and timing downstream.
package scriptgen

package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"bomstudio/internal/config"
)

// Requirement defines an external binary or credential the studio relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	// Configured replaces the PATH lookup for credential requirements.
	Configured *bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists what a pipeline run needs under cfg.
func Requirements(cfg *config.Config) []Requirement {
	set := func(value string) *bool {
		ok := strings.TrimSpace(value) != ""
		return &ok
	}
	reqs := []Requirement{
		{Name: "FFmpeg", Command: cfg.Render.FFmpegBinary, Description: "Muxes images and voiceover into the final video"},
		{Name: "FFprobe", Command: cfg.Render.FFprobeBinary, Description: "Measures voiceover duration", Optional: true},
		{Name: "LLM API key", Description: "Script and image prompt generation", Configured: set(cfg.LLM.APIKey)},
		{Name: "Replicate token", Description: "Scene image generation", Configured: set(cfg.Images.APIToken)},
		{Name: "ElevenLabs key", Description: "Voiceover synthesis", Configured: set(cfg.Voice.APIKey)},
	}
	if cfg.Delivery.Enabled {
		reqs = append(reqs, Requirement{
			Name:        "Drive credentials",
			Description: "Uploads delivered videos",
			Configured:  set(cfg.Delivery.CredentialsFile),
		})
	}
	return reqs
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		switch {
		case req.Configured != nil:
			status.Available = *req.Configured
			if !status.Available {
				status.Detail = "not configured"
			}
		case cmd == "":
			status.Detail = "command not configured"
		default:
			if _, err := exec.LookPath(cmd); err != nil {
				status.Detail = fmt.Sprintf("binary %q not found", cmd)
			} else {
				status.Available = true
			}
		}
		results = append(results, status)
	}
	return results
}

// Missing returns the required statuses that are unavailable.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			out = append(out, s)
		}
	}
	return out
}

package policy

import (
	"runtime"
)

// SteamPolicy implements ItemPolicy for blocking Steam.
// Steam has no site alias; "steam" in a rule resolves to steam.com for the
// hosts file while the sweep kills the client and its helpers.
type SteamPolicy struct {
	goos string
}

// NewSteamPolicy creates a new Steam blocking policy.
func NewSteamPolicy() *SteamPolicy {
	return &SteamPolicy{goos: runtime.GOOS}
}

// NewSteamPolicyForOS creates a Steam policy for a specific platform (for testing).
func NewSteamPolicyForOS(goos string) *SteamPolicy {
	return &SteamPolicy{goos: goos}
}

func (p *SteamPolicy) ID() string {
	return "steam"
}

func (p *SteamPolicy) Name() string {
	return "Steam"
}

func (p *SteamPolicy) Domains() []string {
	return nil
}

// ProcessPatterns returns Steam process names to kill.
// "steam" already covers steamwebhelper by substring; the helper is listed
// so a sweep reports it explicitly.
func (p *SteamPolicy) ProcessPatterns() []string {
	patterns := []string{"steam", "steamwebhelper"}
	if p.goos == "darwin" {
		patterns = append(patterns, "steam_osx", "Steam Helper")
	}
	return patterns
}

// Ensure SteamPolicy implements ItemPolicy.
var _ ItemPolicy = (*SteamPolicy)(nil)

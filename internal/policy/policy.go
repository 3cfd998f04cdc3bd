// Package policy implements the Strategy pattern for blockable items.
// Each known item (a streaming site, a game launcher) has its own policy
// defining which domains to sinkhole and which processes to kill.
package policy

import (
	"strings"
)

// ItemPolicy defines the strategy interface for blocking one logical item.
type ItemPolicy interface {
	// ID returns the lower-cased alias a rule names (e.g., "netflix", "steam").
	ID() string

	// Name returns human-readable name for display.
	Name() string

	// Domains returns the hostnames the alias expands to.
	// Empty means the item is not a site alias.
	Domains() []string

	// ProcessPatterns returns process names to kill.
	// Patterns are matched case-insensitively as substrings.
	ProcessPatterns() []string
}

// SitePolicy is a table-driven ItemPolicy for items defined purely by data.
type SitePolicy struct {
	id        string
	name      string
	domains   []string
	processes []string
}

// NewSitePolicy creates a policy for id with the given domains and process patterns.
func NewSitePolicy(id, name string, domains, processes []string) *SitePolicy {
	return &SitePolicy{
		id:        strings.ToLower(id),
		name:      name,
		domains:   domains,
		processes: processes,
	}
}

func (p *SitePolicy) ID() string {
	return p.id
}

func (p *SitePolicy) Name() string {
	return p.name
}

func (p *SitePolicy) Domains() []string {
	return p.domains
}

func (p *SitePolicy) ProcessPatterns() []string {
	return p.processes
}

// defaultPolicies is the built-in catalog.
func defaultPolicies() []ItemPolicy {
	return []ItemPolicy{
		NewSitePolicy("netflix", "Netflix",
			[]string{"netflix.com", "nflxvideo.net", "nflximg.net", "nflxso.net"},
			[]string{"netflix"}),
		NewSitePolicy("youtube", "YouTube",
			[]string{"youtube.com", "youtu.be", "googlevideo.com", "ytimg.com"}, nil),
		NewSitePolicy("tiktok", "TikTok",
			[]string{"tiktok.com", "tiktokcdn.com", "tiktokv.com"}, nil),
		NewSitePolicy("reddit", "Reddit",
			[]string{"reddit.com", "redd.it", "redditmedia.com"}, nil),
		NewSitePolicy("twitter", "Twitter",
			[]string{"twitter.com", "x.com", "twimg.com"}, nil),
		NewSitePolicy("instagram", "Instagram",
			[]string{"instagram.com", "cdninstagram.com"}, nil),
		NewSitePolicy("facebook", "Facebook",
			[]string{"facebook.com", "fb.com", "fbcdn.net"}, nil),
		NewSitePolicy("twitch", "Twitch",
			[]string{"twitch.tv", "twitchcdn.net"}, nil),
		NewSitePolicy("disney+", "Disney+",
			[]string{"disneyplus.com", "disney-plus.net"}, nil),
		NewSitePolicy("hulu", "Hulu",
			[]string{"hulu.com", "huluim.com"}, nil),
		NewSitePolicy("hbo", "HBO Max",
			[]string{"hbomax.com", "max.com"}, nil),
		NewSitePolicy("amazon", "Prime Video",
			[]string{"primevideo.com", "aiv-cdn.net"}, nil),
		NewSitePolicy("spotify", "Spotify", nil, []string{"spotify"}),
		NewSitePolicy("discord", "Discord", nil, []string{"discord"}),
		NewSitePolicy("epic", "Epic Games", nil, []string{"epicgameslauncher"}),
		NewSteamPolicy(),
	}
}

// Ensure SitePolicy implements ItemPolicy.
var _ ItemPolicy = (*SitePolicy)(nil)

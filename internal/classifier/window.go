// Package classifier maps raw screen signals (window titles, OCR text) to a
// screen category and a block verdict. Both classifiers are table driven and
// safe for concurrent use once constructed.
package classifier

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/eliteGoblin/focusd/totalctl/internal/domain"
)

// UnknownApp is the app name reported when no definition matches.
const UnknownApp = "unknown"

// AppDefinition describes one recognized desktop app. DM patterns are tried
// before server patterns; within each list the first match wins.
type AppDefinition struct {
	Name           string
	ClassPatterns  []string
	DMPatterns     []*regexp.Regexp
	ServerPatterns []*regexp.Regexp
}

func titlePatterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile("(?i)" + e)
	}
	return out
}

// DefaultApps is the built-in app table in priority order.
var DefaultApps = []AppDefinition{
	{
		Name:          "discord",
		ClassPatterns: []string{"discord"},
		DMPatterns: titlePatterns(
			`^@[\p{L}\p{N}_\s]+ - Discord$`,
			`^Discord$`,
			`^Friends - Discord$`,
			`^[\p{L}\p{N}_\s]+ and \d+ others? - Discord$`,
		),
		ServerPatterns: titlePatterns(
			`^#[\p{L}\p{N}_-]+ - .+ - Discord$`,
			`^.+ - Discord$`,
		),
	},
	{
		Name:          "slack",
		ClassPatterns: []string{"slack"},
		DMPatterns: titlePatterns(
			`^\* .+ \| Slack$`,
			`^[\p{L}\p{N}_\s]+ \| Slack$`,
		),
		ServerPatterns: titlePatterns(
			`^#[\p{L}\p{N}_-]+ \| .+ \| Slack$`,
		),
	},
	{
		Name:          "twitter",
		ClassPatterns: []string{"twitter", "tweetdeck"},
		DMPatterns: titlePatterns(
			`Messages`,
			`Direct Messages`,
		),
		ServerPatterns: titlePatterns(
			`Home`,
			`Explore`,
			`Notifications`,
		),
	},
}

// DefaultAllowedApps are never blocked, whatever the title says.
var DefaultAllowedApps = []string{
	"spotify",
	"rhythmbox",
	"vlc",
	"telegram-desktop",
	"TelegramDesktop",
	"Telegram",
	"signal",
	"element",
	"whatsapp",
}

// DefaultBlockedApps are always blocked, with no DM exception.
var DefaultBlockedApps = []string{
	"netflix",
	"tiktok",
}

// WindowClassifier classifies the focused window by its class and title.
type WindowClassifier struct {
	allowed []string
	blocked []string
	apps    []AppDefinition
}

// NewWindowClassifier creates a classifier with the built-in tables.
func NewWindowClassifier() *WindowClassifier {
	return NewWindowClassifierWithTables(DefaultAllowedApps, DefaultBlockedApps, DefaultApps)
}

// NewWindowClassifierWithTables creates a classifier with custom tables (for testing).
func NewWindowClassifierWithTables(allowed, blocked []string, apps []AppDefinition) *WindowClassifier {
	return &WindowClassifier{allowed: allowed, blocked: blocked, apps: apps}
}

// Classify returns the app name and screen category. Matching order is
// allowed apps, blocked apps, then app definitions; an unrecognized window
// class is allowed, a recognized app with an unrecognized title is unknown.
func (c *WindowClassifier) Classify(windowClass, title string) (string, domain.ScreenCategory) {
	class := strings.ToLower(windowClass)

	for _, app := range c.allowed {
		if class != "" && strings.Contains(class, strings.ToLower(app)) {
			return app, domain.ScreenAllowed
		}
	}

	for _, app := range c.blocked {
		if class != "" && strings.Contains(class, strings.ToLower(app)) {
			return app, domain.ScreenFeed
		}
	}

	for _, app := range c.apps {
		if !matchesClass(class, app.ClassPatterns) {
			continue
		}
		for _, re := range app.DMPatterns {
			if re.MatchString(title) {
				return app.Name, domain.ScreenDM
			}
		}
		for _, re := range app.ServerPatterns {
			if re.MatchString(title) {
				return app.Name, domain.ScreenServerChannel
			}
		}
		return app.Name, domain.ScreenUnknown
	}

	return UnknownApp, domain.ScreenAllowed
}

// Decide classifies the window and builds the block verdict with a
// user-facing reason.
func (c *WindowClassifier) Decide(windowClass, title string) domain.BlockDecision {
	app, category := c.Classify(windowClass, title)
	return domain.BlockDecision{
		ShouldBlock: ShouldBlockScreen(category),
		Reason:      screenReason(app, category),
		AppName:     app,
		Category:    string(category),
	}
}

// ShouldBlockScreen is the window-path decision: allowed and DM screens pass,
// everything else within a recognized app blocks.
func ShouldBlockScreen(category domain.ScreenCategory) bool {
	switch category {
	case domain.ScreenAllowed, domain.ScreenDM, domain.ScreenDMList:
		return false
	}
	return true
}

func screenReason(app string, category domain.ScreenCategory) string {
	switch category {
	case domain.ScreenAllowed:
		return fmt.Sprintf("%s is allowed", app)
	case domain.ScreenDM, domain.ScreenDMList:
		return fmt.Sprintf("%s DMs are allowed", app)
	case domain.ScreenServerChannel:
		return fmt.Sprintf("%s server channels are blocked. Use DMs instead.", app)
	case domain.ScreenFeed:
		return fmt.Sprintf("%s is blocked. Focus on your goals.", app)
	}
	return fmt.Sprintf("%s - unknown screen, blocked by default", app)
}

func matchesClass(class string, patterns []string) bool {
	if class == "" {
		return false
	}
	for _, p := range patterns {
		if strings.Contains(class, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

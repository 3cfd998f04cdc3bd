package classifier

import (
	"regexp"
	"strings"

	"github.com/eliteGoblin/focusd/totalctl/internal/domain"
)

// Tier weights for the OCR scorer.
const (
	StrongWeight = 2.0
	MediumWeight = 0.5
	AppWeight    = 1.5

	// MinScore is the weakest winning score that is not reported as unknown.
	MinScore = 1.0
)

// Tier labels recorded as evidence.
const (
	TierStrong = "strong"
	TierMedium = "medium"
)

// TextPattern is one row of the scoring table.
type TextPattern struct {
	Category domain.TextCategory
	Tier     string
	Expr     string
	re       *regexp.Regexp
}

// AppPattern is one row of the per-app boost table.
type AppPattern struct {
	App      string
	Category domain.TextCategory
	Expr     string
	re       *regexp.Regexp
}

type row struct {
	category domain.TextCategory
	tier     string
	exprs    []string
}

func buildPatterns(rows ...row) []TextPattern {
	var out []TextPattern
	for _, r := range rows {
		for _, e := range r.exprs {
			out = append(out, TextPattern{
				Category: r.category,
				Tier:     r.tier,
				Expr:     e,
				re:       regexp.MustCompile("(?i)" + e),
			})
		}
	}
	return out
}

type appRow struct {
	app  string
	dm   []string
	feed []string
}

func buildAppPatterns(rows ...appRow) []AppPattern {
	var out []AppPattern
	for _, r := range rows {
		for _, e := range r.dm {
			out = append(out, AppPattern{App: r.app, Category: domain.TextDM, Expr: e, re: regexp.MustCompile("(?i)" + e)})
		}
		for _, e := range r.feed {
			out = append(out, AppPattern{App: r.app, Category: domain.TextFeed, Expr: e, re: regexp.MustCompile("(?i)" + e)})
		}
	}
	return out
}

// DefaultTextPatterns is the generic scoring table.
var DefaultTextPatterns = buildPatterns(
	row{domain.TextDM, TierStrong, []string{
		`direct\s*messages?`,
		`new\s*message`,
		`send\s*a?\s*message`,
		`message\s*requests?`,
		`start\s*a?\s*(new\s*)?conversation`,
		`type\s*a\s*message`,
		`@[\p{L}\p{N}_]+\s+online`,
		`friends?\s*(online|\d+)`,
		`write\s*a\s*message`,
		`chat\s*with`,
	}},
	row{domain.TextDM, TierMedium, []string{
		`inbox`,
		`chats?`,
		`conversations?`,
		`reply`,
		`delivered`,
		`seen\s+\d`,
		`typing\.\.\.`,
	}},
	row{domain.TextFeed, TierStrong, []string{
		`for\s*you`,
		`following\s*tab`,
		`suggested\s*(for\s*you|posts?)`,
		`sponsored`,
		`promoted`,
		`trending\s*(now|topics?)?`,
		`what.?s\s*happening`,
		`discover\s*more`,
		`explore\s*page`,
		`popular\s*(posts?|now)?`,
		`top\s*posts?`,
		`new\s*posts?`,
		`\d+\s*(likes?|comments?|shares?|retweets?)`,
		`liked\s*by\s*\d+`,
		`view\s*all\s*\d+\s*comments?`,
	}},
	row{domain.TextFeed, TierMedium, []string{
		`home`,
		`feed`,
		`timeline`,
		`posts?`,
		`stories`,
		`follow\s*(back)?`,
		`share`,
	}},
	row{domain.TextReels, TierStrong, []string{
		`reels?`,
		`shorts?`,
		`tiktok`,
		`watch\s*now`,
		`swipe\s*up`,
		`original\s*audio`,
		`trending\s*audio`,
		`use\s*this\s*(sound|audio)`,
	}},
	row{domain.TextNotifications, TierStrong, []string{
		`notifications?`,
		`activity`,
		`all\s*notifications?`,
		`mentions?`,
		`replied\s*to\s*you`,
		`mentioned\s*you`,
		`tagged\s*you`,
	}},
	row{domain.TextProfile, TierStrong, []string{
		`(\d+[km]?\s*)?(followers?|following)`,
		`edit\s*profile`,
		`bio`,
		`joined\s*(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)`,
		`\d+\s*posts?\s+\d+\s*followers?`,
	}},
	row{domain.TextSearch, TierStrong, []string{
		`search\s*(twitter|x|instagram|facebook|reddit)`,
		`search\s*results?`,
		`try\s*searching`,
		`recent\s*searches?`,
	}},
	row{domain.TextSettings, TierStrong, []string{
		`settings?\s*(and|&)?\s*privacy`,
		`account\s*settings?`,
		`privacy\s*settings?`,
		`notification\s*settings?`,
		`security`,
		`password`,
		`two.?factor`,
		`log\s*out`,
	}},
)

// DefaultAppPatterns boosts dm/feed when the app hint names a known app.
var DefaultAppPatterns = buildAppPatterns(
	appRow{"discord",
		[]string{`#\s*friends`, `@me`, `direct\s*messages`},
		[]string{`#[a-z-]+`, `text\s*channels?`, `voice\s*channels?`, `server\s*settings`}},
	appRow{"twitter",
		[]string{`messages?`, `new\s*message`},
		[]string{`for\s*you`, `following`, `what.?s\s*happening`, `trending`}},
	appRow{"instagram",
		[]string{`messages?`, `send\s*message`, `primary`, `general`},
		[]string{`liked\s*by`, `suggested\s*for\s*you`, `reels?`, `explore`}},
	appRow{"reddit",
		[]string{`chat`, `inbox`, `messages?`},
		[]string{`r/[\p{L}\p{N}_]+`, `popular`, `upvote`, `downvote`, `karma`}},
	appRow{"facebook",
		[]string{`messenger`, `new\s*message`, `chats?`},
		[]string{`news\s*feed`, `stories`, `reels?`, `marketplace`}},
	appRow{"linkedin",
		[]string{`messaging`, `inmail`},
		[]string{`feed`, `connections?`, `jobs?`}},
)

// TextResult is the OCR classifier output.
type TextResult struct {
	Category        domain.TextCategory
	Confidence      float64
	MatchedPatterns []string
}

// TextClassifier scores OCR text against weighted pattern tiers.
type TextClassifier struct {
	patterns    []TextPattern
	appPatterns []AppPattern
}

// NewTextClassifier creates a classifier with the built-in tables.
func NewTextClassifier() *TextClassifier {
	return &TextClassifier{
		patterns:    DefaultTextPatterns,
		appPatterns: DefaultAppPatterns,
	}
}

// Classify scores text and returns the winning category. Ties go to the
// category declared first. A winning score below MinScore is unknown with
// zero confidence and no evidence.
func (c *TextClassifier) Classify(text, appHint string) TextResult {
	lower := strings.ToLower(text)
	hint := strings.ToLower(appHint)

	scores := make(map[domain.TextCategory]float64, len(domain.TextCategories))
	evidence := make(map[domain.TextCategory][]string, len(domain.TextCategories))

	for _, p := range c.patterns {
		if !p.re.MatchString(lower) {
			continue
		}
		weight := MediumWeight
		if p.Tier == TierStrong {
			weight = StrongWeight
		}
		scores[p.Category] += weight
		evidence[p.Category] = append(evidence[p.Category], p.Tier+":"+p.Expr)
	}

	if hint != "" {
		for _, p := range c.appPatterns {
			if !strings.Contains(hint, p.App) || !p.re.MatchString(lower) {
				continue
			}
			scores[p.Category] += AppWeight
			evidence[p.Category] = append(evidence[p.Category], "app:"+p.App+":"+p.Expr)
		}
	}

	best := domain.TextUnknown
	bestScore := 0.0
	total := 0.0
	for _, cat := range domain.TextCategories {
		s := scores[cat]
		total += s
		if s > bestScore {
			best, bestScore = cat, s
		}
	}

	if total == 0 || bestScore < MinScore {
		return TextResult{Category: domain.TextUnknown}
	}

	confidence := bestScore / total
	if confidence > 1 {
		confidence = 1
	}
	return TextResult{
		Category:        best,
		Confidence:      confidence,
		MatchedPatterns: evidence[best],
	}
}

// Decide classifies text and builds the block verdict.
func (c *TextClassifier) Decide(text, appHint string) domain.BlockDecision {
	res := c.Classify(text, appHint)
	block := ShouldBlockText(res.Category)
	reason := string(res.Category) + " screen allowed"
	if block {
		reason = string(res.Category) + " screen blocked"
	}
	return domain.BlockDecision{
		ShouldBlock: block,
		Reason:      reason,
		AppName:     appHint,
		Category:    string(res.Category),
		Confidence:  res.Confidence,
	}
}

// ShouldBlockText is the OCR-path decision: dm, notifications and settings
// pass, every other category blocks, unknown included.
func ShouldBlockText(category domain.TextCategory) bool {
	switch category {
	case domain.TextDM, domain.TextNotifications, domain.TextSettings:
		return false
	}
	return true
}

// KnownHintApps are the apps recognized in a window title, in priority order.
var KnownHintApps = []string{"Discord", "Twitter", "Instagram", "Facebook", "Reddit", "Slack", "LinkedIn"}

// AppHintFromTitle derives the OCR app hint from a window title: the first
// known app named in it, else the last " - " segment, else the whole title.
func AppHintFromTitle(title string) string {
	lower := strings.ToLower(title)
	for _, app := range KnownHintApps {
		if strings.Contains(lower, strings.ToLower(app)) {
			return strings.ToLower(app)
		}
	}
	if i := strings.LastIndex(title, " - "); i >= 0 {
		return title[i+len(" - "):]
	}
	return title
}

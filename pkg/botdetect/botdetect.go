// Package botdetect classifies user-agent strings for the redirect path.
//
// Only two tiers matter here: social preview crawlers (which must be routed
// to Open Graph preview content) and everything else automated (which must
// never be served a cacheable redirect). The classification is pure string
// containment over ordered pattern lists, so extending either tier is a data
// change, not a control-flow change.
package botdetect

import "strings"

// Kind is the classification of a user agent.
type Kind int

const (
	// Human is anything that matches no bot pattern.
	Human Kind = iota
	// SocialPreview is a crawler fetching link previews for a social
	// platform. Checked first: these patterns are more specific and several
	// of them would also match the generic list.
	SocialPreview
	// GenericBot covers crawlers, scrapers, headless browsers, and HTTP
	// libraries.
	GenericBot
)

// socialPatterns identifies preview crawlers for the major platforms.
// Order within the list is not significant; the list as a whole is checked
// before genericPatterns.
var socialPatterns = []string{
	"facebookexternalhit",
	"facebookcatalog",
	"facebot",
	"twitterbot",
	"linkedinbot",
	"slackbot",
	"slack-imgproxy",
	"discordbot",
	"telegrambot",
	"whatsapp",
	"pinterestbot",
	"pinterest/",
	"redditbot",
	"skypeuripreview",
	"vkshare",
	"snapchat",
	"viber",
	"line-poker",
	"iframely",
	"embedly",
}

// genericPatterns identifies automation broadly: generic crawler markers,
// headless browsers, and common HTTP client libraries.
var genericPatterns = []string{
	"bot",
	"crawler",
	"spider",
	"scraper",
	"headless",
	"phantomjs",
	"selenium",
	"puppeteer",
	"playwright",
	"lighthouse",
	"curl/",
	"wget/",
	"python-requests",
	"python-urllib",
	"aiohttp",
	"go-http-client",
	"okhttp",
	"java/",
	"libwww-perl",
	"httpclient",
	"axios/",
	"node-fetch",
	"pingdom",
	"uptimerobot",
	"monitoring",
}

// Classify returns the tier for the given user-agent string. An empty user
// agent classifies as GenericBot: real browsers always send one.
func Classify(userAgent string) Kind {
	if userAgent == "" {
		return GenericBot
	}
	ua := strings.ToLower(userAgent)
	for _, p := range socialPatterns {
		if strings.Contains(ua, p) {
			return SocialPreview
		}
	}
	for _, p := range genericPatterns {
		if strings.Contains(ua, p) {
			return GenericBot
		}
	}
	return Human
}

// IsBot reports whether the user agent is any kind of automation.
func IsBot(userAgent string) bool {
	return Classify(userAgent) != Human
}

package insights

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// GreetingBand starts at hour From (inclusive).
type GreetingBand struct {
	From int
	Text string
}

// GreetingPolicy maps the hour of day to a greeting. Bands are ascending by
// From; hours before the first band use the last band's text.
type GreetingPolicy []GreetingBand

var (
	APIGreeting = GreetingPolicy{
		{From: 5, Text: "Good Morning"},
		{From: 12, Text: "Good Afternoon"},
		{From: 17, Text: "Good Evening"},
		{From: 21, Text: "Good Night"},
	}
	LocalGreeting = GreetingPolicy{
		{From: 0, Text: "Good Morning"},
		{From: 12, Text: "Good Afternoon"},
		{From: 18, Text: "Good Evening"},
	}
)

// GreetingFor returns the greeting matching a score policy name.
func GreetingFor(policy string) GreetingPolicy {
	if strings.EqualFold(policy, LocalPolicy.Name) {
		return LocalGreeting
	}
	return APIGreeting
}

// Greeting returns the greeting for t's local hour.
func Greeting(p GreetingPolicy, t time.Time) string {
	if len(p) == 0 {
		return "Hello"
	}
	h := t.Hour()
	text := p[len(p)-1].Text
	for _, b := range p {
		if h >= b.From {
			text = b.Text
		}
	}
	return text
}

// Initials returns the upper-cased first letter of each word in name.
func Initials(name string) string {
	var b strings.Builder
	for _, part := range strings.Fields(name) {
		r, _ := utf8.DecodeRuneInString(part)
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

package core

import "strings"

// CategoryOther is returned when no rule matches
const CategoryOther = "Other"

type matchField int

const (
	matchSender matchField = iota
	matchSubject
	matchEither
)

type categoryRule struct {
	label    string
	field    matchField
	keywords []string
}

// Order matters: the first matching rule wins.
var categoryRules = []categoryRule{
	{"Newsletters", matchSender, []string{"newsletter", "digest", "news", "update", "substack", "medium"}},
	{"Promotions", matchEither, []string{"promo", "sale", "deal", "offer", "discount", "coupon", "$", "fare", "airline", "hotel", "booking"}},
	{"Healthcare", matchSender, []string{"hospital", "clinic", "medical", "health", "doctor", "pharmacy", "appointment"}},
	{"Financial", matchSender, []string{"bank", "credit", "payment", "invoice", "billing", "paypal", "stripe", "financial"}},
	{"Social Media", matchSender, []string{"linkedin", "twitter", "facebook", "instagram", "social"}},
	{"Work/Jobs", matchSender, []string{"job", "career", "recruiter", "hiring", "interview", "application"}},
	{"Security Alerts", matchSubject, []string{"security", "alert", "login", "password", "verify", "suspicious"}},
	{"Shopping", matchSender, []string{"amazon", "ebay", "shop", "store", "retail", "delivery", "shipping"}},
	{"Technology", matchSender, []string{"github", "stackoverflow", "tech", "software", "developer", "code"}},
	{"Education", matchSender, []string{"university", "school", "course", "education", "learning", "coursera", "udemy"}},
	{"Travel", matchSender, []string{"travel", "trip", "flight", "airline", "hotel", "booking", "expedia"}},
	{"Notifications", matchSender, []string{"noreply", "no-reply", "notification", "alert", "reminder"}},
}

// Categorize maps a sender and subject to a category label
func Categorize(sender, subject string) string {
	sender = strings.ToLower(sender)
	subject = strings.ToLower(subject)

	for _, rule := range categoryRules {
		if rule.matches(sender, subject) {
			return rule.label
		}
	}
	return CategoryOther
}

// Categories returns every label in rule order, followed by CategoryOther
func Categories() []string {
	labels := make([]string, 0, len(categoryRules)+1)
	for _, rule := range categoryRules {
		labels = append(labels, rule.label)
	}
	return append(labels, CategoryOther)
}

func (r categoryRule) matches(sender, subject string) bool {
	switch r.field {
	case matchSender:
		return containsAny(sender, r.keywords)
	case matchSubject:
		return containsAny(subject, r.keywords)
	default:
		return containsAny(sender, r.keywords) || containsAny(subject, r.keywords)
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

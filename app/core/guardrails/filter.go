// Package guardrails screens user input before any model call is made.
package guardrails

import "strings"

// RejectionMessage is returned verbatim whenever input is blocked.
const RejectionMessage = "Your input contains forbidden keywords and cannot be processed. Please rephrase your request."

// Filter blocks messages containing any of a fixed keyword set. Matching is
// case-insensitive and substring-based, so "KILLing time" is blocked too.
type Filter struct {
	keywords []string
}

func NewFilter(keywords []string) *Filter {
	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			lowered = append(lowered, kw)
		}
	}
	return &Filter{keywords: lowered}
}

// Check reports whether the message is allowed. For blocked input ok is
// false and reason carries RejectionMessage.
func (f *Filter) Check(message string) (ok bool, reason string) {
	lowered := strings.ToLower(message)
	for _, kw := range f.keywords {
		if strings.Contains(lowered, kw) {
			return false, RejectionMessage
		}
	}
	return true, ""
}

// Package bootstrap materializes the two documents a worker reads on
// startup: an overlay instruction file (AGENTS.md, written once) and an
// inbox file (inbox.md, rewritten on every dispatch) inside the worker's
// state directory.
package bootstrap

import (
	"strings"
	"unicode/utf16"
)

const defaultSanitizeBound = 4000

// controlTags are the vocabulary a task description must not be able to
// forge: if a task's free-text subject/description contains literal
// opening/closing tags for these names, they would otherwise be
// indistinguishable from the overlay's own control markup once
// interpolated into inbox.md.
var controlTags = []string{
	"TASK_SUBJECT",
	"TASK_DESCRIPTION",
	"INBOX_MESSAGE",
	"INSTRUCTIONS",
	"SYSTEM",
}

// Sanitize truncates s to bound characters (default 4000 when bound <= 0),
// strips a lone trailing high surrogate left dangling by the truncation,
// and replaces any opening/closing tag for the control vocabulary with a
// bracketed, inert form (e.g. "<SYSTEM>" -> "[SYSTEM]").
func Sanitize(s string, bound int) string {
	if bound <= 0 {
		bound = defaultSanitizeBound
	}
	s = truncateRunes(s, bound)
	s = stripTrailingLoneSurrogate(s)
	s = neutralizeControlTags(s)
	return s
}

func truncateRunes(s string, bound int) string {
	runes := []rune(s)
	if len(runes) <= bound {
		return s
	}
	return string(runes[:bound])
}

// stripTrailingLoneSurrogate removes a trailing UTF-16 high surrogate that
// truncation may have separated from its low surrogate, which would
// otherwise decode to the Unicode replacement character when written out.
func stripTrailingLoneSurrogate(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	last := runes[len(runes)-1]
	if utf16.IsSurrogate(last) {
		return string(runes[:len(runes)-1])
	}
	return s
}

func neutralizeControlTags(s string) string {
	for _, tag := range controlTags {
		s = strings.ReplaceAll(s, "<"+tag+">", "["+tag+"]")
		s = strings.ReplaceAll(s, "</"+tag+">", "[/"+tag+"]")
	}
	return s
}

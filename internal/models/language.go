package models

import "strings"

// Language selects the canned partition, trigger keywords and localized strings of a session.
type Language string

const (
	LanguageES Language = "es"
	LanguageEN Language = "en"
)

// ParseLanguage normalizes a language tag; ok is false for unsupported tags.
func ParseLanguage(raw string) (Language, bool) {
	switch Language(strings.ToLower(strings.TrimSpace(raw))) {
	case LanguageES:
		return LanguageES, true
	case LanguageEN:
		return LanguageEN, true
	default:
		return "", false
	}
}

// LanguageOr returns the parsed tag or fallback when raw is empty or unsupported.
func LanguageOr(raw string, fallback Language) Language {
	if lang, ok := ParseLanguage(raw); ok {
		return lang
	}
	return fallback
}

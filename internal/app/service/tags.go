package service

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mirefox/wallcast/internal/app/model"
)

var blacklistStrip = regexp.MustCompile(`[^a-z0-9_(): ]`)

// SanitizeBlacklist normalizes a free-text blacklist into a space-delimited
// token set: lower-cased, with everything outside [a-z0-9_(): ] and plain
// spaces removed. Total and idempotent.
func SanitizeBlacklist(raw string) string {
	return blacklistStrip.ReplaceAllString(strings.ToLower(raw), "")
}

// CompileQuery builds the final tag string sent upstream for a raw query and
// an optional link context. Without a link the raw string passes through
// untouched and motion content is allowed. With a link, blacklisted tags are
// removed, duplicates collapse to their first occurrence, and the link's
// filter suffix is appended. The second return reports whether motion
// content is allowed.
func CompileQuery(rawTags string, link *model.Link) (string, bool) {
	if link == nil {
		return rawTags, true
	}

	allowMotion := link.HasCapability(model.CapabilityShowVideos)

	sanitized := SanitizeBlacklist(link.Blacklist)
	blacklist := strings.Fields(sanitized)

	blocked := make(map[string]struct{}, len(blacklist))
	for _, tag := range blacklist {
		blocked[tag] = struct{}{}
	}

	seen := make(map[string]struct{})
	var deduped []string
	for _, tag := range strings.Fields(rawTags) {
		if _, drop := blocked[tag]; drop {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		deduped = append(deduped, tag)
	}

	query := strings.Join(deduped, " ")
	suffix := tagSuffix(link, blacklist, query)
	if suffix != "" {
		if query != "" {
			query += " "
		}
		query += suffix
	}

	return query, allowMotion
}

// SearchBase returns the suffix a link would append to any query, used to
// preview a link's effective filter rules.
func SearchBase(link *model.Link) string {
	sanitized := SanitizeBlacklist(link.Blacklist)
	return tagSuffix(link, strings.Fields(sanitized), "")
}

// tagSuffix assembles the filter clause appended to every compiled query:
// flash exclusion, theme, negated blacklist, score floor, motion exclusion,
// and optional kink biasing.
func tagSuffix(link *model.Link, blacklist []string, query string) string {
	kinks := link.KinkNames()

	// Kink injection is skipped when any kink name already appears in the
	// query. The containment test is a substring match over the whole joined
	// tag string, not an exact token match; a kink name inside an unrelated
	// word suppresses injection too. Kept bug-for-bug compatible.
	kinkInQuery := false
	if link.HasCapability(model.CapabilityKinkAligned) {
		for _, kink := range kinks {
			if strings.Contains(query, kink) {
				kinkInQuery = true
				break
			}
		}
	}

	parts := []string{"-flash"}
	if link.Theme != "" {
		parts = append(parts, link.Theme)
	}
	for _, tag := range blacklist {
		parts = append(parts, "-"+tag)
	}
	if link.MinScore != 0 {
		parts = append(parts, fmt.Sprintf("score:>%d", link.MinScore))
	}
	if !link.HasCapability(model.CapabilityShowVideos) {
		parts = append(parts, "-animated")
	}
	if link.HasCapability(model.CapabilityKinkAligned) && !kinkInQuery {
		for _, kink := range kinks {
			parts = append(parts, "~"+kink)
		}
	}

	return strings.Join(parts, " ")
}

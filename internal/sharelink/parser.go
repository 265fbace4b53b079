// Package sharelink extracts share codes and receive passwords from the
// link text users paste in.
package sharelink

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNotShareLink reports text that matches no recognized share-link form.
// It classifies a user-input problem, not a system fault.
var ErrNotShareLink = errors.New("text is not a recognized share link")

// Parser recognizes share links for a closed set of hosts.
type Parser struct {
	pattern *regexp.Regexp
}

// NewParser builds a parser for the supplied domain set.
func NewParser(domains []string) (*Parser, error) {
	cleaned := make([]string, 0, len(domains))
	for _, domain := range domains {
		domain = strings.ToLower(strings.TrimSpace(domain))
		if domain == "" {
			continue
		}
		cleaned = append(cleaned, regexp.QuoteMeta(domain))
	}
	if len(cleaned) == 0 {
		return nil, errors.New("at least one share domain is required")
	}

	expr := fmt.Sprintf(`(?:https?://)?(?:www\.)?(?:%s)/s/([a-zA-Z0-9]+)(?:\?password=([a-zA-Z0-9]+))?`,
		strings.Join(cleaned, "|"))
	pattern, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile share pattern: %w", err)
	}
	return &Parser{pattern: pattern}, nil
}

// Parse extracts the share code and optional receive password from text.
// Fragments are trimmed before matching. When the text contains no path
// separator a bare "code:password" literal is accepted. Unrecognized text
// returns ErrNotShareLink.
func (p *Parser) Parse(text string) (code, password string, err error) {
	text = strings.TrimSpace(text)
	if idx := strings.IndexByte(text, '#'); idx >= 0 {
		text = text[:idx]
	}

	if match := p.pattern.FindStringSubmatch(text); match != nil {
		return match[1], match[2], nil
	}

	// Bare code:password form, only for text without a path separator.
	if strings.Contains(text, ":") && !strings.Contains(text, "/") {
		parts := strings.Split(text, ":")
		if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
			return parts[0], parts[1], nil
		}
	}

	return "", "", fmt.Errorf("%w: %q", ErrNotShareLink, text)
}

// Package locator maps normalized source file paths and heading trails
// to canonical documentation URLs keyed by release version.
package locator

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/archipel-labs/docvec/internal/core/domain"
)

// DefaultBaseURL is the documentation site root. The version string is
// interpolated between the base and the content-relative path.
const DefaultBaseURL = "https://www.odoo.com/documentation"

// versionDir is the path segment under which release directories live.
const versionDir = "versions"

// contentRoot is a known prefix below the version directory that does
// not appear in published URLs.
const contentRoot = "content"

var (
	versionRe     = regexp.MustCompile(`^(\d+)\.(\d+)$`)
	levelMarkerRe = regexp.MustCompile(`^\[#+\]\s*`)
	selfLinkRe    = regexp.MustCompile(`\[¶\]\(\)`)
	anchorCharRe  = regexp.MustCompile(`[^a-zA-Z0-9 -]`)
	spaceRunRe    = regexp.MustCompile(`\s+`)
)

// Locator is a resolved source location.
type Locator struct {
	// URL is the canonical page URL, with a section anchor when the
	// heading trail yields one.
	URL string

	// Version is the integer-encoded release ("16.0" encodes to 160).
	Version int

	// VersionString is the release in "major.minor" form.
	VersionString string
}

// Resolver converts file paths to locators.
type Resolver struct {
	baseURL string
}

// NewResolver creates a resolver. An empty baseURL selects the default
// documentation site root.
func NewResolver(baseURL string) *Resolver {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Resolver{baseURL: strings.TrimRight(baseURL, "/")}
}

// Resolve maps a normalized file path plus the passage's heading path
// to a canonical URL and version. The path must contain a
// "versions/<major.minor>/" segment; anything else is a malformed path.
func (r *Resolver) Resolve(filePath, headingPath string) (Locator, error) {
	versionStr, rel, err := splitVersionPath(filePath)
	if err != nil {
		return Locator{}, err
	}

	version, err := ParseVersion(versionStr)
	if err != nil {
		return Locator{}, err
	}

	rel = strings.TrimPrefix(rel, contentRoot+"/")
	rel = strings.TrimSuffix(rel, ".md") + ".html"

	url := fmt.Sprintf("%s/%s/%s", r.baseURL, versionStr, rel)
	if anchor := AnchorSlug(headingPath); anchor != "" {
		url += "#" + anchor
	}

	return Locator{URL: url, Version: version, VersionString: versionStr}, nil
}

// ParseVersion converts a "major.minor" release string to its integer
// encoding: major*10 + minor, so "16.0" becomes 160 and "17.5" 175.
// Minors above 9 are rejected because the encoding reserves a single
// digit for them; "16.10" would collide with "17.0".
func ParseVersion(versionStr string) (int, error) {
	m := versionRe.FindStringSubmatch(versionStr)
	if m == nil {
		return 0, fmt.Errorf("version %q: %w", versionStr, domain.ErrMalformedPath)
	}
	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	if minor > 9 {
		return 0, fmt.Errorf("version %q: minor above 9 has no integer encoding: %w", versionStr, domain.ErrMalformedPath)
	}
	return major*10 + minor, nil
}

// FormatVersion renders the integer encoding back to "major.minor".
func FormatVersion(version int) string {
	return fmt.Sprintf("%d.%d", version/10, version%10)
}

// AnchorSlug derives a URL fragment from the last segment of a heading
// path. Returns "" when the heading path is empty or cleans to nothing,
// in which case the URL carries no fragment.
func AnchorSlug(headingPath string) string {
	if headingPath == "" {
		return ""
	}

	segments := strings.Split(headingPath, " > ")
	last := segments[len(segments)-1]

	last = levelMarkerRe.ReplaceAllString(last, "")
	last = selfLinkRe.ReplaceAllString(last, "")
	last = anchorCharRe.ReplaceAllString(last, "")
	last = strings.ToLower(strings.TrimSpace(last))
	return spaceRunRe.ReplaceAllString(last, "-")
}

// splitVersionPath extracts the version segment and the path below it.
func splitVersionPath(filePath string) (versionStr, rel string, err error) {
	clean := path.Clean(strings.ReplaceAll(filePath, "\\", "/"))
	parts := strings.Split(clean, "/")

	for i := 0; i < len(parts)-1; i++ {
		if parts[i] != versionDir || !versionRe.MatchString(parts[i+1]) {
			continue
		}
		rel = strings.Join(parts[i+2:], "/")
		if rel == "" {
			return "", "", fmt.Errorf("path %q has no content segment: %w", filePath, domain.ErrMalformedPath)
		}
		return parts[i+1], rel, nil
	}

	return "", "", fmt.Errorf("path %q has no version segment: %w", filePath, domain.ErrMalformedPath)
}

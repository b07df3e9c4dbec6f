package backend

import (
	"net/url"
	"regexp"
	"strings"
)

var absoluteAsset = regexp.MustCompile(`(?i)^(https?:|data:|blob:)`)

// ResolveAsset resolves ref against origin. Blank refs resolve to "";
// absolute and data/blob refs are kept; protocol-relative refs get https;
// relative refs are joined to origin when one is known.
func ResolveAsset(origin, ref string) string {
	src := strings.TrimSpace(ref)
	if src == "" {
		return ""
	}
	if absoluteAsset.MatchString(src) {
		return src
	}
	if strings.HasPrefix(src, "//") {
		return "https:" + src
	}
	if origin == "" {
		return src
	}

	base, err := url.Parse(origin + "/")
	if err != nil {
		return src
	}
	rel, err := url.Parse(src)
	if err != nil {
		return src
	}
	return base.ResolveReference(rel).String()
}

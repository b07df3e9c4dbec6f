package session

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync/atomic"
)

// Jar is a cookie jar for one viewer's backend requests. It remembers
// whether the backend changed any cookie so the session is only written
// back when needed.
type Jar struct {
	jar     *cookiejar.Jar
	scopes  []*url.URL
	changed atomic.Bool
}

type storedCookie struct {
	Scope string `json:"scope"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewJar creates a jar. scopes are the backend URLs whose cookies are
// exported when the session is persisted.
func NewJar(scopes ...*url.URL) *Jar {
	// cookiejar.New only fails on a bad PublicSuffixList.
	jar, _ := cookiejar.New(nil)
	return &Jar{jar: jar, scopes: scopes}
}

// SetCookies implements http.CookieJar.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.jar.SetCookies(u, cookies)
	if len(cookies) > 0 {
		j.changed.Store(true)
	}
}

// Cookies implements http.CookieJar.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	return j.jar.Cookies(u)
}

// Changed reports and resets whether cookies were set since the last call.
func (j *Jar) Changed() bool {
	return j.changed.Swap(false)
}

// Export returns the cookies visible in each scope, or nil when there are
// none. A cookie already visible in an earlier scope is not repeated.
func (j *Jar) Export() ([]byte, error) {
	var stored []storedCookie
	seen := make(map[string]bool)
	for _, scope := range j.scopes {
		for _, c := range j.jar.Cookies(scope) {
			key := c.Name + "\x00" + c.Value
			if seen[key] {
				continue
			}
			seen[key] = true
			stored = append(stored, storedCookie{Scope: scope.String(), Name: c.Name, Value: c.Value})
		}
	}
	if len(stored) == 0 {
		return nil, nil
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("encoding cookies: %w", err)
	}
	return data, nil
}

// Import restores cookies produced by Export.
func (j *Jar) Import(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	var stored []storedCookie
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("decoding cookies: %w", err)
	}
	for _, sc := range stored {
		u, err := url.Parse(sc.Scope)
		if err != nil {
			continue
		}
		path := u.Path
		if path == "" {
			path = "/"
		}
		j.jar.SetCookies(u, []*http.Cookie{{Name: sc.Name, Value: sc.Value, Path: path}})
	}
	return nil
}

// Package device turns a signer's user agent into the client details kept
// as signature evidence.
package device

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/mssola/useragent"
)

// Info is what signature evidence records about the signer's client.
type Info struct {
	Browser        string
	BrowserVersion string
	OS             string
	Platform       string
	Mobile         bool
	Bot            bool
}

// Label renders a short display name such as "Chrome on Mac OS X".
func (i Info) Label() string {
	if i == (Info{}) {
		return "Unknown Device"
	}
	browser := i.Browser
	if browser == "" {
		browser = "Unknown Browser"
	}
	os := i.OS
	if os == "" {
		os = i.Platform
	}
	if os == "" {
		os = "Unknown OS"
	}
	return browser + " on " + os
}

// Describe parses a user agent. An empty string yields the zero Info.
func Describe(userAgent string) Info {
	if strings.TrimSpace(userAgent) == "" {
		return Info{}
	}
	ua := useragent.New(userAgent)
	name, version := ua.Browser()
	return Info{
		Browser:        name,
		BrowserVersion: version,
		OS:             ua.OS(),
		Platform:       ua.Platform(),
		Mobile:         ua.Mobile(),
		Bot:            ua.Bot(),
	}
}

// Fingerprint hashes browser, major version, OS and platform. Patch-level
// browser updates keep the same fingerprint.
func Fingerprint(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return ""
	}
	info := Describe(userAgent)
	major, _, _ := strings.Cut(info.BrowserVersion, ".")
	sum := sha256.Sum256([]byte(strings.Join([]string{info.Browser, major, info.OS, info.Platform}, "|")))
	return hex.EncodeToString(sum[:])
}

package device

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

const chromeMac = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

type DeviceSuite struct {
	suite.Suite
}

func TestDeviceSuite(t *testing.T) {
	suite.Run(t, new(DeviceSuite))
}

func (s *DeviceSuite) TestLabel() {
	s.Run("empty user agent is an unknown device", func() {
		s.Equal("Unknown Device", Describe("").Label())
	})

	s.Run("desktop chrome names browser and OS", func() {
		label := Describe(chromeMac).Label()
		s.Contains(label, "Chrome on ")
		s.Contains(label, "Mac OS X")
	})

	s.Run("iphone falls back to platform details", func() {
		label := Describe("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1").Label()
		s.Contains(label, "Safari on ")
		s.Contains(label, "iPhone")
	})

	s.Run("unparseable agent still formats", func() {
		s.Contains(Describe("Unknown/1.0").Label(), " on ")
	})
}

func (s *DeviceSuite) TestDescribe() {
	info := Describe("Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0")
	s.Equal("Firefox", info.Browser)
	s.Equal("121.0", info.BrowserVersion)
	s.Contains(info.OS, "Linux")
	s.False(info.Mobile)

	s.Equal(Info{}, Describe(""))
}

func (s *DeviceSuite) TestFingerprintStability() {
	s.Run("empty user agent has no fingerprint", func() {
		s.Empty(Fingerprint(""))
	})

	s.Run("deterministic", func() {
		s.Equal(Fingerprint(chromeMac), Fingerprint(chromeMac))
		s.Len(Fingerprint(chromeMac), 64)
	})

	s.Run("minor version changes do not affect fingerprint", func() {
		ua1 := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.6099.109 Safari/537.36"
		ua2 := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.6099.224 Safari/537.36"
		s.Equal(Fingerprint(ua1), Fingerprint(ua2))
	})

	s.Run("major version changes affect fingerprint", func() {
		ua1 := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
		ua2 := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"
		s.NotEqual(Fingerprint(ua1), Fingerprint(ua2))
	})
}

package session

import "strings"

// ClassifyDevice buckets a User-Agent into a device class. Matching is
// case-insensitive substring search in a fixed order; an empty User-Agent is
// Unknown, anything unmatched is Desktop.
func ClassifyDevice(userAgent string) DeviceType {
	if userAgent == "" {
		return DeviceUnknown
	}

	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "mobile"),
		strings.Contains(ua, "android"),
		strings.Contains(ua, "iphone"):
		return DeviceMobile
	case strings.Contains(ua, "tablet"),
		strings.Contains(ua, "ipad"):
		return DeviceTablet
	default:
		return DeviceDesktop
	}
}

// ClassifyBrowser names the browser behind a User-Agent. The check order is
// load-bearing: Chrome UAs also contain "Safari", so Safari only matches
// when "chrome" is absent.
func ClassifyBrowser(userAgent string) Browser {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "chrome"):
		return BrowserChrome
	case strings.Contains(ua, "firefox"):
		return BrowserFirefox
	case strings.Contains(ua, "safari"):
		return BrowserSafari
	case strings.Contains(ua, "edge"):
		return BrowserEdge
	case strings.Contains(ua, "opera"):
		return BrowserOpera
	default:
		return BrowserUnknown
	}
}

package services

import (
	"strings"

	"github.com/mssola/user_agent"
)

// DeviceLabel turns a user agent string into a short human readable label
// such as "Chrome 120.0 on Windows 10 (mobile)". It is descriptive only.
func DeviceLabel(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return ""
	}

	ua := user_agent.New(userAgent)
	name, version := ua.Browser()

	var label string
	if name != "" {
		label = name
		if version != "" {
			label += " " + version
		}
	}

	if os := ua.OS(); os != "" {
		if label != "" {
			label += " on "
		}
		label += os
	}

	switch {
	case ua.Bot():
		label += " (bot)"
	case ua.Mobile():
		label += " (mobile)"
	}

	return strings.TrimSpace(label)
}

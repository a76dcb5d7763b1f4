// Package bypass classifies blocked fetch responses by the bot-protection
// vendor that produced them, so failure notes can say which wall was hit.
// Classification is informational only and never changes retry behavior.
package bypass

import (
	"bytes"
	"net/http"
	"strings"
)

// Detector examines a response for a bot-wall signature and names the vendor.
type Detector func(status int, header http.Header, body []byte) (detected bool, vendor string)

// DefaultDetectors returns the standard list of bot protection detectors.
func DefaultDetectors() []Detector {
	return []Detector{
		detectCloudflare,
		detectAkamai,
		detectDataDome,
		detectPerimeterX,
	}
}

// Classify runs the default detectors and returns the first vendor hit, or
// the empty string when nothing matches.
func Classify(status int, header http.Header, body []byte) string {
	for _, d := range DefaultDetectors() {
		if detected, vendor := d(status, header, body); detected {
			return vendor
		}
	}
	return ""
}

// detectCloudflare looks for common Cloudflare challenge/block signatures.
func detectCloudflare(status int, header http.Header, body []byte) (bool, string) {
	// CF challenges ride on 403 or 503.
	if status == http.StatusForbidden || status == http.StatusServiceUnavailable {
		server := strings.ToLower(header.Get("Server"))
		if strings.Contains(server, "cloudflare") {
			return true, "Cloudflare"
		}

		if bytes.Contains(body, []byte("cf-browser-verification")) ||
			bytes.Contains(body, []byte("cloudflare-nginx")) ||
			bytes.Contains(body, []byte("cf-turnstile")) ||
			bytes.Contains(body, []byte("Attention Required! | Cloudflare")) {
			return true, "Cloudflare"
		}
	}
	return false, ""
}

// detectAkamai looks for Akamai Bot Manager signatures.
func detectAkamai(status int, header http.Header, body []byte) (bool, string) {
	if status == http.StatusForbidden {
		server := strings.ToLower(header.Get("Server"))
		if strings.Contains(server, "akamai") {
			return true, "Akamai"
		}

		// Akamai block pages carry a generic "Reference #".
		if bytes.Contains(body, []byte("Reference #")) && bytes.Contains(body, []byte("Access Denied")) {
			return true, "Akamai"
		}
	}
	return false, ""
}

// detectDataDome looks for DataDome challenge/block signatures.
func detectDataDome(status int, header http.Header, body []byte) (bool, string) {
	if status == http.StatusForbidden {
		server := strings.ToLower(header.Get("Server"))
		if strings.Contains(server, "datadome") {
			return true, "DataDome"
		}

		if header.Get("X-DataDome") != "" || header.Get("X-DataDome-Response") != "" {
			return true, "DataDome"
		}

		if bytes.Contains(body, []byte("geo.captcha-delivery.com")) || bytes.Contains(body, []byte("datadome")) {
			return true, "DataDome"
		}
	}
	return false, ""
}

// detectPerimeterX looks for PerimeterX (HUMAN) signatures.
func detectPerimeterX(status int, header http.Header, body []byte) (bool, string) {
	if status == http.StatusForbidden {
		if header.Get("X-Px-Captcha") != "" {
			return true, "PerimeterX"
		}

		if bytes.Contains(body, []byte("client.perimeterx.net")) ||
			bytes.Contains(body, []byte("px-captcha")) ||
			bytes.Contains(body, []byte("_pxBlock")) {
			return true, "PerimeterX"
		}
	}
	return false, ""
}

// Package protection classifies fetch responses that look like bot walls
// or challenge pages instead of job content.
package protection

import (
	"bytes"
	"net/http"
	"regexp"
	"strings"
)

// SignalType identifies the kind of blocking detected.
type SignalType string

const (
	SignalNone               SignalType = ""
	SignalCloudflare         SignalType = "cloudflare"
	SignalCaptcha            SignalType = "captcha"
	SignalAccessDenied       SignalType = "access_denied"
	SignalRateLimited        SignalType = "rate_limited"
	SignalEmptyContent       SignalType = "empty_content"
	SignalJavaScriptRequired SignalType = "javascript_required"
)

// DetectionResult describes what, if anything, looked like a block.
type DetectionResult struct {
	Detected    bool
	Signal      SignalType
	Confidence  int // 0-100
	Description string

	// Transient signals may clear on a later run. Captchas and hard
	// denials will not.
	Transient bool
}

// IsRateLimit reports whether the block was rate limiting, which source
// metrics count separately from other failures.
func (r DetectionResult) IsRateLimit() bool {
	return r.Signal == SignalRateLimited
}

// bodySignal groups the body patterns that indicate one signal type.
type bodySignal struct {
	signal      SignalType
	confidence  int
	transient   bool
	description string
	patterns    []string
}

// Ordered by specificity: cloudflare markers beat the generic denied text
// that often sits on the same page.
var bodySignals = []bodySignal{
	{
		signal:      SignalCloudflare,
		confidence:  90,
		transient:   true,
		description: "cloudflare challenge page",
		patterns: []string{
			"cf-browser-verification",
			"challenge-platform",
			"_cf_chl",
			"just a moment...",
			"checking your browser",
			"attention required! | cloudflare",
		},
	},
	{
		signal:      SignalCaptcha,
		confidence:  95,
		transient:   false,
		description: "captcha challenge",
		patterns: []string{
			"g-recaptcha",
			"h-captcha",
			"data-sitekey",
			"cf-turnstile",
		},
	},
	{
		signal:      SignalAccessDenied,
		confidence:  85,
		transient:   false,
		description: "access denied page",
		patterns: []string{
			"access denied",
			"access to this page has been denied",
			"request blocked",
			"bot detected",
			"verify you are human",
			"are you a robot",
		},
	},
	{
		signal:      SignalJavaScriptRequired,
		confidence:  80,
		transient:   false,
		description: "page requires javascript",
		patterns: []string{
			"enable javascript",
			"javascript is required",
			"requires javascript",
		},
	},
}

// Empty SPA roots mean the content only exists after client-side rendering.
var spaRootPatterns = []*regexp.Regexp{
	regexp.MustCompile(`<div\s+id=["'](?:root|app|__next|__nuxt)["'][^>]*>\s*</div>`),
	regexp.MustCompile(`<app-root[^>]*>\s*</app-root>`),
}

var contentIndicator = regexp.MustCompile(`<(article|main|section)[^>]*>`)

// Detector analyzes fetch responses for blocking signals.
type Detector struct {
	// MinContentLength is the HTML size below which a page with no
	// content elements is treated as a challenge shell.
	MinContentLength int
}

// NewDetector returns a detector with defaults suited to career pages.
func NewDetector() *Detector {
	return &Detector{MinContentLength: 500}
}

// DetectFromResponse classifies a response from status, headers and body,
// in that order. JSON bodies skip the HTML heuristics: an empty jobs array
// from an ATS API is a valid result, not a block.
func (d *Detector) DetectFromResponse(statusCode int, headers http.Header, body []byte) DetectionResult {
	if result := d.checkStatus(statusCode); result.Detected {
		return result
	}
	if result := d.checkHeaders(headers); result.Detected {
		return result
	}
	return d.checkBody(body)
}

func (d *Detector) checkStatus(statusCode int) DetectionResult {
	switch statusCode {
	case http.StatusForbidden:
		return DetectionResult{
			Detected:    true,
			Signal:      SignalAccessDenied,
			Confidence:  90,
			Description: "HTTP 403, source is blocking automated requests",
		}
	case http.StatusServiceUnavailable:
		return DetectionResult{
			Detected:    true,
			Signal:      SignalCloudflare,
			Confidence:  70,
			Description: "HTTP 503, likely an interstitial challenge",
			Transient:   true,
		}
	case http.StatusTooManyRequests:
		return DetectionResult{
			Detected:    true,
			Signal:      SignalRateLimited,
			Confidence:  95,
			Description: "HTTP 429, source is rate limiting",
			Transient:   true,
		}
	}
	return DetectionResult{}
}

func (d *Detector) checkHeaders(headers http.Header) DetectionResult {
	if headers == nil {
		return DetectionResult{}
	}
	if headers.Get("cf-mitigated") == "challenge" {
		return DetectionResult{
			Detected:    true,
			Signal:      SignalCloudflare,
			Confidence:  95,
			Description: "cloudflare challenge header",
			Transient:   true,
		}
	}
	return DetectionResult{}
}

func (d *Detector) checkBody(body []byte) DetectionResult {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return DetectionResult{
			Detected:    true,
			Signal:      SignalEmptyContent,
			Confidence:  80,
			Description: "empty response body",
			Transient:   true,
		}
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return DetectionResult{}
	}

	content := string(body)
	lower := strings.ToLower(content)

	for _, bs := range bodySignals {
		for _, pattern := range bs.patterns {
			if strings.Contains(lower, pattern) {
				return DetectionResult{
					Detected:    true,
					Signal:      bs.signal,
					Confidence:  bs.confidence,
					Description: bs.description,
					Transient:   bs.transient,
				}
			}
		}
	}

	for _, pattern := range spaRootPatterns {
		if pattern.MatchString(content) {
			return DetectionResult{
				Detected:    true,
				Signal:      SignalJavaScriptRequired,
				Confidence:  90,
				Description: "empty SPA root, content is rendered client side",
			}
		}
	}

	if len(body) < d.MinContentLength && !contentIndicator.MatchString(content) {
		return DetectionResult{
			Detected:    true,
			Signal:      SignalEmptyContent,
			Confidence:  60,
			Description: "response too small to be a job page",
			Transient:   true,
		}
	}

	return DetectionResult{}
}

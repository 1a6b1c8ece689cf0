package protection

import (
	"net/http"
	"strings"
	"testing"
)

func TestDetector_DetectFromResponse(t *testing.T) {
	d := NewDetector()

	tests := []struct {
		name          string
		statusCode    int
		headers       http.Header
		body          string
		wantDetected  bool
		wantSignal    SignalType
		wantTransient bool
	}{
		{
			name:         "normal job page",
			statusCode:   200,
			body:         "<html><body><article>Senior Go Engineer. Build and operate backend services for our logistics platform. Strong knowledge of distributed systems required, along with several years of production experience.</article></body></html>",
			wantDetected: false,
		},
		{
			name:         "json api response",
			statusCode:   200,
			body:         `{"jobs": []}`,
			wantDetected: false,
		},
		{
			name:          "403 forbidden",
			statusCode:    403,
			body:          "nope",
			wantDetected:  true,
			wantSignal:    SignalAccessDenied,
			wantTransient: false,
		},
		{
			name:          "503 challenge",
			statusCode:    503,
			body:          "Service Unavailable",
			wantDetected:  true,
			wantSignal:    SignalCloudflare,
			wantTransient: true,
		},
		{
			name:          "429 rate limited",
			statusCode:    429,
			body:          "Too Many Requests",
			wantDetected:  true,
			wantSignal:    SignalRateLimited,
			wantTransient: true,
		},
		{
			name:       "cloudflare challenge header",
			statusCode: 200,
			headers: http.Header{
				"Cf-Mitigated": []string{"challenge"},
			},
			body:          "<html><body>redirecting</body></html>",
			wantDetected:  true,
			wantSignal:    SignalCloudflare,
			wantTransient: true,
		},
		{
			name:          "cloudflare challenge body",
			statusCode:    200,
			body:          `<html><head><title>Just a moment...</title></head><body><div id="cf-browser-verification">Checking your browser</div></body></html>`,
			wantDetected:  true,
			wantSignal:    SignalCloudflare,
			wantTransient: true,
		},
		{
			name:         "recaptcha page",
			statusCode:   200,
			body:         `<html><body><div class="g-recaptcha" data-sitekey="abc123"></div></body></html>`,
			wantDetected: true,
			wantSignal:   SignalCaptcha,
		},
		{
			name:         "access denied page",
			statusCode:   200,
			body:         `<html><body><h1>Access Denied</h1><p>You do not have permission to view this page.</p></body></html>`,
			wantDetected: true,
			wantSignal:   SignalAccessDenied,
		},
		{
			name:         "javascript required message",
			statusCode:   200,
			body:         `<html><body><p>Please enable JavaScript to view job listings on this page. Our careers portal needs scripting turned on to show you the available positions at our company right now.</p></body></html>`,
			wantDetected: true,
			wantSignal:   SignalJavaScriptRequired,
		},
		{
			name:         "empty spa root",
			statusCode:   200,
			body:         `<html><body><div id="root"></div><script src="/static/js/main.js"></script><link rel="stylesheet" href="/static/css/main.css"><meta name="description" content="Careers at Example Corp, browse our open positions and join the team today"></body></html>`,
			wantDetected: true,
			wantSignal:   SignalJavaScriptRequired,
		},
		{
			name:          "empty body",
			statusCode:    200,
			body:          "",
			wantDetected:  true,
			wantSignal:    SignalEmptyContent,
			wantTransient: true,
		},
		{
			name:          "tiny shell page",
			statusCode:    200,
			body:          "<html><body>loading</body></html>",
			wantDetected:  true,
			wantSignal:    SignalEmptyContent,
			wantTransient: true,
		},
		{
			name:         "small page with real content element",
			statusCode:   200,
			body:         "<html><body><main>Go Developer, Toronto. Apply below.</main></body></html>",
			wantDetected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := d.DetectFromResponse(tt.statusCode, tt.headers, []byte(tt.body))

			if result.Detected != tt.wantDetected {
				t.Errorf("Detected = %v, want %v (%s)", result.Detected, tt.wantDetected, result.Description)
			}
			if !tt.wantDetected {
				return
			}
			if result.Signal != tt.wantSignal {
				t.Errorf("Signal = %q, want %q", result.Signal, tt.wantSignal)
			}
			if result.Transient != tt.wantTransient {
				t.Errorf("Transient = %v, want %v", result.Transient, tt.wantTransient)
			}
			if result.Confidence <= 0 || result.Confidence > 100 {
				t.Errorf("Confidence = %d, want 1-100", result.Confidence)
			}
		})
	}
}

func TestDetectionResult_IsRateLimit(t *testing.T) {
	d := NewDetector()

	limited := d.DetectFromResponse(429, nil, []byte("slow down"))
	if !limited.IsRateLimit() {
		t.Error("429 result should report IsRateLimit")
	}

	denied := d.DetectFromResponse(403, nil, []byte("denied"))
	if denied.IsRateLimit() {
		t.Error("403 result should not report IsRateLimit")
	}
}

func TestDetector_JSONBodySkipsHTMLHeuristics(t *testing.T) {
	d := NewDetector()

	// Small JSON bodies are legitimate; an ATS with no openings returns one.
	bodies := []string{
		`{"jobs": [], "meta": {"total": 0}}`,
		`[]`,
		"\n  {\"content\": []}",
	}
	for _, body := range bodies {
		result := d.DetectFromResponse(200, nil, []byte(body))
		if result.Detected {
			t.Errorf("JSON body %q flagged as %s", body, result.Signal)
		}
	}
}

func TestDetector_LongPageWithoutMarkersPasses(t *testing.T) {
	d := NewDetector()

	body := "<html><body><div>" + strings.Repeat("We are hiring engineers across the platform group. ", 30) + "</div></body></html>"
	result := d.DetectFromResponse(200, nil, []byte(body))
	if result.Detected {
		t.Errorf("long normal page flagged as %s: %s", result.Signal, result.Description)
	}
}

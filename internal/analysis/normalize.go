package analysis

import (
	"net/url"
	"strings"
)

// Normalize fills defaults and bounds values the model cannot be trusted with.
// Vote feedback is always reset.
func Normalize(data *AnalysisData) {
	if data.Impacts == nil {
		data.Impacts = []ImpactData{}
	}
	if IsPlaceholderURL(data.ArticleURL) {
		data.ArticleURL = ""
	}

	for i := range data.Impacts {
		normalizeImpact(&data.Impacts[i])
	}
}

func normalizeImpact(impact *ImpactData) {
	impact.Source = normalizeSource(impact.Source)
	impact.Score = clamp(impact.Score, -1, 1)

	if impact.Confidence == nil {
		confidence := DefaultConfidence
		impact.Confidence = &confidence
	} else {
		confidence := clamp(*impact.Confidence, 0, 1)
		impact.Confidence = &confidence
	}

	if impact.SupportingEvidence == nil {
		impact.SupportingEvidence = []EvidenceData{}
	}
	for i := range impact.SupportingEvidence {
		evidence := &impact.SupportingEvidence[i]
		evidence.Source = normalizeSource(evidence.Source)
		if IsPlaceholderURL(evidence.SourceURL) {
			evidence.SourceURL = ""
		}
	}

	impact.UserFeedback = UserFeedback{}
}

func normalizeSource(source string) string {
	if source == SourceUser {
		return SourceUser
	}
	return SourceSystem
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

var placeholderHosts = []string{"example.com", "example.org", "example.net"}

// IsPlaceholderURL reports whether u is a made up link: a reserved example
// domain, localhost, a reserved test TLD or something that is not an absolute
// http(s) URL. The empty string is not a placeholder.
func IsPlaceholderURL(u string) bool {
	u = strings.TrimSpace(u)
	if u == "" {
		return false
	}

	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return true
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return true
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "localhost" {
		return true
	}
	for _, placeholder := range placeholderHosts {
		if host == placeholder || strings.HasSuffix(host, "."+placeholder) {
			return true
		}
	}
	for _, tld := range []string{".example", ".test", ".invalid", ".localhost"} {
		if strings.HasSuffix(host, tld) {
			return true
		}
	}

	return false
}

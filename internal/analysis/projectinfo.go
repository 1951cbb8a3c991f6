package analysis

import "strings"

// ProjectInfo captures coarse project characteristics extracted from the PRD
// and architecture text without any backend call. It feeds the section
// prompts as context.
type ProjectInfo struct {
	Complexity   string   `json:"complexity"`
	Scale        string   `json:"scale"`
	Features     []string `json:"features"`
	Integrations []string `json:"integrations"`
	Compliance   []string `json:"compliance"`
}

var complexityIndicators = []struct {
	level    string
	keywords []string
}{
	{"High", []string{"machine learning", "ai", "real-time", "microservices", "blockchain", "streaming", "security-critical"}},
	{"Medium", []string{"api", "database", "authentication", "payment", "notification", "dashboard"}},
	{"Low", []string{"crud", "simple", "basic", "static", "profile"}},
}

var integrationKeywords = []string{"payment", "email", "sms", "social", "api", "third-party", "gateway"}

var complianceKeywords = []string{"gdpr", "hipaa", "pci", "sox", "privacy", "security", "encryption"}

var defaultFeatures = []string{
	"Core API Development",
	"User Management System",
	"Data Persistence Layer",
}

// ExtractProjectInfo derives complexity, scale, features, integrations and
// compliance signals from the combined PRD and architecture content.
func ExtractProjectInfo(prdContent, architectureContent string) ProjectInfo {
	info := ProjectInfo{
		Complexity: "Medium",
		Scale:      "Medium",
	}

	combined := prdContent + "\n" + architectureContent
	lower := strings.ToLower(combined)

	for _, ind := range complexityIndicators {
		if containsAny(lower, ind.keywords) {
			info.Complexity = ind.level
			break
		}
	}

	for _, line := range strings.Split(combined, "\n") {
		lineLower := strings.ToLower(line)
		if !containsAny(lineLower, []string{"feature", "functionality", "requirement", "endpoint", "module"}) {
			continue
		}
		clean := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-•*# "))
		if len(clean) > 8 && len(clean) < 150 {
			info.Features = append(info.Features, clean)
		}
	}
	if len(info.Features) == 0 {
		info.Features = append(info.Features, defaultFeatures...)
	}

	switch n := len(info.Features); {
	case n > 12:
		info.Scale = "Large"
	case n > 5:
		info.Scale = "Medium"
	default:
		info.Scale = "Small"
	}

	for _, kw := range integrationKeywords {
		if strings.Contains(lower, kw) {
			info.Integrations = append(info.Integrations, titleCase(kw))
		}
	}
	for _, kw := range complianceKeywords {
		if strings.Contains(lower, kw) {
			info.Compliance = append(info.Compliance, strings.ToUpper(kw))
		}
	}

	return info
}

func titleCase(word string) string {
	if word == "" {
		return word
	}
	return strings.ToUpper(word[:1]) + word[1:]
}

func containsAny(haystack string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

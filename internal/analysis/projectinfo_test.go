package analysis

import (
	"fmt"
	"strings"
	"testing"
)

func TestExtractProjectInfoComplexity(t *testing.T) {
	tests := []struct {
		name string
		prd  string
		want string
	}{
		{"real-time marks high", "A real-time streaming ingestion service.", "High"},
		{"database marks medium", "Stores customer records in a database.", "Medium"},
		{"simple marks low", "A simple static brochure site.", "Low"},
		{"no signal defaults medium", "Nothing notable here.", "Medium"},
		{"high wins over medium", "Microservices fronted by an api gateway.", "High"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ExtractProjectInfo(tt.prd, "")
			if info.Complexity != tt.want {
				t.Fatalf("complexity = %s, want %s", info.Complexity, tt.want)
			}
		})
	}
}

func TestExtractProjectInfoFeatures(t *testing.T) {
	prd := strings.Join([]string{
		"# Overview",
		"- Feature: bulk export of records",
		"* Requirement: audit every admin action",
		"Endpoint for webhook delivery",
		"- Feature", // too short to keep
		"Unrelated prose line.",
	}, "\n")
	info := ExtractProjectInfo(prd, "")
	if len(info.Features) != 3 {
		t.Fatalf("expected 3 features, got %d: %v", len(info.Features), info.Features)
	}
	if info.Features[0] != "Feature: bulk export of records" {
		t.Fatalf("bullet not stripped: %q", info.Features[0])
	}
}

func TestExtractProjectInfoDefaultFeatures(t *testing.T) {
	info := ExtractProjectInfo("No structured content at all.", "")
	if len(info.Features) != len(defaultFeatures) {
		t.Fatalf("expected default features, got %v", info.Features)
	}
	if info.Scale != "Small" {
		t.Fatalf("three features should read as Small scale, got %s", info.Scale)
	}
}

func TestExtractProjectInfoScale(t *testing.T) {
	var lines []string
	for i := 0; i < 13; i++ {
		lines = append(lines, fmt.Sprintf("- Feature: capability number %02d", i))
	}
	info := ExtractProjectInfo(strings.Join(lines, "\n"), "")
	if info.Scale != "Large" {
		t.Fatalf("13 features should read as Large scale, got %s", info.Scale)
	}

	info = ExtractProjectInfo(strings.Join(lines[:6], "\n"), "")
	if info.Scale != "Medium" {
		t.Fatalf("6 features should read as Medium scale, got %s", info.Scale)
	}
}

func TestExtractProjectInfoIntegrationsAndCompliance(t *testing.T) {
	prd := "Checkout uses a payment gateway. Data is under GDPR and needs encryption."
	info := ExtractProjectInfo(prd, "")

	wantIntegrations := map[string]bool{"Payment": true, "Gateway": true}
	for want := range wantIntegrations {
		found := false
		for _, got := range info.Integrations {
			if got == want {
				found = true
			}
		}
		if !found {
			t.Fatalf("integration %s missing from %v", want, info.Integrations)
		}
	}

	wantCompliance := map[string]bool{"GDPR": true, "ENCRYPTION": true}
	for want := range wantCompliance {
		found := false
		for _, got := range info.Compliance {
			if got == want {
				found = true
			}
		}
		if !found {
			t.Fatalf("compliance %s missing from %v", want, info.Compliance)
		}
	}
}

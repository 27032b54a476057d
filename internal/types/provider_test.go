package types

import (
	"reflect"
	"testing"
)

func TestRoutingRule_Allows(t *testing.T) {
	tests := []struct {
		name    string
		allowed string
		model   string
		want    bool
	}{
		{"empty list allows all", "", "gpt-3.5-turbo", true},
		{"exact match", "gpt-4o,gpt-4o-mini", "gpt-4o-mini", true},
		{"not in list", "gpt-4o,gpt-4o-mini", "gpt-3.5-turbo", false},
		{"whitespace trimmed", "gpt-4o, gpt-4o-mini", "gpt-4o-mini", true},
		{"case sensitive", "gpt-4o", "GPT-4o", false},
		{"no partial match", "gpt-4o-mini", "gpt-4o", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &RoutingRule{AllowedModels: tt.allowed}
			if got := r.Allows(tt.model); got != tt.want {
				t.Errorf("Allows(%q) with list %q = %v, want %v", tt.model, tt.allowed, got, tt.want)
			}
		})
	}
}

func TestProvider_ConfiguredURLs(t *testing.T) {
	tests := []struct {
		name     string
		provider Provider
		want     []string
	}{
		{
			"base_urls json array",
			Provider{BaseURLs: `["https://a","https://b"]`},
			[]string{"https://a", "https://b"},
		},
		{
			"legacy base_url",
			Provider{BaseURL: "https://a"},
			[]string{"https://a"},
		},
		{
			"base_urls wins over base_url",
			Provider{BaseURL: "https://old", BaseURLs: `["https://new"]`},
			[]string{"https://new"},
		},
		{
			"invalid json falls back to base_url",
			Provider{BaseURL: "https://a", BaseURLs: "not-json"},
			[]string{"https://a"},
		},
		{"nothing configured", Provider{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.provider.ConfiguredURLs(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ConfiguredURLs() = %v, want %v", got, tt.want)
			}
		})
	}
}

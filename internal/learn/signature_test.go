package learn

import (
	"strings"
	"testing"
)

func TestSignatureDeterministic(t *testing.T) {
	title := "BREAKING: Federal Reserve announces emergency rate decision"
	a := Signature(title)
	b := Signature(title)
	if a != b {
		t.Errorf("same title produced different signatures: %q vs %q", a, b)
	}
}

func TestSignatureCapturesStructure(t *testing.T) {
	// Same construction, different words: identical fingerprint.
	a := Signature("ALERT: Senate passes emergency funding bill late")
	b := Signature("URGENT: Markets suffer historic collapse this evening")
	if a != b {
		t.Errorf("structurally equivalent headlines diverged:\n  %q\n  %q", a, b)
	}

	// A calm lowercase headline must not share a shape with a klaxon.
	calm := Signature("local library extends weekend opening hours this fall")
	if calm == a {
		t.Errorf("calm headline collided with alarmist shape: %q", calm)
	}
}

func TestSignatureFeatures(t *testing.T) {
	sig := Signature(`Governor declares "state of emergency": 12 counties affected`)
	for _, want := range []string{"digits:1", "quote:1", "colon:1"} {
		if !strings.Contains(sig, want) {
			t.Errorf("signature %q missing feature %q", sig, want)
		}
	}
}

func TestExtractKeywords(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  []string
	}{
		{
			name:  "stopwords and short words dropped",
			title: "The markets are in a panic over the new tariffs",
			want:  []string{"markets", "panic", "new", "tariffs"},
		},
		{
			name:  "multiword phrase kept whole",
			title: "Federal Reserve hints at martial law contingency planning",
			want:  []string{"federal reserve", "martial law", "hints", "contingency", "planning"},
		},
		{
			name:  "duplicates collapsed",
			title: "Crisis after crisis: the crisis deepens",
			want:  []string{"crisis", "deepens"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractKeywords(tt.title, 3)
			if len(got) != len(tt.want) {
				t.Fatalf("ExtractKeywords() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("term[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

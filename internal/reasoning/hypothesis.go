package reasoning

import (
	"fmt"

	"github.com/payops/sentinel/internal/valueobj"
)

// Hypothesis is a candidate root-cause explanation for one or more
// detected patterns.
type Hypothesis struct {
	ID                    string                `json:"id"`
	Description           string                `json:"description"`
	RootCause             string                `json:"root_cause"`
	Confidence            float64               `json:"confidence"`
	SupportingEvidence    []Evidence            `json:"supporting_evidence"`
	ContradictingEvidence []Evidence            `json:"contradicting_evidence,omitempty"`
	ExpectedImpact        valueobj.ImpactVector `json:"expected_impact"`
}

// catalogEntry is one static root-cause candidate for a given pattern
// kind.
type catalogEntry struct {
	rootCause      string
	description    string
	confidence     float64
	expectedImpact valueobj.ImpactVector
}

// catalog maps a detected pattern kind to 1-2 candidate root causes.
// Confidence values are static priors; they are not learned.
var catalog = map[PatternKind][]catalogEntry{
	PatternIssuerDegradation: {
		{rootCause: "issuer_downtime", description: "the issuer's processing infrastructure is degraded or down", confidence: 0.6, expectedImpact: valueobj.ImpactVector{SuccessRate: -0.3, Latency: 50, Cost: 0, Risk: 0.1}},
		{rootCause: "network_issues", description: "network connectivity to the issuer is unstable", confidence: 0.3, expectedImpact: valueobj.ImpactVector{SuccessRate: -0.15, Latency: 150, Cost: 0, Risk: 0.05}},
	},
	PatternRetryStorm: {
		{rootCause: "client_retry_misconfiguration", description: "upstream clients are retrying aggressively against a degraded path", confidence: 0.5, expectedImpact: valueobj.ImpactVector{SuccessRate: -0.1, Latency: 100, Cost: 0.2, Risk: 0.05}},
		{rootCause: "issuer_timeout_storm", description: "the issuer is intermittently timing out, triggering client-side retries", confidence: 0.4, expectedImpact: valueobj.ImpactVector{SuccessRate: -0.2, Latency: 200, Cost: 0.1, Risk: 0.1}},
	},
	PatternMethodFatigue: {
		{rootCause: "method_specific_outage", description: "the payment method's processing path is degraded", confidence: 0.55, expectedImpact: valueobj.ImpactVector{SuccessRate: -0.25, Latency: 75, Cost: 0, Risk: 0.05}},
	},
	PatternLatencySpike: {
		{rootCause: "infrastructure_saturation", description: "downstream infrastructure is saturated, inflating latency", confidence: 0.45, expectedImpact: valueobj.ImpactVector{SuccessRate: -0.05, Latency: 300, Cost: 0, Risk: 0.05}},
	},
	PatternSystemicFailure: {
		{rootCause: "platform_wide_incident", description: "a platform-wide incident is affecting multiple dimensions simultaneously", confidence: 0.7, expectedImpact: valueobj.ImpactVector{SuccessRate: -0.4, Latency: 250, Cost: 0.3, Risk: 0.3}},
	},
	PatternLocalizedFailure: {
		{rootCause: "localized_anomaly", description: "a statistically significant deviation localized to one dimension", confidence: 0.4, expectedImpact: valueobj.ImpactVector{SuccessRate: -0.15, Latency: 50, Cost: 0, Risk: 0.05}},
	},
}

// Generator turns detected patterns into candidate hypotheses.
type Generator struct {
	seq int
}

// NewGenerator creates a Hypothesis Generator.
func NewGenerator() *Generator { return &Generator{} }

// Generate emits 1-2 candidate hypotheses per detected pattern, each
// carrying the pattern's evidence as supporting evidence.
func (g *Generator) Generate(patterns []DetectedPattern) []Hypothesis {
	var out []Hypothesis
	for _, pat := range patterns {
		entries, ok := catalog[pat.Kind]
		if !ok {
			continue
		}
		for _, entry := range entries {
			g.seq++
			out = append(out, Hypothesis{
				ID:                 fmt.Sprintf("hyp_%d", g.seq),
				Description:        entry.description,
				RootCause:          entry.rootCause,
				Confidence:         entry.confidence,
				SupportingEvidence: pat.Evidence,
				ExpectedImpact:     entry.expectedImpact,
			})
		}
	}
	return out
}

package service

import (
	"fmt"

	"dnswatch/internal/model"
)

// Jurisdictions whose sudden appearance in a domain's hosting footprint is
// weighted extra.
var highRiskCountries = map[string]bool{
	"North Korea": true,
	"Iran":        true,
	"Syria":       true,
	"Cuba":        true,
	"Sudan":       true,
}

const (
	pointsPerMaliciousIP = 50
	pointsNewCountry     = 20
	pointsHighRisk       = 30
	pointsNewOrg         = 15
	pointsNoReverseDNS   = 25
)

var recommendations = map[model.RiskLevel]string{
	model.RiskLow:      "Monitor for further changes; likely routine infrastructure maintenance.",
	model.RiskMedium:   "Verify the change with the domain owner or hosting provider.",
	model.RiskHigh:     "Investigate urgently; cross-check registrar and certificate records.",
	model.RiskCritical: "Immediate action required: treat as a likely hijack and consider blocking the domain.",
}

// ScoreRisk derives a qualitative risk level from the enriched previous and
// current IP sets. It is a pure function: given the same two inputs it always
// produces the same assessment, which keeps every alert auditable.
func ScoreRisk(previous, current []model.IPAnalysis) model.RiskAssessment {
	score := 0
	var factors []string

	malicious := 0
	for _, a := range current {
		if a.Reputation != nil && a.Reputation.IsMalicious {
			malicious++
		}
	}
	if malicious > 0 {
		score += malicious * pointsPerMaliciousIP
		factors = append(factors, fmt.Sprintf("%d current IP(s) flagged as malicious", malicious))
	}

	prevCountries := countrySet(previous)
	var newCountries []string
	highRisk := false
	for _, a := range current {
		if a.Geolocation == nil || a.Geolocation.Country == "" {
			continue
		}
		c := a.Geolocation.Country
		if !prevCountries[c] {
			newCountries = append(newCountries, c)
			if highRiskCountries[c] {
				highRisk = true
			}
		}
	}
	if len(newCountries) > 0 {
		score += pointsNewCountry
		factors = append(factors, fmt.Sprintf("geographic change: new hosting country %v", newCountries))
		if highRisk {
			score += pointsHighRisk
			factors = append(factors, "new hosting country is in the high-risk jurisdiction list")
		}
	}

	prevOrgs := orgSet(previous)
	var newOrgs []string
	for _, a := range current {
		if a.ASN == nil || a.ASN.Organization == "" {
			continue
		}
		if !prevOrgs[a.ASN.Organization] {
			newOrgs = append(newOrgs, a.ASN.Organization)
		}
	}
	if len(newOrgs) > 0 {
		score += pointsNewOrg
		factors = append(factors, fmt.Sprintf("hosting provider change: new organization %v", newOrgs))
	}

	if len(current) > 0 {
		missingPTR := true
		for _, a := range current {
			if a.ReverseDNS != "" {
				missingPTR = false
				break
			}
		}
		// A footprint with no PTR trail at all is suspicious, not merely
		// unknown.
		if missingPTR {
			score += pointsNoReverseDNS
			factors = append(factors, "no current IP has a reverse DNS entry")
		}
	}

	level := levelForScore(score)
	// Confirmed-malicious infrastructure is never less than critical, no
	// matter how few other signals fired.
	if malicious > 0 {
		level = model.RiskCritical
	}
	if len(factors) == 0 {
		factors = append(factors, "minor infrastructure change")
	}

	return model.RiskAssessment{
		Level:          level,
		Factors:        factors,
		Recommendation: recommendations[level],
	}
}

func levelForScore(score int) model.RiskLevel {
	switch {
	case score >= 80:
		return model.RiskCritical
	case score >= 50:
		return model.RiskHigh
	case score >= 25:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

func countrySet(analyses []model.IPAnalysis) map[string]bool {
	set := make(map[string]bool)
	for _, a := range analyses {
		if a.Geolocation != nil && a.Geolocation.Country != "" {
			set[a.Geolocation.Country] = true
		}
	}
	return set
}

func orgSet(analyses []model.IPAnalysis) map[string]bool {
	set := make(map[string]bool)
	for _, a := range analyses {
		if a.ASN != nil && a.ASN.Organization != "" {
			set[a.ASN.Organization] = true
		}
	}
	return set
}

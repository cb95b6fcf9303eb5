package model

import (
	"sort"
	"time"
)

type RecordType string

const (
	RecordTypeA     RecordType = "A"
	RecordTypeAAAA  RecordType = "AAAA"
	RecordTypeCNAME RecordType = "CNAME"
	RecordTypeNS    RecordType = "NS"
)

func (t RecordType) Valid() bool {
	switch t {
	case RecordTypeA, RecordTypeAAAA, RecordTypeCNAME, RecordTypeNS:
		return true
	}
	return false
}

// IsAddress reports whether the record type carries IP addresses and is
// therefore eligible for IP intelligence analysis.
func (t RecordType) IsAddress() bool {
	return t == RecordTypeA || t == RecordTypeAAAA
}

type DomainSpec struct {
	Domain      string     `json:"domain"`
	RecordType  RecordType `json:"record_type"`
	DisplayName string     `json:"display_name,omitempty"`
	Category    string     `json:"category,omitempty"`
}

// ResolverAnswer maps a resolver name to the record values it returned.
// An empty slice means the resolver failed or returned nothing.
type ResolverAnswer map[string][]string

type ConsensusResult struct {
	Values      []string       `json:"values"`
	Discrepancy bool           `json:"discrepancy"`
	PerResolver ResolverAnswer `json:"per_resolver"`
}

// HistoryRecord is the persisted last-known state for one domain:recordType
// key. It always reflects the latest successful observation, not just changes.
type HistoryRecord struct {
	Domain     string     `json:"domain"`
	RecordType RecordType `json:"record_type"`
	Values     []string   `json:"values"`
	ObservedAt time.Time  `json:"observed_at"`
}

type CheckResult struct {
	Domain             string          `json:"domain"`
	RecordType         RecordType      `json:"record_type"`
	ObservedAt         time.Time       `json:"observed_at"`
	IsFirstCheck       bool            `json:"is_first_check"`
	HasChanged         bool            `json:"has_changed"`
	PreviousValues     []string        `json:"previous_values"`
	CurrentValues      []string        `json:"current_values"`
	Discrepancy        bool            `json:"discrepancy"`
	PerResolver        ResolverAnswer  `json:"per_resolver"`
	Error              string          `json:"error,omitempty"`
	PreviousIPAnalysis []IPAnalysis    `json:"previous_ip_analysis,omitempty"`
	CurrentIPAnalysis  []IPAnalysis    `json:"current_ip_analysis,omitempty"`
	RiskAssessment     *RiskAssessment `json:"risk_assessment,omitempty"`
	Registrar          *RegistrarInfo  `json:"registrar,omitempty"`
}

type Geolocation struct {
	Country string  `json:"country"`
	City    string  `json:"city"`
	Region  string  `json:"region"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

type ASNInfo struct {
	Number       uint   `json:"number,omitempty"`
	Name         string `json:"name,omitempty"`
	Organization string `json:"organization,omitempty"`
}

type Reputation struct {
	IsClean     bool     `json:"is_clean"`
	IsMalicious bool     `json:"is_malicious,omitempty"`
	ThreatScore int      `json:"threat_score,omitempty"`
	Categories  []string `json:"categories,omitempty"`
	Source      string   `json:"source"`
}

type IPAnalysis struct {
	IP          string       `json:"ip"`
	Geolocation *Geolocation `json:"geolocation,omitempty"`
	ASN         *ASNInfo     `json:"asn,omitempty"`
	Reputation  *Reputation  `json:"reputation,omitempty"`
	ReverseDNS  string       `json:"reverse_dns,omitempty"`
}

type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

type RiskAssessment struct {
	Level          RiskLevel `json:"level"`
	Factors        []string  `json:"factors"`
	Recommendation string    `json:"recommendation"`
}

type RegistrarInfo struct {
	Registrar string `json:"registrar,omitempty"`
	Created   string `json:"created,omitempty"`
	Expiry    string `json:"expiry,omitempty"`
}

// EqualValueSets compares two record value lists as multisets: order does not
// matter, cardinality does.
func EqualValueSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

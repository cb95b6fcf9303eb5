package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"dnswatch/internal/model"
	"dnswatch/internal/utils"

	"github.com/miekg/dns"
	"github.com/oschwald/geoip2-golang"
)

// Known-bad address prefixes used when no live reputation source is
// reachable. Tor exit pools and bulletproof-hosting ranges seen in hijack
// campaigns.
var knownBadPrefixes = map[string]string{
	"185.220.100.": "tor-exit",
	"185.220.101.": "tor-exit",
	"5.188.10.":    "bulletproof-hosting",
	"91.219.236.":  "bulletproof-hosting",
	"194.165.16.":  "scanner",
}

// IntelService enriches public IP addresses with geolocation, ASN, reputation
// and reverse-DNS data. Every sub-lookup is failure-isolated: a dead provider
// leaves its field empty and never aborts the rest of the analysis.
type IntelService struct {
	GeoFallbackURL   string
	ReputationAPIURL string
	ReputationAPIKey string
	PTRResolver      string
	PTRTimeout       time.Duration
	HTTPClient       *http.Client

	geoMu     sync.RWMutex
	geoReader *geoip2.Reader
}

func NewIntelService(geoDBPath, geoFallbackURL, reputationURL, reputationKey, ptrResolver string) *IntelService {
	s := &IntelService{
		GeoFallbackURL:   geoFallbackURL,
		ReputationAPIURL: reputationURL,
		ReputationAPIKey: reputationKey,
		PTRResolver:      ptrResolver,
		PTRTimeout:       5 * time.Second,
		HTTPClient:       &http.Client{Timeout: 10 * time.Second},
	}
	if geoDBPath != "" {
		reader, err := geoip2.Open(geoDBPath)
		if err == nil {
			s.geoReader = reader
			utils.Log.Info("GeoIP database loaded", utils.Field("path", geoDBPath))
		} else {
			utils.Log.Warn("GeoIP database unavailable, using HTTP fallback only",
				utils.Field("path", geoDBPath), utils.Field("error", err.Error()))
		}
	}
	return s
}

func (s *IntelService) Close() {
	s.geoMu.Lock()
	defer s.geoMu.Unlock()
	if s.geoReader != nil {
		_ = s.geoReader.Close()
		s.geoReader = nil
	}
}

// AnalyzeIPs runs per-address analyses concurrently. Output order matches
// input order, and one address failing never affects another's result.
func (s *IntelService) AnalyzeIPs(ctx context.Context, ips []string) []model.IPAnalysis {
	out := make([]model.IPAnalysis, len(ips))
	var wg sync.WaitGroup
	for i, ip := range ips {
		wg.Add(1)
		go func(i int, ip string) {
			defer wg.Done()
			out[i] = s.AnalyzeIP(ctx, ip)
		}(i, ip)
	}
	wg.Wait()
	return out
}

func (s *IntelService) AnalyzeIP(ctx context.Context, ip string) model.IPAnalysis {
	analysis := model.IPAnalysis{IP: ip}

	if utils.IsPrivateIP(ip) {
		// Nothing external can say anything useful about these.
		analysis.Geolocation = &model.Geolocation{Country: "Private IP", City: "Local Network"}
		analysis.Reputation = &model.Reputation{IsClean: true, Source: "local"}
		return analysis
	}

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		geo, asn, err := s.lookupGeo(ctx, ip)
		if err != nil {
			utils.Log.Warn("geolocation lookup failed", utils.Field("ip", ip), utils.Field("error", err.Error()))
			return
		}
		analysis.Geolocation = geo
		analysis.ASN = asn
	}()

	go func() {
		defer wg.Done()
		analysis.Reputation = s.lookupReputation(ctx, ip)
	}()

	go func() {
		defer wg.Done()
		ptr, err := s.lookupReverseDNS(ctx, ip)
		if err != nil {
			utils.Log.Debug("reverse DNS lookup failed", utils.Field("ip", ip), utils.Field("error", err.Error()))
			return
		}
		analysis.ReverseDNS = ptr
	}()

	wg.Wait()
	return analysis
}

// lookupGeo tries the local MaxMind reader first and falls back to the
// ip-api style HTTP endpoint. Only the HTTP source carries ASN data.
func (s *IntelService) lookupGeo(ctx context.Context, target string) (*model.Geolocation, *model.ASNInfo, error) {
	s.geoMu.RLock()
	reader := s.geoReader
	s.geoMu.RUnlock()

	if reader != nil {
		ip := net.ParseIP(target)
		record, err := reader.City(ip)
		if err == nil && record.Country.IsoCode != "" {
			return &model.Geolocation{
				Country: record.Country.Names["en"],
				City:    record.City.Names["en"],
				Lat:     record.Location.Latitude,
				Lon:     record.Location.Longitude,
			}, nil, nil
		}
	}

	if s.GeoFallbackURL == "" {
		return nil, nil, fmt.Errorf("no geolocation source available")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.GeoFallbackURL+"/"+target, nil)
	if err != nil {
		return nil, nil, err
	}
	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var info struct {
		Status     string  `json:"status"`
		Message    string  `json:"message"`
		Country    string  `json:"country"`
		City       string  `json:"city"`
		RegionName string  `json:"regionName"`
		Lat        float64 `json:"lat"`
		Lon        float64 `json:"lon"`
		AS         string  `json:"as"`
		Org        string  `json:"org"`
		ISP        string  `json:"isp"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, nil, err
	}
	if info.Status == "fail" {
		return nil, nil, fmt.Errorf("geo provider: %s", info.Message)
	}

	geo := &model.Geolocation{
		Country: info.Country,
		City:    info.City,
		Region:  info.RegionName,
		Lat:     info.Lat,
		Lon:     info.Lon,
	}
	asn := parseASN(info.AS, info.Org, info.ISP)
	return geo, asn, nil
}

// parseASN splits an "AS15169 Google LLC" string into number and name.
func parseASN(as, org, isp string) *model.ASNInfo {
	if as == "" && org == "" && isp == "" {
		return nil
	}
	info := &model.ASNInfo{Organization: org}
	if info.Organization == "" {
		info.Organization = isp
	}
	if rest, ok := strings.CutPrefix(as, "AS"); ok {
		numStr, name, _ := strings.Cut(rest, " ")
		if n, err := strconv.ParseUint(numStr, 10, 32); err == nil {
			info.Number = uint(n)
		}
		info.Name = strings.TrimSpace(name)
	}
	return info
}

// lookupReputation never returns an error: a dead primary source falls back
// to the static prefix table, and absence of evidence means clean.
func (s *IntelService) lookupReputation(ctx context.Context, ip string) *model.Reputation {
	if s.ReputationAPIURL != "" && s.ReputationAPIKey != "" {
		rep, err := s.queryReputationAPI(ctx, ip)
		if err == nil {
			return rep
		}
		utils.Log.Warn("reputation lookup failed, using static table",
			utils.Field("ip", ip), utils.Field("error", err.Error()))
	}

	for prefix, category := range knownBadPrefixes {
		if strings.HasPrefix(ip, prefix) {
			return &model.Reputation{
				IsClean:     false,
				IsMalicious: true,
				Categories:  []string{category},
				Source:      "static-blocklist",
			}
		}
	}

	return &model.Reputation{IsClean: true, Source: "default"}
}

func (s *IntelService) queryReputationAPI(ctx context.Context, ip string) (*model.Reputation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.ReputationAPIURL, nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	q.Set("ipAddress", ip)
	q.Set("maxAgeInDays", "90")
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Key", s.ReputationAPIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from reputation API", resp.StatusCode)
	}

	var body struct {
		Data struct {
			AbuseConfidenceScore int    `json:"abuseConfidenceScore"`
			TotalReports         int    `json:"totalReports"`
			UsageType            string `json:"usageType"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}

	score := body.Data.AbuseConfidenceScore
	rep := &model.Reputation{
		IsClean:     score < 50,
		IsMalicious: score >= 50,
		ThreatScore: score,
		Source:      "abuseipdb",
	}
	if body.Data.UsageType != "" {
		rep.Categories = []string{body.Data.UsageType}
	}
	return rep, nil
}

func (s *IntelService) lookupReverseDNS(ctx context.Context, ip string) (string, error) {
	arpa, err := dns.ReverseAddr(ip)
	if err != nil {
		return "", err
	}

	m := new(dns.Msg)
	m.SetQuestion(arpa, dns.TypePTR)
	c := &dns.Client{Net: "udp", Timeout: s.PTRTimeout}

	in, _, err := c.ExchangeContext(ctx, m, s.PTRResolver)
	if err != nil {
		return "", err
	}
	for _, ans := range in.Answer {
		if ptr, ok := ans.(*dns.PTR); ok {
			return strings.TrimSuffix(ptr.Ptr, "."), nil
		}
	}
	return "", fmt.Errorf("no PTR record for %s", ip)
}

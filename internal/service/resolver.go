package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"dnswatch/internal/model"

	"github.com/miekg/dns"
)

// Resolver is one independent source of DNS answers. Implementations must be
// safe for concurrent use: the consensus engine queries all of them at once.
type Resolver interface {
	Name() string
	Query(ctx context.Context, domain string, recordType model.RecordType) ([]string, error)
}

// Numeric RR type codes as they appear in DoH JSON answers.
var recordTypeCodes = map[model.RecordType]int{
	model.RecordTypeA:     1,
	model.RecordTypeNS:    2,
	model.RecordTypeCNAME: 5,
	model.RecordTypeAAAA:  28,
}

type dohAnswer struct {
	Name string `json:"name"`
	Type int    `json:"type"`
	TTL  uint32 `json:"TTL"`
	Data string `json:"data"`
}

type dohResponse struct {
	Status int         `json:"Status"`
	Answer []dohAnswer `json:"Answer"`
}

var tokenCounter uint64

// cacheBustToken is unique per call even within one clock tick.
func cacheBustToken() string {
	return strconv.FormatInt(time.Now().UnixNano(), 36) + "-" + strconv.FormatUint(atomic.AddUint64(&tokenCounter, 1), 36)
}

// DoHResolver issues JSON DNS queries over HTTPS (RFC 8484 JSON dialect, as
// served by Cloudflare and Google).
type DoHResolver struct {
	ResolverName string
	Endpoint     string
	Client       *http.Client
}

func NewDoHResolver(name, endpoint string) *DoHResolver {
	return &DoHResolver{
		ResolverName: name,
		Endpoint:     endpoint,
		Client:       &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *DoHResolver) Name() string {
	return r.ResolverName
}

// Query fetches the records of the requested type. Every call carries a fresh
// uniqueness token and no-cache headers so intermediaries cannot serve a
// stale answer, which would mask an in-progress hijack.
func (r *DoHResolver) Query(ctx context.Context, domain string, recordType model.RecordType) ([]string, error) {
	code, ok := recordTypeCodes[recordType]
	if !ok {
		return nil, fmt.Errorf("unsupported record type: %s", recordType)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.Endpoint, nil)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("name", domain)
	q.Set("type", string(recordType))
	q.Set("_t", cacheBustToken())
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/dns-json")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, r.ResolverName)
	}

	var body dohResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("invalid DoH response from %s: %w", r.ResolverName, err)
	}
	if body.Status != 0 {
		return nil, fmt.Errorf("DNS status %d from %s", body.Status, r.ResolverName)
	}

	var values []string
	for _, ans := range body.Answer {
		if ans.Type != code {
			continue
		}
		data := strings.TrimSpace(ans.Data)
		if data == "" {
			continue
		}
		if recordType == model.RecordTypeCNAME || recordType == model.RecordTypeNS {
			data = strings.TrimSuffix(data, ".")
		}
		values = append(values, data)
	}
	return values, nil
}

// UDPResolver speaks classic DNS over UDP. It lets a voting set mix DoH
// providers with plain resolvers, e.g. an internal one.
type UDPResolver struct {
	ResolverName string
	Addr         string // host:port
	Timeout      time.Duration
}

func NewUDPResolver(name, addr string) *UDPResolver {
	return &UDPResolver{
		ResolverName: name,
		Addr:         addr,
		Timeout:      5 * time.Second,
	}
}

func (r *UDPResolver) Name() string {
	return r.ResolverName
}

func (r *UDPResolver) Query(ctx context.Context, domain string, recordType model.RecordType) ([]string, error) {
	var qtype uint16
	switch recordType {
	case model.RecordTypeA:
		qtype = dns.TypeA
	case model.RecordTypeAAAA:
		qtype = dns.TypeAAAA
	case model.RecordTypeCNAME:
		qtype = dns.TypeCNAME
	case model.RecordTypeNS:
		qtype = dns.TypeNS
	default:
		return nil, fmt.Errorf("unsupported record type: %s", recordType)
	}

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(domain), qtype)
	c := &dns.Client{Net: "udp", Timeout: r.Timeout}

	in, _, err := c.ExchangeContext(ctx, m, r.Addr)
	if err != nil {
		return nil, err
	}
	if in.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("rcode %s from %s", dns.RcodeToString[in.Rcode], r.ResolverName)
	}

	var values []string
	for _, ans := range in.Answer {
		switch t := ans.(type) {
		case *dns.A:
			if recordType == model.RecordTypeA {
				values = append(values, t.A.String())
			}
		case *dns.AAAA:
			if recordType == model.RecordTypeAAAA {
				values = append(values, t.AAAA.String())
			}
		case *dns.CNAME:
			if recordType == model.RecordTypeCNAME {
				values = append(values, strings.TrimSuffix(t.Target, "."))
			}
		case *dns.NS:
			if recordType == model.RecordTypeNS {
				values = append(values, strings.TrimSuffix(t.Ns, "."))
			}
		}
	}
	return values, nil
}

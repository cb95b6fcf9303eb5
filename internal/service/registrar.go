package service

import (
	"strings"

	"dnswatch/internal/model"
	"dnswatch/internal/utils"

	"github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"
)

// RegistrarSnapshot captures the current registrar state of a domain. A
// record change that coincides with a registrar move is a strong hijack
// corroborator, so the monitor attaches this to changed checks.
// Returns nil when WHOIS is unavailable; the check result stays useful
// without it.
func RegistrarSnapshot(domain string) *model.RegistrarInfo {
	raw, err := whois.Whois(domain)
	if err != nil {
		utils.Log.Debug("whois lookup failed", utils.Field("domain", domain), utils.Field("error", err.Error()))
		return nil
	}

	// Follow the registrar referral when the registry output names one; the
	// registrar's answer carries fresher contact data.
	if idx := strings.Index(raw, "Registrar WHOIS Server:"); idx >= 0 {
		line := raw[idx:]
		if nl := strings.IndexByte(line, '\n'); nl >= 0 {
			line = line[:nl]
		}
		if _, server, ok := strings.Cut(line, ":"); ok {
			server = strings.TrimSpace(server)
			if server != "" {
				if refRaw, refErr := whois.Whois(domain, server); refErr == nil && len(refRaw) > len(raw)/2 {
					raw = refRaw
				}
			}
		}
	}

	result, err := whoisparser.Parse(raw)
	if err != nil {
		return nil
	}

	info := &model.RegistrarInfo{}
	if result.Registrar != nil {
		info.Registrar = result.Registrar.Name
	}
	if result.Domain != nil {
		info.Created = result.Domain.CreatedDate
		info.Expiry = result.Domain.ExpirationDate
	}
	if info.Registrar == "" && info.Created == "" && info.Expiry == "" {
		return nil
	}
	return info
}

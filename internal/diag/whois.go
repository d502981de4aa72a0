package diag

import (
	"context"
	"fmt"
	"time"

	"github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"
)

// WhoisResult carries the key registration facts for a domain.
type WhoisResult struct {
	DomainName     string   `json:"domain_name"`
	Registrar      string   `json:"registrar"`
	CreationDate   string   `json:"creation_date"`
	ExpirationDate string   `json:"expiration_date"`
	NameServers    []string `json:"name_servers"`
	Status         []string `json:"status"`
}

var whoisClient = whois.NewClient().SetTimeout(10 * time.Second)

// Whois queries the registry for the domain and extracts registrar, key dates,
// name servers, and status. The whois client has no context API, so the query
// runs in a goroutine and the caller's context governs how long we wait for it.
func Whois(ctx context.Context, domain string) (WhoisResult, error) {
	if err := ctx.Err(); err != nil {
		return WhoisResult{}, err
	}

	type queryResult struct {
		raw string
		err error
	}
	done := make(chan queryResult, 1)
	go func() {
		raw, err := whoisClient.Whois(domain)
		done <- queryResult{raw: raw, err: err}
	}()

	var raw string
	select {
	case <-ctx.Done():
		return WhoisResult{}, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return WhoisResult{}, fmt.Errorf("whois query: %w", res.err)
		}
		raw = res.raw
	}

	parsed, err := whoisparser.Parse(raw)
	if err != nil {
		return WhoisResult{}, fmt.Errorf("whois parse: %w", err)
	}

	result := WhoisResult{DomainName: domain}
	if parsed.Domain != nil {
		if parsed.Domain.Domain != "" {
			result.DomainName = parsed.Domain.Domain
		}
		result.CreationDate = parsed.Domain.CreatedDate
		result.ExpirationDate = parsed.Domain.ExpirationDate
		result.NameServers = parsed.Domain.NameServers
		result.Status = parsed.Domain.Status
	}
	if parsed.Registrar != nil {
		result.Registrar = parsed.Registrar.Name
	}
	return result, nil
}

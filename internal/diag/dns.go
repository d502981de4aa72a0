package diag

import (
	"context"
	"net"
)

// RecordResult holds the answers for one record type, or the lookup error.
type RecordResult struct {
	Records []string `json:"records,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Records resolves A, AAAA, MX, CNAME, and TXT records for the host. Failures
// are reported per record type rather than failing the whole lookup.
func Records(ctx context.Context, host string) map[string]RecordResult {
	var resolver net.Resolver
	out := make(map[string]RecordResult, 5)

	out["A"] = lookupIPs(ctx, &resolver, "ip4", host)
	out["AAAA"] = lookupIPs(ctx, &resolver, "ip6", host)

	if mxs, err := resolver.LookupMX(ctx, host); err != nil {
		out["MX"] = RecordResult{Error: err.Error()}
	} else {
		records := make([]string, 0, len(mxs))
		for _, mx := range mxs {
			records = append(records, mx.Host)
		}
		out["MX"] = RecordResult{Records: records}
	}

	if cname, err := resolver.LookupCNAME(ctx, host); err != nil {
		out["CNAME"] = RecordResult{Error: err.Error()}
	} else {
		out["CNAME"] = RecordResult{Records: []string{cname}}
	}

	if txts, err := resolver.LookupTXT(ctx, host); err != nil {
		out["TXT"] = RecordResult{Error: err.Error()}
	} else {
		out["TXT"] = RecordResult{Records: txts}
	}

	return out
}

func lookupIPs(ctx context.Context, resolver *net.Resolver, network, host string) RecordResult {
	ips, err := resolver.LookupIP(ctx, network, host)
	if err != nil {
		return RecordResult{Error: err.Error()}
	}
	records := make([]string, 0, len(ips))
	for _, ip := range ips {
		records = append(records, ip.String())
	}
	return RecordResult{Records: records}
}

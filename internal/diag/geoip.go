package diag

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"
)

var geoipClient = &http.Client{Timeout: 10 * time.Second}

const geoipEndpoint = "http://ip-api.com/json/"

// Geolocate resolves the host to an IP and fetches its geolocation from the
// ip-api.com JSON endpoint. The response is passed through as-is.
func Geolocate(ctx context.Context, host string) (map[string]any, error) {
	var resolver net.Resolver
	addrs, err := resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("resolve host: %w", err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no addresses for host %q", host)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, geoipEndpoint+addrs[0].IP.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := geoipClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geolocation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geolocation status %d", resp.StatusCode)
	}

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode geolocation response: %w", err)
	}
	return result, nil
}

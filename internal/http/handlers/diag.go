package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/vantage/server/internal/diag"
)

// DiagHandler exposes the network diagnostic tools. All routes sit behind the
// session middleware; none of them touch the auth stores.
type DiagHandler struct{}

// NewDiagHandler creates a new diagnostics handler
func NewDiagHandler() *DiagHandler {
	return &DiagHandler{}
}

const (
	lookupTimeout = 15 * time.Second
	speedTimeout  = 2 * time.Minute
)

type hostRequest struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// parseHost decodes and validates the host field; writes the error response
// itself and returns ok=false when the request is unusable.
func parseHost(w http.ResponseWriter, r *http.Request) (hostRequest, bool) {
	var req hostRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return hostRequest{}, false
	}
	if req.Host == "" {
		respondWithError(w, http.StatusBadRequest, "host is required")
		return hostRequest{}, false
	}
	if !diag.ValidHost(req.Host) {
		respondWithError(w, http.StatusBadRequest, "invalid host")
		return hostRequest{}, false
	}
	if req.Port == 0 {
		req.Port = 80
	}
	return req, true
}

// HandleWhois handles POST /api/whois
func (h *DiagHandler) HandleWhois(w http.ResponseWriter, r *http.Request) {
	req, ok := parseHost(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), lookupTimeout)
	defer cancel()
	result, err := diag.Whois(ctx, req.Host)
	if err != nil {
		respondWithError(w, http.StatusBadGateway, "whois lookup failed")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// HandleDNS handles POST /api/dns
func (h *DiagHandler) HandleDNS(w http.ResponseWriter, r *http.Request) {
	req, ok := parseHost(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), lookupTimeout)
	defer cancel()
	respondJSON(w, http.StatusOK, diag.Records(ctx, req.Host))
}

// HandleGeoIP handles POST /api/geoip
func (h *DiagHandler) HandleGeoIP(w http.ResponseWriter, r *http.Request) {
	req, ok := parseHost(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), lookupTimeout)
	defer cancel()
	result, err := diag.Geolocate(ctx, req.Host)
	if err != nil {
		respondWithError(w, http.StatusBadGateway, "geolocation lookup failed")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// HandlePortScan handles POST /api/port_scan
func (h *DiagHandler) HandlePortScan(w http.ResponseWriter, r *http.Request) {
	req, ok := parseHost(w, r)
	if !ok {
		return
	}
	if req.Port < 1 || req.Port > 65535 {
		respondWithError(w, http.StatusBadRequest, "port must be between 1 and 65535")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), lookupTimeout)
	defer cancel()
	result, err := diag.ProbePort(ctx, req.Host, req.Port)
	if err != nil {
		respondWithError(w, http.StatusBadGateway, "port probe failed")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// HandleSpeed handles POST /api/speed
func (h *DiagHandler) HandleSpeed(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), speedTimeout)
	defer cancel()
	result, err := diag.SpeedTest(ctx)
	if err != nil {
		respondWithError(w, http.StatusBadGateway, "speed test failed")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

type domainRequest struct {
	Domain string   `json:"domain"`
	Port   int      `json:"port"`
	Fields []string `json:"fields"`
}

// HandleDomain handles POST /api/domain: configurable research fanning out to
// the individual tools. Unknown fields produce an inline error entry rather
// than failing the whole request.
func (h *DiagHandler) HandleDomain(w http.ResponseWriter, r *http.Request) {
	var req domainRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Domain == "" {
		respondWithError(w, http.StatusBadRequest, "domain is required")
		return
	}
	if !diag.ValidHost(req.Domain) {
		respondWithError(w, http.StatusBadRequest, "invalid domain")
		return
	}
	if req.Port == 0 {
		req.Port = 80
	}
	if req.Port < 1 || req.Port > 65535 {
		respondWithError(w, http.StatusBadRequest, "port must be between 1 and 65535")
		return
	}

	fields := req.Fields
	if len(fields) == 0 {
		fields = []string{"whois", "dns_records", "ip_geolocation", "port_scan"}
	}

	ctx, cancel := context.WithTimeout(r.Context(), lookupTimeout)
	defer cancel()

	results := map[string]any{"domain": req.Domain}
	for _, field := range fields {
		switch field {
		case "whois":
			if res, err := diag.Whois(ctx, req.Domain); err != nil {
				results[field] = map[string]string{"error": err.Error()}
			} else {
				results[field] = res
			}
		case "dns_records":
			results[field] = diag.Records(ctx, req.Domain)
		case "ip_geolocation":
			if res, err := diag.Geolocate(ctx, req.Domain); err != nil {
				results[field] = map[string]string{"error": err.Error()}
			} else {
				results[field] = res
			}
		case "port_scan":
			if res, err := diag.ProbePort(ctx, req.Domain, req.Port); err != nil {
				results[field] = map[string]string{"error": err.Error()}
			} else {
				results[field] = res
			}
		default:
			results[field] = map[string]string{"error": "unknown check"}
		}
	}

	respondJSON(w, http.StatusOK, results)
}

// HandleToolGuidance handles GET /api/tool-guidance?tool=<name>
func (h *DiagHandler) HandleToolGuidance(w http.ResponseWriter, r *http.Request) {
	tool := r.URL.Query().Get("tool")
	guidance, ok := diag.ToolGuidance[tool]
	if !ok {
		known := make([]string, 0, len(diag.ToolGuidance))
		for name := range diag.ToolGuidance {
			known = append(known, name)
		}
		respondJSON(w, http.StatusNotFound, map[string]any{
			"error": "unknown tool",
			"tools": known,
		})
		return
	}
	respondJSON(w, http.StatusOK, guidance)
}

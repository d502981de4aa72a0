package diag

// Guidance describes how to use one diagnostic tool.
type Guidance struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Usage       []string `json:"usage"`
	Example     string   `json:"example"`
}

// ToolGuidance maps tool names to their usage guidance, served by the
// tool-guidance endpoint.
var ToolGuidance = map[string]Guidance{
	"whois": {
		Title:       "WHOIS Lookup",
		Description: "Retrieves registration metadata, registrar, and key dates for a domain.",
		Usage: []string{
			"Provide a fully qualified domain name such as example.com.",
			"Check the creation/expiration dates to ensure domain ownership is current.",
			"Look at the registrar and name servers for signs of recent transfers.",
		},
		Example: `POST /api/whois {"host":"example.com"}`,
	},
	"dns_records": {
		Title:       "DNS Records",
		Description: "Enumerates standard DNS record types (A, AAAA, MX, CNAME, TXT).",
		Usage: []string{
			"Run it when you need to confirm IP resolution or MX mail server settings.",
			"Compare results across record types to catch inconsistencies.",
		},
		Example: `POST /api/dns {"host":"example.com"}`,
	},
	"ip_geolocation": {
		Title:       "IP Geolocation",
		Description: "Translates a host into an IP address and fetches its geographic data.",
		Usage: []string{
			"Combine with DNS or WHOIS to understand where the infrastructure lives.",
			"Use the returned country and ISP data to highlight unexpected hosting locations.",
		},
		Example: `POST /api/geoip {"host":"example.com"}`,
	},
	"port_scan": {
		Title:       "Port Scan",
		Description: "Checks whether a TCP port is open on the host.",
		Usage: []string{
			"Default port is 80; specify another port via the port field.",
			"The probe keeps a short timeout, so a filtered port reports as closed.",
		},
		Example: `POST /api/port_scan {"host":"example.com","port":443}`,
	},
	"speed": {
		Title:       "Speed Test",
		Description: "Measures download, upload, and ping speeds from the server's location.",
		Usage: []string{
			"Run this to gauge the server's outbound bandwidth.",
			"Expect a longer response time; it may take a minute.",
		},
		Example: `POST /api/speed`,
	},
	"domain": {
		Title:       "Domain Research",
		Description: "Runs configurable diagnostics for WHOIS, DNS, GeoIP, and port scans in one request.",
		Usage: []string{
			"Send a fields array to control which tools run (default is all).",
			"Validate the port range (1-65535) before requesting a custom port scan.",
		},
		Example: `POST /api/domain {"domain":"example.com","fields":["whois","dns_records"]}`,
	},
}

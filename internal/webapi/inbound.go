package webapi

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

const inboundJS = `
globalThis.__inboundRequest = function(meta, bodyID) {
	var m = JSON.parse(meta);
	var r = Object.create(Request.prototype);
	r._url = m.url;
	r._method = m.method;
	r._headers = new Headers(m.headers);
	r._headers._immutable = true;
	r._redirect = 'manual';
	r._cf = m.cf;
	r._bodyID = bodyID;
	r._used = false;
	r._stream = null;
	return r;
};
`

// IncomingCf is the request metadata attached to inbound requests.
type IncomingCf struct {
	Colo           string  `json:"colo"`
	Country        string  `json:"country,omitempty"`
	City           string  `json:"city,omitempty"`
	Continent      string  `json:"continent,omitempty"`
	Region         string  `json:"region,omitempty"`
	RegionCode     string  `json:"regionCode,omitempty"`
	PostalCode     string  `json:"postalCode,omitempty"`
	Timezone       string  `json:"timezone,omitempty"`
	Latitude       string  `json:"latitude,omitempty"`
	Longitude      string  `json:"longitude,omitempty"`
	ASN            int     `json:"asn"`
	AsOrganization string  `json:"asOrganization,omitempty"`
	HTTPProtocol   string  `json:"httpProtocol"`
	TLSVersion     string  `json:"tlsVersion,omitempty"`
	TLSCipher      string  `json:"tlsCipher,omitempty"`
	ClientTCPRtt   float64 `json:"clientTcpRtt,omitempty"`
}

type inboundMeta struct {
	URL     string      `json:"url"`
	Method  string      `json:"method"`
	Headers [][2]string `json:"headers"`
	Cf      IncomingCf  `json:"cf"`
}

// RequestURL reconstructs the absolute URL of a server-side request.
func RequestURL(r *http.Request) string {
	if r.URL.IsAbs() {
		return r.URL.String()
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p == "http" || p == "https" {
		scheme = p
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

// IncomingCfFor derives request metadata from r. Country and location
// come from CF-style headers when a proxy in front provides them.
func IncomingCfFor(r *http.Request, colo string) IncomingCf {
	cf := IncomingCf{
		Colo:         colo,
		Country:      r.Header.Get("CF-IPCountry"),
		City:         r.Header.Get("CF-IPCity"),
		Continent:    r.Header.Get("CF-IPContinent"),
		Region:       r.Header.Get("CF-Region"),
		RegionCode:   r.Header.Get("CF-Region-Code"),
		PostalCode:   r.Header.Get("CF-Postal-Code"),
		Timezone:     r.Header.Get("CF-Timezone"),
		Latitude:     r.Header.Get("CF-IPLatitude"),
		Longitude:    r.Header.Get("CF-IPLongitude"),
		HTTPProtocol: r.Proto,
	}
	if asn, err := strconv.Atoi(r.Header.Get("CF-ASN")); err == nil {
		cf.ASN = asn
	}
	if r.TLS != nil {
		cf.TLSVersion = tls.VersionName(r.TLS.Version)
		cf.TLSCipher = tls.CipherSuiteName(r.TLS.CipherSuite)
	}
	return cf
}

// NewInboundRequest creates the JS Request for r and returns the
// expression evaluating to it. The body stays on the Go side.
func (b *Bridge) NewInboundRequest(r *http.Request) (string, error) {
	meta := inboundMeta{
		URL:     RequestURL(r),
		Method:  r.Method,
		Headers: [][2]string{},
		Cf:      IncomingCfFor(r, b.cfg.Colo),
	}
	href, err := ParseURL(meta.URL)
	if err != nil {
		return "", err
	}
	meta.URL = href
	for _, k := range sortedKeys(r.Header) {
		for _, v := range r.Header[k] {
			meta.Headers = append(meta.Headers, [2]string{strings.ToLower(k), v})
		}
	}
	if r.Host != "" && r.Header.Get("Host") == "" {
		meta.Headers = append(meta.Headers, [2]string{"host", r.Host})
	}
	bodyID := 0
	if r.Body != nil && r.Body != http.NoBody && r.Method != http.MethodGet && r.Method != http.MethodHead {
		bodyID = b.Bodies.Add(r.Body, r.Body)
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}
	return fmt.Sprintf("__inboundRequest(%s, %d)", strconv.Quote(string(data)), bodyID), nil
}

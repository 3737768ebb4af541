package worker

// Cf is the edge metadata attached to inbound requests. Fields the host
// did not report are zero.
type Cf struct {
	Colo           string  `json:"colo"`
	Country        string  `json:"country"`
	City           string  `json:"city"`
	Continent      string  `json:"continent"`
	Region         string  `json:"region"`
	RegionCode     string  `json:"regionCode"`
	PostalCode     string  `json:"postalCode"`
	Timezone       string  `json:"timezone"`
	Latitude       string  `json:"latitude"`
	Longitude      string  `json:"longitude"`
	ASN            int     `json:"asn"`
	AsOrganization string  `json:"asOrganization"`
	HTTPProtocol   string  `json:"httpProtocol"`
	TLSVersion     string  `json:"tlsVersion"`
	TLSCipher      string  `json:"tlsCipher"`
	ClientTCPRtt   float64 `json:"clientTcpRtt"`
}

// Coordinates returns latitude and longitude as reported.
func (c *Cf) Coordinates() (lat, lon string) {
	return c.Latitude, c.Longitude
}

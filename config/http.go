package config

// HTTPConfig configures the dispatch API and the Prometheus endpoint.
type HTTPConfig struct {
	Addr string `json:"addr"`
	// Token enables bearer authentication when set.
	Token          string `json:"token"`
	PrometheusAddr string `json:"prometheus_addr"`
	// MaxBodyMB bounds the size of posted series.
	MaxBodyMB int `json:"max_body_mb"`
}

func (c *HTTPConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.MaxBodyMB == 0 {
		c.MaxBodyMB = 16
	}
}

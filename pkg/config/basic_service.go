package config

// BasicService is used as a simple base for optional node services, here
// only Prometheus monitoring.
type BasicService struct {
	Enabled bool `yaml:"Enabled"`
	// Address is the bind address in the form of "address:port".
	Address string `yaml:"Address"`
}

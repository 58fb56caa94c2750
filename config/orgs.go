package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

// OrgEntry maps one organization identifier to its middleware node.
type OrgEntry struct {
	ID        string `yaml:"id"`
	Endpoint  string `yaml:"endpoint"`
	Namespace string `yaml:"namespace"`   // optional, falls back to default_namespace
	API       string `yaml:"contract_api"` // optional, falls back to contract_api
}

// OrgsConfig is the static organization table. Requests are routed to a
// node strictly by this table; there is no default endpoint for unknown
// organizations.
type OrgsConfig struct {
	DefaultNamespace string     `yaml:"default_namespace"`
	ContractAPI      string     `yaml:"contract_api"`
	Orgs             []OrgEntry `yaml:"orgs"`
}

// SetDefaults fills per-org namespace and contract API from the shared values
func (c *OrgsConfig) SetDefaults() {
	if c.DefaultNamespace == "" {
		c.DefaultNamespace = "default"
	}
	for i := range c.Orgs {
		if c.Orgs[i].Namespace == "" {
			c.Orgs[i].Namespace = c.DefaultNamespace
		}
		if c.Orgs[i].API == "" {
			c.Orgs[i].API = c.ContractAPI
		}
	}
}

// Validate checks the table for routing hazards: every org needs an id and
// an endpoint, ids must be unique (case-insensitively), and no two orgs may
// share an endpoint, since that would route one tenant's transactions
// through another tenant's identity.
func (c *OrgsConfig) Validate() error {
	if len(c.Orgs) == 0 {
		return fmt.Errorf("no organizations configured")
	}
	if c.ContractAPI == "" {
		return fmt.Errorf("contract_api must be configured")
	}
	seenIDs := make(map[string]bool, len(c.Orgs))
	seenEndpoints := make(map[string]string, len(c.Orgs))
	for _, org := range c.Orgs {
		if org.ID == "" {
			return fmt.Errorf("organization entry with empty id")
		}
		if org.Endpoint == "" {
			return fmt.Errorf("organization '%s' has no endpoint", org.ID)
		}
		key := strings.ToUpper(org.ID)
		if seenIDs[key] {
			return fmt.Errorf("duplicate organization id '%s'", org.ID)
		}
		seenIDs[key] = true
		if other, ok := seenEndpoints[org.Endpoint]; ok {
			return fmt.Errorf("organizations '%s' and '%s' share endpoint '%s'", other, org.ID, org.Endpoint)
		}
		seenEndpoints[org.Endpoint] = org.ID
	}
	return nil
}

// LoadOrgsConfig loads the organization table from the specified YAML file path
func LoadOrgsConfig(path string) (*OrgsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read organization config file '%s': %w", path, err)
	}

	var cfg OrgsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse organization YAML config file: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("organization configuration error: %w", err)
	}

	return &cfg, nil
}

package orgs

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"logshare/config"
)

func testTable() *config.OrgsConfig {
	cfg := &config.OrgsConfig{
		ContractAPI: "securitylog",
		Orgs: []config.OrgEntry{
			{ID: "ORG1MSP", Endpoint: "http://localhost:5000"},
			{ID: "ORG2MSP", Endpoint: "http://localhost:5001"},
			{ID: "ORG3MSP", Endpoint: "http://localhost:5002", Namespace: "logs"},
		},
	}
	cfg.SetDefaults()
	return cfg
}

func TestResolveKnownOrgs(t *testing.T) {
	r := NewResolver(testTable())

	cases := []struct {
		name     string
		id       string
		endpoint string
	}{
		{"exact match", "ORG1MSP", "http://localhost:5000"},
		{"lowercase", "org2msp", "http://localhost:5001"},
		{"mixed case with spaces", "  Org3MSP ", "http://localhost:5002"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			target, err := r.Resolve(tc.id)
			if err != nil {
				t.Fatalf("Resolve(%q) returned error: %v", tc.id, err)
			}
			if target.Endpoint != tc.endpoint {
				t.Errorf("Resolve(%q) endpoint = %q, want %q", tc.id, target.Endpoint, tc.endpoint)
			}
			if target.API != "securitylog" {
				t.Errorf("Resolve(%q) api = %q, want securitylog", tc.id, target.API)
			}
		})
	}
}

func TestResolveUnknownOrg(t *testing.T) {
	r := NewResolver(testTable())

	for _, id := range []string{"", "   ", "ORG9MSP", "default"} {
		if _, err := r.Resolve(id); !errors.Is(err, ErrUnknownOrg) {
			t.Errorf("Resolve(%q) error = %v, want ErrUnknownOrg", id, err)
		}
	}
}

func TestResolveNamespaceDefaults(t *testing.T) {
	r := NewResolver(testTable())

	t1, _ := r.Resolve("ORG1MSP")
	if t1.Namespace != "default" {
		t.Errorf("ORG1MSP namespace = %q, want shared default", t1.Namespace)
	}
	t3, _ := r.Resolve("ORG3MSP")
	if t3.Namespace != "logs" {
		t.Errorf("ORG3MSP namespace = %q, want its own override", t3.Namespace)
	}
}

// Every configured org must resolve to its own endpoint regardless of the
// casing the caller uses, and two distinct orgs never share an endpoint.
func TestResolveIsolationProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	cfg := testTable()
	r := NewResolver(cfg)

	endpoints := make(map[string]string, len(cfg.Orgs))
	for _, org := range cfg.Orgs {
		endpoints[org.ID] = org.Endpoint
	}

	properties := gopter.NewProperties(parameters)

	properties.Property("case-insensitive resolution hits the right endpoint", prop.ForAll(
		func(idx int, upper bool) bool {
			org := cfg.Orgs[idx%len(cfg.Orgs)]
			id := org.ID
			if !upper {
				id = lower(id)
			}
			target, err := r.Resolve(id)
			if err != nil {
				return false
			}
			return target.Endpoint == endpoints[org.ID] && target.ID == org.ID
		},
		gen.IntRange(0, 100),
		gen.Bool(),
	))

	properties.Property("distinct orgs resolve to distinct endpoints", prop.ForAll(
		func(i, j int) bool {
			a := cfg.Orgs[i%len(cfg.Orgs)]
			b := cfg.Orgs[j%len(cfg.Orgs)]
			ta, errA := r.Resolve(a.ID)
			tb, errB := r.Resolve(b.ID)
			if errA != nil || errB != nil {
				return false
			}
			if a.ID == b.ID {
				return ta.Endpoint == tb.Endpoint
			}
			return ta.Endpoint != tb.Endpoint
		},
		gen.IntRange(0, 100),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}

func lower(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

package client

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"logshare/ledger/client/chainmaker"
	"logshare/ledger/client/firefly"
)

// Backend selects where contract operations execute.
type Backend string

const (
	// FireFly routes contract operations through the org's middleware node.
	FireFly Backend = "firefly"
	// ChainMaker submits contract operations to a ChainMaker network
	// directly. Blobs, messaging and status always go through the node.
	ChainMaker Backend = "chainmaker"
	// Future backends can be added here:
	// Fabric Backend = "fabric"
)

// Factory builds per-request middleware clients. Node handles are
// constructed fresh per call so no mutable connection state is shared
// across requests; the http.Client transport and the ChainMaker SDK
// client are the documented exceptions (both are request-safe).
type Factory struct {
	backend    Backend
	httpClient *http.Client
	chain      *chainmaker.Client // shared, nil unless backend is chainmaker
	logger     *log.Logger
}

// NewFactory creates a client factory for the configured backend.
// chainCfg is required when backend is "chainmaker" and ignored otherwise.
func NewFactory(backend Backend, requestTimeout time.Duration, chainCfg *chainmaker.Config, logger *log.Logger) (*Factory, error) {
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	f := &Factory{
		backend:    backend,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger,
	}

	switch backend {
	case FireFly, "":
		f.backend = FireFly
	case ChainMaker:
		if chainCfg == nil {
			return nil, fmt.Errorf("backend 'chainmaker' requires a chainmaker client configuration")
		}
		chain, err := chainmaker.New(chainCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize chainmaker backend: %w", err)
		}
		f.chain = chain
	default:
		return nil, fmt.Errorf("unsupported ledger backend: %s", backend)
	}
	return f, nil
}

// Node returns the full middleware client for one organization's node.
func (f *Factory) Node(endpoint, namespace, api string) Node {
	return firefly.New(endpoint, namespace, api, f.httpClient, f.logger)
}

// ContractInvoker returns the contract backend for one organization.
// With the firefly backend this is the node itself; with the chainmaker
// backend it is the shared SDK client.
func (f *Factory) ContractInvoker(endpoint, namespace, api string) Invoker {
	if f.backend == ChainMaker {
		return f.chain
	}
	return f.Node(endpoint, namespace, api)
}

// Close releases backend resources. The streaming http.Client needs no
// explicit shutdown.
func (f *Factory) Close() error {
	if f.chain != nil {
		return f.chain.Close()
	}
	return nil
}

var (
	_ Node    = (*firefly.Client)(nil)
	_ Invoker = (*chainmaker.Client)(nil)
)

// Package chainmaker implements the contract backend on a ChainMaker
// network for deployments where the shared log contract runs there
// directly instead of behind a middleware node's contract API.
package chainmaker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"chainmaker.org/chainmaker/pb-go/v2/common"
	sdk "chainmaker.org/chainmaker/sdk-go/v2"

	"logshare/ledger/types"
)

// Client is the wrapper around the ChainMaker SDK client
type Client struct {
	sdkClient sdk.ChainClient
	cfg       *Config
	logger    *log.Logger
}

// New initializes the ChainMaker SDK client with the given configuration
func New(cfg *Config, logger *log.Logger) (*Client, error) {
	logger.Println("Initializing ChainMaker SDK client using builder pattern...")

	var clientOptions []sdk.ChainClientOption
	clientOptions = append(clientOptions, sdk.WithChainClientOrgId(cfg.OrgID))
	clientOptions = append(clientOptions, sdk.WithChainClientChainId(cfg.ChainID))
	clientOptions = append(clientOptions, sdk.WithUserKeyFilePath(cfg.UserKeyPath))
	clientOptions = append(clientOptions, sdk.WithUserCrtFilePath(cfg.UserCertPath))
	clientOptions = append(clientOptions, sdk.WithUserSignKeyFilePath(cfg.UserSignKeyPath))
	clientOptions = append(clientOptions, sdk.WithUserSignCrtFilePath(cfg.UserSignCertPath))

	if len(cfg.Nodes) == 0 {
		return nil, fmt.Errorf("no node configurations provided in config")
	}
	for _, nodeCfg := range cfg.Nodes {
		if nodeCfg.UseTLS && len(nodeCfg.CaPaths) == 0 {
			return nil, fmt.Errorf("node %s has TLS enabled but no CaPaths provided", nodeCfg.Address)
		}
		sdkNodeConfig := sdk.NewNodeConfig(
			sdk.WithNodeAddr(nodeCfg.Address),
			sdk.WithNodeConnCnt(nodeCfg.ConnCount),
			sdk.WithNodeUseTLS(nodeCfg.UseTLS),
			sdk.WithNodeCAPaths(nodeCfg.CaPaths),
			sdk.WithNodeTLSHostName(nodeCfg.TLSHostName),
		)
		clientOptions = append(clientOptions, sdk.AddChainClientNodeConfig(sdkNodeConfig))
	}

	if cfg.RetryLimit > 0 {
		clientOptions = append(clientOptions, sdk.WithRetryLimit(cfg.RetryLimit))
	}
	if cfg.RetryInterval > 0 {
		clientOptions = append(clientOptions, sdk.WithRetryInterval(cfg.RetryInterval))
	}

	sdkClient, err := sdk.NewChainClient(clientOptions...)
	if err != nil {
		logger.Printf("Failed to build ChainMaker SDK client: %v\n", err)
		return nil, err
	}

	err = sdkClient.EnableCertHash()
	if err != nil {
		logger.Printf("Warning: Failed to enable cert hash: %v\n", err)
	}

	logger.Println("ChainMaker SDK client initialized successfully.")

	return &Client{
		sdkClient: *sdkClient,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// NewFromFile initializes the client directly from a configuration file path
func NewFromFile(configPath string, logger *log.Logger) (*Client, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load ChainMaker config from file '%s': %w", configPath, err)
	}
	return New(cfg, logger)
}

// Close stops the SDK client
func (c *Client) Close() error {
	c.logger.Println("Closing ChainMaker SDK client...")
	if err := c.sdkClient.Stop(); err != nil {
		c.logger.Printf("Error stopping ChainMaker SDK client: %v", err)
		return fmt.Errorf("failed to stop ChainMaker SDK client: %w", err)
	}
	return nil
}

// Invoke submits a contract operation. Each input key travels as one
// contract parameter; non-string values are sent JSON-encoded.
func (c *Client) Invoke(ctx context.Context, op string, input map[string]any) (*types.TxReceipt, error) {
	kvs, err := toKeyValuePairs(input)
	if err != nil {
		return nil, err
	}

	_, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	resp, err := c.sdkClient.InvokeContract(c.cfg.ContractName, op, "", kvs, -1, true)
	if err != nil {
		return nil, &types.UpstreamError{Message: fmt.Sprintf("SDK invoke failed: %v", err)}
	}
	if resp.Code != common.TxStatusCode_SUCCESS {
		return nil, &types.UpstreamError{Message: fmt.Sprintf("contract execution failed: %s (code: %d)", resp.Message, resp.Code)}
	}

	receipt := &types.TxReceipt{
		TransactionID: resp.TxId,
		BlockHeight:   resp.TxBlockHeight,
	}
	if resp.ContractResult != nil && len(resp.ContractResult.Result) > 0 {
		receipt.Output = json.RawMessage(resp.ContractResult.Result)
	}
	return receipt, nil
}

// Query executes a read-only contract operation and returns the raw result.
func (c *Client) Query(ctx context.Context, op string, input map[string]any) (json.RawMessage, error) {
	kvs, err := toKeyValuePairs(input)
	if err != nil {
		return nil, err
	}

	_, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	resp, err := c.sdkClient.QueryContract(c.cfg.ContractName, op, kvs, -1)
	if err != nil {
		return nil, &types.UpstreamError{Message: fmt.Sprintf("SDK query failed: %v", err)}
	}
	if resp.Code != common.TxStatusCode_SUCCESS {
		return nil, &types.UpstreamError{Message: fmt.Sprintf("contract query failed: %s (code: %d)", resp.Message, resp.Code)}
	}
	if resp.ContractResult == nil {
		return nil, &types.UpstreamError{Message: fmt.Sprintf("contract query returned nil result (tx: %s)", resp.TxId)}
	}
	return json.RawMessage(resp.ContractResult.Result), nil
}

func (c *Client) timeout() time.Duration {
	if c.cfg.TimeoutSeconds > 0 {
		return time.Duration(c.cfg.TimeoutSeconds) * time.Second
	}
	return 15 * time.Second
}

func toKeyValuePairs(input map[string]any) ([]*common.KeyValuePair, error) {
	kvs := make([]*common.KeyValuePair, 0, len(input))
	for k, v := range input {
		var val []byte
		switch tv := v.(type) {
		case string:
			val = []byte(tv)
		default:
			b, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("failed to encode contract parameter '%s': %w", k, err)
			}
			val = b
		}
		kvs = append(kvs, &common.KeyValuePair{Key: k, Value: val})
	}
	return kvs, nil
}

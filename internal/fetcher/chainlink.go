package fetcher

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const aggregatorV3ABIJSON = `[
	{"inputs":[],"name":"latestRoundData","outputs":[
		{"internalType":"uint80","name":"roundId","type":"uint80"},
		{"internalType":"int256","name":"answer","type":"int256"},
		{"internalType":"uint256","name":"startedAt","type":"uint256"},
		{"internalType":"uint256","name":"updatedAt","type":"uint256"},
		{"internalType":"uint80","name":"answeredInRound","type":"uint80"}],
	 "stateMutability":"view","type":"function"},
	{"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],
	 "stateMutability":"view","type":"function"}
]`

var aggregatorV3ABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(aggregatorV3ABIJSON))
	if err != nil {
		panic("failed to parse AggregatorV3 ABI: " + err.Error())
	}
	aggregatorV3ABI = parsed
}

// ChainlinkOptions parameterise the on-chain price fallback.
type ChainlinkOptions struct {
	RPCURL  string
	Timeout time.Duration
	// Feeds maps a symbol to its AggregatorV3 price feed address.
	Feeds map[string]string
}

// Chainlink reads spot prices from Chainlink AggregatorV3 feeds. Feeds carry
// no traded volume, so fallback quotes report zero volume and degrade the
// volume channel for that cycle.
type Chainlink struct {
	opts   ChainlinkOptions
	logger zerolog.Logger

	mu     sync.Mutex
	client *ethclient.Client
}

// NewChainlink constructs the on-chain fetcher. The RPC connection is dialed
// lazily on first use.
func NewChainlink(opts ChainlinkOptions, logger zerolog.Logger) *Chainlink {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Chainlink{
		opts:   opts,
		logger: logger.With().Str("component", "chainlink_fetcher").Logger(),
	}
}

func (c *Chainlink) getClient(ctx context.Context) (*ethclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}
	if c.opts.RPCURL == "" {
		return nil, errors.New("chainlink rpc_url not configured")
	}
	client, err := ethclient.DialContext(ctx, c.opts.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial ethereum rpc: %w", err)
	}
	c.client = client
	return client, nil
}

// Fetch resolves the symbol's configured feed and reads latestRoundData.
func (c *Chainlink) Fetch(ctx context.Context, symbol string) (Quote, error) {
	feedHex, ok := c.opts.Feeds[strings.ToUpper(symbol)]
	if !ok {
		return Quote{}, fmt.Errorf("no chainlink feed configured for %s", symbol)
	}
	if !common.IsHexAddress(feedHex) {
		return Quote{}, fmt.Errorf("invalid chainlink feed address %q", feedHex)
	}
	feed := common.HexToAddress(feedHex)

	client, err := c.getClient(ctx)
	if err != nil {
		return Quote{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	decimals, err := c.callUint8(ctx, client, feed, "decimals")
	if err != nil {
		return Quote{}, fmt.Errorf("read feed decimals: %w", err)
	}

	answer, err := c.callLatestAnswer(ctx, client, feed)
	if err != nil {
		return Quote{}, fmt.Errorf("read latest round: %w", err)
	}
	if answer.Sign() <= 0 {
		return Quote{}, fmt.Errorf("feed %s returned non-positive answer", feedHex)
	}

	price := decimal.NewFromBigInt(answer, -int32(decimals))
	c.logger.Debug().Str("symbol", symbol).Str("price", price.String()).Msg("fallback quote from chainlink feed")

	return Quote{Symbol: symbol, Price: price, Volume: decimal.Zero, Source: "chainlink"}, nil
}

func (c *Chainlink) callUint8(ctx context.Context, client *ethclient.Client, feed common.Address, method string) (uint8, error) {
	data, err := aggregatorV3ABI.Pack(method)
	if err != nil {
		return 0, err
	}
	raw, err := client.CallContract(ctx, ethereum.CallMsg{To: &feed, Data: data}, nil)
	if err != nil {
		return 0, err
	}
	values, err := aggregatorV3ABI.Unpack(method, raw)
	if err != nil {
		return 0, err
	}
	if len(values) != 1 {
		return 0, fmt.Errorf("unexpected %s output arity %d", method, len(values))
	}
	out, ok := values[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unexpected %s output type %T", method, values[0])
	}
	return out, nil
}

func (c *Chainlink) callLatestAnswer(ctx context.Context, client *ethclient.Client, feed common.Address) (*big.Int, error) {
	data, err := aggregatorV3ABI.Pack("latestRoundData")
	if err != nil {
		return nil, err
	}
	raw, err := client.CallContract(ctx, ethereum.CallMsg{To: &feed, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	values, err := aggregatorV3ABI.Unpack("latestRoundData", raw)
	if err != nil {
		return nil, err
	}
	if len(values) < 2 {
		return nil, fmt.Errorf("unexpected latestRoundData output arity %d", len(values))
	}
	answer, ok := values[1].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected answer type %T", values[1])
	}
	return answer, nil
}

var _ MarketDataFetcher = (*Chainlink)(nil)

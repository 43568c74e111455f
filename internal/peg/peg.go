package peg

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/djkazic/plainchain/internal/types"
	"github.com/djkazic/plainchain/pkg/util"
)

// sidechainDeposit is one record returned by bitcoind's
// listsidechaindepositsbyblock. The burn output's value is a running total
// across successive deposit records, so the value actually deposited is the
// difference against the previous record's total.
type sidechainDeposit struct {
	TxHex       string `json:"txhex"`
	NBurnIndex  int    `json:"nburnindex"`
	HashBlock   string `json:"hashblock"`
	StrDest     string `json:"strdest"`
}

// GetMainchainTip returns the hash of the mainchain's current best block.
func (c *Client) GetMainchainTip(ctx context.Context) (types.MainBlockHash, error) {
	result, err := c.call(ctx, "getbestblockhash")
	if err != nil {
		return types.MainBlockHash{}, fmt.Errorf("getbestblockhash: %w", err)
	}
	var hashHex string
	if err := json.Unmarshal(result, &hashHex); err != nil {
		return types.MainBlockHash{}, fmt.Errorf("unmarshal best block hash: %w", err)
	}
	hash, err := util.HexToHash(hashHex)
	if err != nil {
		return types.MainBlockHash{}, fmt.Errorf("parse best block hash: %w", err)
	}
	return types.MainBlockHash(hash), nil
}

// mainBlockHashHex renders a MainBlockHash in Bitcoin's display byte order.
func mainBlockHashHex(hash types.MainBlockHash) string {
	return util.HashToHex([32]byte(hash))
}

// VerifyBMM confirms that header.PrevMainHash's successor on the mainchain
// committed header's own hash via verifybmm. It returns an error if no such
// commitment exists.
func (c *Client) VerifyBMM(ctx context.Context, header types.Header) error {
	blockInfo, err := c.getBlock(ctx, mainBlockHashHex(header.PrevMainHash))
	if err != nil {
		return fmt.Errorf("getblock %x: %w", header.PrevMainHash, err)
	}
	if blockInfo.NextBlockHash == "" {
		return ErrNoNextBlock
	}
	sideHash := header.Hash()
	_, err = c.call(ctx, "verifybmm", blockInfo.NextBlockHash, hex.EncodeToString(sideHash[:]), c.sidechainNumber)
	if err != nil {
		return fmt.Errorf("verifybmm: %w", err)
	}
	return nil
}

type blockInfo struct {
	NextBlockHash string `json:"nextblockhash"`
}

func (c *Client) getBlock(ctx context.Context, hashHex string) (blockInfo, error) {
	result, err := c.call(ctx, "getblock", hashHex, 1)
	if err != nil {
		return blockInfo{}, err
	}
	var info blockInfo
	if err := json.Unmarshal(result, &info); err != nil {
		return blockInfo{}, fmt.Errorf("unmarshal block info: %w", err)
	}
	return info, nil
}

// AttemptBMM broadcasts a BMM critical-data transaction committing
// header's hash, paying amount satoshis as the miner bribe. height is the
// mainchain block height the commitment is intended for.
func (c *Client) AttemptBMM(ctx context.Context, amount uint64, height uint32, header types.Header) error {
	sideHash := header.Hash()
	prevMainHex := mainBlockHashHex(header.PrevMainHash)
	prevBytesHex := prevMainHex
	if len(prevBytesHex) > 8 {
		prevBytesHex = prevBytesHex[len(prevBytesHex)-8:]
	}
	result, err := c.call(ctx, "createbmmcriticaldatatx",
		float64(amount)/1e8, height, hex.EncodeToString(sideHash[:]), c.sidechainNumber, prevBytesHex)
	if err != nil {
		return fmt.Errorf("createbmmcriticaldatatx: %w", err)
	}
	var response struct {
		Txid struct {
			Txid string `json:"txid"`
		} `json:"txid"`
	}
	if err := json.Unmarshal(result, &response); err != nil {
		return fmt.Errorf("unmarshal createbmmcriticaldatatx response: %w", err)
	}
	if response.Txid.Txid == "" {
		return fmt.Errorf("createbmmcriticaldatatx: empty txid in response")
	}
	return nil
}

// BroadcastWithdrawalBundle submits a withdrawal bundle's raw transaction
// to the mainchain for this client's sidechain slot.
func (c *Client) BroadcastWithdrawalBundle(ctx context.Context, bundle types.WithdrawalBundle) error {
	rawtx := hex.EncodeToString(bundle.Transaction.Serialize())
	_, err := c.call(ctx, "receivewithdrawalbundle", c.sidechainNumber, rawtx)
	if err != nil {
		return fmt.Errorf("receivewithdrawalbundle: %w", err)
	}
	return nil
}

// GetTwoWayPegData fetches every deposit between start (exclusive) and end
// (inclusive), plus the settled status of every previously broadcast
// withdrawal bundle.
func (c *Client) GetTwoWayPegData(ctx context.Context, end types.MainBlockHash, start *types.MainBlockHash) (types.TwoWayPegData, error) {
	deposits, depositBlockHash, err := c.getDepositOutputs(ctx, end, start)
	if err != nil {
		return types.TwoWayPegData{}, err
	}
	statuses, err := c.getWithdrawalBundleStatuses(ctx)
	if err != nil {
		return types.TwoWayPegData{}, err
	}
	return types.TwoWayPegData{
		Deposits:         deposits,
		DepositBlockHash: depositBlockHash,
		BundleStatuses:   statuses,
	}, nil
}

func (c *Client) getDepositOutputs(ctx context.Context, end types.MainBlockHash, start *types.MainBlockHash) (map[types.OutPoint]types.Deposit, *types.MainBlockHash, error) {
	params := []interface{}{c.sidechainNumber, mainBlockHashHex(end)}
	if start != nil {
		params = append(params, mainBlockHashHex(*start))
	} else {
		params = append(params, nil)
	}
	result, err := c.call(ctx, "listsidechaindepositsbyblock", params...)
	if err != nil {
		return nil, nil, fmt.Errorf("listsidechaindepositsbyblock: %w", err)
	}
	var deposits []sidechainDeposit
	if err := json.Unmarshal(result, &deposits); err != nil {
		return nil, nil, fmt.Errorf("unmarshal deposits: %w", err)
	}

	var lastBlockHash *types.MainBlockHash
	var lastTotal uint64
	outputs := make(map[types.OutPoint]types.Deposit)
	for _, deposit := range deposits {
		rawTx, err := hex.DecodeString(deposit.TxHex)
		if err != nil {
			return nil, nil, fmt.Errorf("decode deposit tx hex: %w", err)
		}
		mainTxid := types.MainTxid(util.DoubleSHA256(rawTx))

		if start != nil && deposit.HashBlock == mainBlockHashHex(*start) {
			lastTotal = depositCumulativeValue(rawTx, deposit.NBurnIndex)
			continue
		}
		total := depositCumulativeValue(rawTx, deposit.NBurnIndex)
		if total < lastTotal {
			lastTotal = total
			continue
		}
		value := total - lastTotal
		lastTotal = total

		hashBlock, err := util.HexToHash(deposit.HashBlock)
		if err != nil {
			return nil, nil, fmt.Errorf("parse deposit block hash: %w", err)
		}
		blockHash := types.MainBlockHash(hashBlock)
		lastBlockHash = &blockHash

		outpoint := types.DepositOutPoint(mainTxid, uint32(deposit.NBurnIndex))
		outputs[outpoint] = types.Deposit{Address: deposit.StrDest, Value: value}
	}
	return outputs, lastBlockHash, nil
}

// depositCumulativeValue reads the burn output's value out of a raw
// legacy mainchain transaction, matching the minimal wire layout this
// module writes in types.MainTx.Serialize.
func depositCumulativeValue(rawTx []byte, burnIndex int) uint64 {
	tx, err := parseMainTx(rawTx)
	if err != nil || burnIndex >= len(tx.Outputs) {
		return 0
	}
	return uint64(tx.Outputs[burnIndex].Value)
}

func (c *Client) getWithdrawalBundleStatuses(ctx context.Context) (map[types.MainTxid]types.WithdrawalBundleStatus, error) {
	statuses := make(map[types.MainTxid]types.WithdrawalBundleStatus)

	spentResult, err := c.call(ctx, "listspentwithdrawals")
	if err != nil {
		return nil, fmt.Errorf("listspentwithdrawals: %w", err)
	}
	var spent []struct {
		Hash        string `json:"hash"`
		NSidechain  uint8  `json:"nsidechain"`
	}
	if err := json.Unmarshal(spentResult, &spent); err != nil {
		return nil, fmt.Errorf("unmarshal spent withdrawals: %w", err)
	}
	for _, s := range spent {
		if s.NSidechain != c.sidechainNumber {
			continue
		}
		hash, err := util.HexToHash(s.Hash)
		if err != nil {
			continue
		}
		statuses[types.MainTxid(hash)] = types.WithdrawalBundleConfirmed
	}

	failedResult, err := c.call(ctx, "listfailedwithdrawals")
	if err != nil {
		return nil, fmt.Errorf("listfailedwithdrawals: %w", err)
	}
	var failed []struct {
		Hash string `json:"hash"`
	}
	if err := json.Unmarshal(failedResult, &failed); err != nil {
		return nil, fmt.Errorf("unmarshal failed withdrawals: %w", err)
	}
	for _, f := range failed {
		hash, err := util.HexToHash(f.Hash)
		if err != nil {
			continue
		}
		statuses[types.MainTxid(hash)] = types.WithdrawalBundleFailed
	}
	return statuses, nil
}

// Generate mines count blocks on a regtest mainchain, for test harnesses.
func (c *Client) Generate(ctx context.Context, count int) error {
	_, err := c.call(ctx, "generate", count)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	return nil
}

// GetNewAddress asks the mainchain wallet for a fresh receiving address,
// for test harnesses that need to fund a regtest deposit.
func (c *Client) GetNewAddress(ctx context.Context) (string, error) {
	result, err := c.call(ctx, "getnewaddress")
	if err != nil {
		return "", fmt.Errorf("getnewaddress: %w", err)
	}
	var addr string
	if err := json.Unmarshal(result, &addr); err != nil {
		return "", fmt.Errorf("unmarshal address: %w", err)
	}
	return addr, nil
}

// CreateSidechainDeposit asks the mainchain wallet to burn amount satoshis
// to this client's sidechain slot, destined for sidechainAddress.
func (c *Client) CreateSidechainDeposit(ctx context.Context, sidechainAddress string, amount, fee uint64) error {
	_, err := c.call(ctx, "createsidechaindeposit",
		c.sidechainNumber, sidechainAddress, float64(amount)/1e8, float64(fee)/1e8)
	if err != nil {
		return fmt.Errorf("createsidechaindeposit: %w", err)
	}
	return nil
}

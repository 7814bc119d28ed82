package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// CLOB exchanges that pull outcome tokens when a sell order matches.
const (
	CTFExchangeAddress        = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"
	NegRiskCTFExchangeAddress = "0xC5d563A36AE78145C45a50134d48A1215220f80a"
)

//nolint:gochecknoglobals // parsed once
var erc1155ABI = mustParseABI(`[
	{
		"name": "setApprovalForAll",
		"type": "function",
		"inputs": [
			{"name": "operator", "type": "address"},
			{"name": "approved", "type": "bool"}
		],
		"outputs": []
	},
	{
		"name": "isApprovedForAll",
		"type": "function",
		"inputs": [
			{"name": "owner", "type": "address"},
			{"name": "operator", "type": "address"}
		],
		"outputs": [{"name": "", "type": "bool"}]
	}
]`)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic("abi parse: " + err.Error())
	}
	return parsed
}

// ApprovedForAll reports whether operator may move owner's outcome tokens.
func (c *Client) ApprovedForAll(ctx context.Context, owner, operator common.Address) (approved bool, err error) {
	data, err := erc1155ABI.Pack("isApprovedForAll", owner, operator)
	if err != nil {
		return false, fmt.Errorf("pack isApprovedForAll: %w", err)
	}

	token := common.HexToAddress(CTFAddress)
	result, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return false, fmt.Errorf("call isApprovedForAll: %w", err)
	}

	vals, err := erc1155ABI.Unpack("isApprovedForAll", result)
	if err != nil {
		return false, fmt.Errorf("unpack isApprovedForAll: %w", err)
	}
	if len(vals) == 0 {
		return false, errors.New("empty isApprovedForAll response")
	}

	approved, ok := vals[0].(bool)
	if !ok {
		return false, fmt.Errorf("unexpected isApprovedForAll type %T", vals[0])
	}

	return approved, nil
}

// EnsureApprovalForAll grants operator access to the account's outcome tokens.
// Returns the approval tx hash, or "" when already approved.
func (c *Client) EnsureApprovalForAll(ctx context.Context, operator common.Address) (txHash string, err error) {
	key, err := c.keys.Key()
	if err != nil {
		return "", fmt.Errorf("signing key: %w", err)
	}

	approved, err := c.ApprovedForAll(ctx, crypto.PubkeyToAddress(key.PublicKey), operator)
	if err != nil {
		return "", err
	}
	if approved {
		c.logger.Debug("operator-already-approved", zap.String("operator", operator.Hex()))
		return "", nil
	}

	data, err := erc1155ABI.Pack("setApprovalForAll", operator, true)
	if err != nil {
		return "", fmt.Errorf("pack setApprovalForAll: %w", err)
	}

	c.logger.Info("operator-approving", zap.String("operator", operator.Hex()))

	return c.sendAndWait(ctx, key, common.HexToAddress(CTFAddress), data, approvalGasLimit, "approve")
}

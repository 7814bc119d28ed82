package testutil

import (
	"crypto/ecdsa"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mselser95/polymarket-hedge/pkg/types"
)

// TestAddress is the account used across tests.
var TestAddress = common.HexToAddress("0x1111111111111111111111111111111111111111") //nolint:gochecknoglobals // test fixture

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

// TestKey returns a fixed signing key.
func TestKey() *ecdsa.PrivateKey {
	key, err := crypto.HexToECDSA(testKeyHex)
	if err != nil {
		panic(err)
	}
	return key
}

// CreateTestMarket creates a binary test market with YES and NO tokens.
func CreateTestMarket(id string, question string, yesPrice float64) *types.Market {
	return &types.Market{
		ID:                id,
		Slug:              "market-" + id,
		Question:          question,
		ConditionID:       "0x" + common.Bytes2Hex(common.LeftPadBytes([]byte(id), 32)),
		Active:            true,
		OrderMinSize:      5,
		OrderTickSize:     0.01,
		Outcomes:          `["Yes", "No"]`,
		ClobTokens:        `["` + id + `1", "` + id + `2"]`,
		OutcomePricesJSON: `["` + formatPrice(yesPrice) + `", "` + formatPrice(1-yesPrice) + `"]`,
		Tokens: []types.Token{
			{TokenID: id + "1", Outcome: "Yes", Price: yesPrice},
			{TokenID: id + "2", Outcome: "No", Price: 1 - yesPrice},
		},
	}
}

// CreateTestRequest creates a request for a target/cover pair with the given amount.
func CreateTestRequest(amount float64) *types.ExecutionRequest {
	return &types.ExecutionRequest{
		PairID:            "pair-1",
		TargetMarketID:    "100",
		TargetPosition:    types.PositionYes,
		CoverMarketID:     "200",
		CoverPosition:     types.PositionNo,
		AmountPerPosition: amount,
	}
}

// CreateTestPair creates the quoted pair matching CreateTestRequest.
func CreateTestPair(targetPrice, coverPrice float64) *types.HedgePair {
	return &types.HedgePair{
		PairID: "pair-1",
		Target: types.PairLeg{
			MarketID: "100",
			Position: types.PositionYes,
			Question: "Will the target resolve YES?",
			Price:    targetPrice,
		},
		Cover: types.PairLeg{
			MarketID: "200",
			Position: types.PositionNo,
			Question: "Will the cover resolve YES?",
			Price:    coverPrice,
		},
	}
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', 2, 64)
}

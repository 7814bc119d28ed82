package types

import (
	"encoding/json"
	"strconv"
)

// Market represents a Polymarket market from the Gamma API.
type Market struct {
	ID                string  `json:"id"`
	Question          string  `json:"question"`
	Slug              string  `json:"slug"`
	ConditionID       string  `json:"conditionId"`
	Closed            bool    `json:"closed"`
	Active            bool    `json:"active"`
	NegRisk           bool    `json:"negRisk"`
	OrderMinSize      float64 `json:"orderMinSize"`
	OrderTickSize     float64 `json:"orderPriceMinTickSize"`
	Tokens            []Token `json:"-"` // Populated from outcomes + clobTokenIds + outcomePrices
	Outcomes          string  `json:"outcomes"`      // JSON string: "[\"Yes\", \"No\"]"
	ClobTokens        string  `json:"clobTokenIds"`  // JSON string: "[\"token1\", \"token2\"]"
	OutcomePricesJSON string  `json:"outcomePrices"` // JSON string: "[\"0.45\", \"0.55\"]"
}

// UnmarshalJSON custom unmarshaler to parse outcomes, clobTokenIds and outcomePrices into Tokens.
func (m *Market) UnmarshalJSON(data []byte) error {
	type Alias Market
	aux := &struct {
		*Alias
	}{
		Alias: (*Alias)(m),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if m.Outcomes == "" || m.ClobTokens == "" {
		return nil
	}

	var outcomes []string
	var tokenIDs []string
	if err := json.Unmarshal([]byte(m.Outcomes), &outcomes); err != nil {
		return nil //nolint:nilerr // malformed outcome lists leave Tokens empty
	}
	if err := json.Unmarshal([]byte(m.ClobTokens), &tokenIDs); err != nil {
		return nil //nolint:nilerr // malformed token lists leave Tokens empty
	}

	var prices []string
	if m.OutcomePricesJSON != "" {
		_ = json.Unmarshal([]byte(m.OutcomePricesJSON), &prices)
	}

	m.Tokens = make([]Token, 0, len(outcomes))
	for i, outcome := range outcomes {
		if i >= len(tokenIDs) {
			break
		}
		token := Token{
			TokenID: tokenIDs[i],
			Outcome: outcome,
		}
		if i < len(prices) {
			price, err := strconv.ParseFloat(prices[i], 64)
			if err == nil {
				token.Price = price
			}
		}
		m.Tokens = append(m.Tokens, token)
	}

	return nil
}

// Token represents a market outcome token (YES or NO).
type Token struct {
	TokenID string  `json:"token_id"`
	Outcome string  `json:"outcome"`
	Price   float64 `json:"price,omitempty"`
}

// GetTokenByOutcome returns the token for a specific outcome (YES or NO).
// Case-insensitive matching (accepts YES/Yes, NO/No).
func (m *Market) GetTokenByOutcome(outcome Position) *Token {
	for i := range m.Tokens {
		if ParsePosition(m.Tokens[i].Outcome) == outcome {
			return &m.Tokens[i]
		}
	}

	// Binary markets list YES first when outcome labels are non-standard.
	if len(m.Tokens) == 2 {
		if outcome == PositionYes {
			return &m.Tokens[0]
		}
		if outcome == PositionNo {
			return &m.Tokens[1]
		}
	}

	return nil
}

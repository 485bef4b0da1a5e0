package server

import (
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"signerd/internal/policy"
	"signerd/pkg/cryptoutil"
)

// intentRequest is the accepted wire surface of an intent: target,
// calldata, value, and an optional chain hint. approvalCode rides along on
// /sign retries. Every other field is logged and discarded — nonce, gas,
// fees, or signatures in an intent are a security smell and must never
// influence the op the daemon builds.
type intentRequest struct {
	Target       string `json:"target"`
	Calldata     string `json:"calldata"`
	Value        string `json:"value"`
	ChainHint    string `json:"chainHint,omitempty"`
	ApprovalCode string `json:"approvalCode,omitempty"`
}

var intentFields = map[string]bool{
	"target": true, "calldata": true, "value": true, "chainHint": true, "approvalCode": true,
}

// parseIntent decodes body into a policy.Intent pinned to homeChainID.
// The value must fit a uint64 exactly — anything wider is
// rejected at the edge rather than saturated, since ~18.4 ETH already
// dwarfs every profile cap.
func parseIntent(body []byte, homeChainID uint64) (policy.Intent, string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return policy.Intent{}, "", fmt.Errorf("malformed intent JSON: %w", err)
	}

	var extras []string
	for k := range raw {
		if !intentFields[k] {
			extras = append(extras, k)
		}
	}
	if len(extras) > 0 {
		sort.Strings(extras)
		log.Printf("⚠️  Intent carried unexpected fields, discarding: %s", strings.Join(extras, ", "))
	}

	var req intentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return policy.Intent{}, "", fmt.Errorf("malformed intent: %w", err)
	}

	if !common.IsHexAddress(req.Target) {
		return policy.Intent{}, "", fmt.Errorf("target is not a valid address")
	}

	value := new(big.Int)
	if req.Value != "" {
		if _, ok := value.SetString(req.Value, 10); !ok {
			return policy.Intent{}, "", fmt.Errorf("value is not a decimal integer string")
		}
	}
	if !cryptoutil.FitsUint64(value) {
		return policy.Intent{}, "", fmt.Errorf("value out of range")
	}

	calldata, err := cryptoutil.HexDecode(req.Calldata)
	if err != nil {
		return policy.Intent{}, "", fmt.Errorf("calldata is not valid hex: %w", err)
	}

	if req.ChainHint != "" {
		hint := new(big.Int)
		if _, ok := hint.SetString(req.ChainHint, 10); !ok {
			return policy.Intent{}, "", fmt.Errorf("chainHint is not a decimal integer string")
		}
		if !hint.IsUint64() || hint.Uint64() != homeChainID {
			return policy.Intent{}, "", fmt.Errorf("chainHint %s does not match the active chain %d", req.ChainHint, homeChainID)
		}
	}

	return policy.Intent{
		ChainID:  homeChainID,
		Target:   common.HexToAddress(req.Target).Hex(),
		Value:    value,
		Calldata: calldata,
	}, req.ApprovalCode, nil
}

// formatEth renders wei as a fixed 4-decimal ETH amount for summaries.
func formatEth(wei *big.Int) string {
	if wei == nil {
		wei = new(big.Int)
	}
	whole := new(big.Int).Div(wei, big.NewInt(1_000_000_000_000_000_000))
	rem := new(big.Int).Mod(wei, big.NewInt(1_000_000_000_000_000_000))
	frac := new(big.Int).Div(rem, big.NewInt(100_000_000_000_000)) // 1e14 → 4 decimals
	return fmt.Sprintf("%s.%04d", whole.String(), frac.Int64())
}

// intentSummary is the one-line human description an approval dialog or
// notification shows for an intent.
func intentSummary(in policy.Intent) string {
	if len(in.Calldata) == 0 {
		return fmt.Sprintf("Transfer %s ETH to %s", formatEth(in.Value), in.Target)
	}
	return fmt.Sprintf("Call %s with %d bytes of calldata (%s ETH attached)", in.Target, len(in.Calldata), formatEth(in.Value))
}

package cmd

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/polymarket-hedge/internal/chain"
)

// TestApproveCommand_Structure tests command is properly configured
func TestApproveCommand_Structure(t *testing.T) {
	if approveCmd == nil {
		t.Fatal("approveCmd is nil")
	}

	if approveCmd.Use != "approve" {
		t.Errorf("expected Use='approve', got '%s'", approveCmd.Use)
	}

	if approveCmd.RunE == nil {
		t.Error("RunE function is nil")
	}

	for _, name := range []string{"password", "skip-sell"} {
		if approveCmd.Flags().Lookup(name) == nil {
			t.Errorf("%s flag not defined", name)
		}
	}
}

func TestRequiredApprovals(t *testing.T) {
	all := requiredApprovals(false)
	if len(all) != 5 {
		t.Fatalf("expected 5 approvals, got %d", len(all))
	}

	buyOnly := requiredApprovals(true)
	if len(buyOnly) != 2 {
		t.Fatalf("expected 2 approvals with skip-sell, got %d", len(buyOnly))
	}
	for _, a := range buyOnly {
		if a.erc1155 {
			t.Errorf("%s should not be an outcome token approval", a.name)
		}
	}

	for _, a := range all {
		if !common.IsHexAddress(a.address) {
			t.Errorf("%s has invalid address %s", a.name, a.address)
		}
	}
}

type fakeApprover struct {
	allowanceCalls []common.Address
	operatorCalls  []common.Address
	threshold      *big.Int
	failOn         common.Address
}

func (f *fakeApprover) EnsureAllowance(ctx context.Context, spender common.Address, units *big.Int) (string, error) {
	f.allowanceCalls = append(f.allowanceCalls, spender)
	f.threshold = units
	if spender == f.failOn {
		return "", errors.New("reverted")
	}
	return "", nil
}

func (f *fakeApprover) EnsureApprovalForAll(ctx context.Context, operator common.Address) (string, error) {
	f.operatorCalls = append(f.operatorCalls, operator)
	if operator == f.failOn {
		return "", errors.New("reverted")
	}
	return "0xabc", nil
}

func TestRunApprovals(t *testing.T) {
	fake := &fakeApprover{}
	var out bytes.Buffer

	err := runApprovals(context.Background(), &out, fake, requiredApprovals(false))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(fake.allowanceCalls) != 2 || len(fake.operatorCalls) != 3 {
		t.Fatalf("expected 2 allowance and 3 operator approvals, got %d and %d",
			len(fake.allowanceCalls), len(fake.operatorCalls))
	}

	if fake.threshold.BitLen() <= 64 {
		t.Errorf("allowance threshold should exceed any realistic amount, got %s", fake.threshold)
	}

	text := out.String()
	if !strings.Contains(text, "already approved") {
		t.Errorf("expected skipped allowance in output:\n%s", text)
	}
	if !strings.Contains(text, "polygonscan.com/tx/0xabc") {
		t.Errorf("expected tx link in output:\n%s", text)
	}
}

func TestRunApprovals_StopsOnError(t *testing.T) {
	fake := &fakeApprover{failOn: common.HexToAddress(chain.CTFExchangeAddress)}
	var out bytes.Buffer

	err := runApprovals(context.Background(), &out, fake, requiredApprovals(false))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "CTF Exchange") {
		t.Errorf("error should name the approval, got %v", err)
	}
	if len(fake.operatorCalls) != 1 {
		t.Errorf("expected to stop after the failing approval, got %d operator calls", len(fake.operatorCalls))
	}
}

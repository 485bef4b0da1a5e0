package server

import (
	"math/big"
	"strings"
	"testing"
)

func TestParseIntentMinimal(t *testing.T) {
	in, code, err := parseIntent([]byte(`{"target":"0xCAFE000000000000000000000000000000000000","calldata":"0x","value":"1000"}`), 8453)
	if err != nil {
		t.Fatal(err)
	}
	if code != "" {
		t.Fatalf("expected no approval code, got %q", code)
	}
	if in.ChainID != 8453 || in.Value.Int64() != 1000 || len(in.Calldata) != 0 {
		t.Fatalf("unexpected intent: %+v", in)
	}
}

func TestParseIntentDiscardsExtraFields(t *testing.T) {
	in, _, err := parseIntent([]byte(`{"target":"0xCAFE000000000000000000000000000000000000","calldata":"0x","value":"5","nonce":"42","signature":"0xff","gasLimit":"999999"}`), 1)
	if err != nil {
		t.Fatalf("extra fields must be discarded, not rejected: %v", err)
	}
	if in.Value.Int64() != 5 {
		t.Fatalf("value corrupted by extra fields: %v", in.Value)
	}
}

func TestParseIntentRejectsBadTarget(t *testing.T) {
	_, _, err := parseIntent([]byte(`{"target":"not-an-address","calldata":"0x","value":"1"}`), 1)
	if err == nil {
		t.Fatalf("expected invalid target to be rejected")
	}
}

func TestParseIntentRejectsOversizedValue(t *testing.T) {
	huge := new(big.Int).Lsh(big.NewInt(1), 70).String()
	_, _, err := parseIntent([]byte(`{"target":"0xCAFE000000000000000000000000000000000000","calldata":"0x","value":"`+huge+`"}`), 1)
	if err == nil || !strings.Contains(err.Error(), "out of range") {
		t.Fatalf("expected out-of-range rejection, got %v", err)
	}
}

func TestParseIntentChainHintMismatch(t *testing.T) {
	_, _, err := parseIntent([]byte(`{"target":"0xCAFE000000000000000000000000000000000000","calldata":"0x","value":"1","chainHint":"1"}`), 8453)
	if err == nil {
		t.Fatalf("expected chainHint mismatch to be rejected")
	}
}

func TestParseIntentChainHintMatchAccepted(t *testing.T) {
	in, _, err := parseIntent([]byte(`{"target":"0xCAFE000000000000000000000000000000000000","calldata":"0x","value":"1","chainHint":"8453"}`), 8453)
	if err != nil {
		t.Fatal(err)
	}
	if in.ChainID != 8453 {
		t.Fatalf("unexpected chain id %d", in.ChainID)
	}
}

func TestFormatEth(t *testing.T) {
	cases := []struct {
		wei  string
		want string
	}{
		{"10000000000000000", "0.0100"},
		{"60000000000000000", "0.0600"},
		{"1000000000000000000", "1.0000"},
		{"0", "0.0000"},
		{"1", "0.0000"},
	}
	for _, c := range cases {
		wei, _ := new(big.Int).SetString(c.wei, 10)
		if got := formatEth(wei); got != c.want {
			t.Errorf("formatEth(%s) = %q, want %q", c.wei, got, c.want)
		}
	}
}

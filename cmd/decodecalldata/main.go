// Command decodecalldata decodes a hex calldata blob offline, using the
// same decoder the daemon's policy engine runs, so an operator can preview
// how an intent will be classified without touching the socket.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"os"

	"signerd/internal/calldata"
	"signerd/internal/registry"
	"signerd/pkg/cryptoutil"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "usage: %s <target-address> <0x-calldata> [chain-id]\n", os.Args[0])
		os.Exit(2)
	}
	target := os.Args[1]
	raw, err := cryptoutil.HexDecode(os.Args[2])
	if err != nil {
		log.Fatalf("❌ Invalid calldata hex: %v", err)
	}
	chainID := uint64(1)
	if len(os.Args) > 3 {
		if _, err := fmt.Sscanf(os.Args[3], "%d", &chainID); err != nil {
			log.Fatalf("❌ Invalid chain id: %v", err)
		}
	}

	d := calldata.Decode(raw, target, big.NewInt(0), chainID, registry.NewStablecoinRegistry())

	if blocked, reason := calldata.IsBlockedSelector(raw); blocked {
		fmt.Printf("⛔ %s\n", reason)
	}

	out, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	fmt.Println(string(out))
}

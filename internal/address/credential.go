// Package address decodes Cardano Shelley addresses into canonical stake
// credentials. The stake credential is the wallet identity key for the whole
// graph: every payment address delegating to the same stake key is treated as
// one wallet.
package address

import (
	"encoding/hex"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"go.uber.org/zap"

	"github.com/LavonTMCQ/bundledatabase-sub001/internal/logger"
)

const credentialHashLen = 28

// Shelley header address types (high nibble of the first byte).
const (
	typeBaseKeyKey       = 0x0 // payment keyhash / stake keyhash
	typeBaseScriptKey    = 0x1 // payment scripthash / stake keyhash
	typeBaseKeyScript    = 0x2 // payment keyhash / stake scripthash
	typeBaseScriptScript = 0x3 // payment scripthash / stake scripthash
	typePointerKey       = 0x4
	typePointerScript    = 0x5
	typeEnterpriseKey    = 0x6
	typeEnterpriseScript = 0x7
	typeRewardKey        = 0xe
	typeRewardScript     = 0xf
)

// ResolveStakeCredential decodes a bech32 payment address and returns the
// lowercase hex stake credential it delegates with, or ok=false when the
// address carries no key-based stake component (enterprise, pointer and
// script-stake addresses, Byron addresses, malformed input). Decode failures
// are logged and never fatal.
func ResolveStakeCredential(addr string) (string, bool) {
	raw, ok := decodeBech32(addr, "addr")
	if !ok {
		return "", false
	}

	// Header byte + payment credential + stake credential for base addresses.
	if len(raw) != 1+2*credentialHashLen {
		return "", false
	}

	switch raw[0] >> 4 {
	case typeBaseKeyKey, typeBaseScriptKey:
		return hex.EncodeToString(raw[1+credentialHashLen:]), true
	default:
		// Script-stake, pointer and enterprise addresses carry no stake key.
		return "", false
	}
}

// ResolveStakeAddress decodes a bech32 reward address (stake1...) and returns
// the lowercase hex stake credential, or ok=false for script reward addresses
// and malformed input.
func ResolveStakeAddress(addr string) (string, bool) {
	raw, ok := decodeBech32(addr, "stake")
	if !ok {
		return "", false
	}

	if len(raw) != 1+credentialHashLen {
		return "", false
	}

	if raw[0]>>4 != typeRewardKey {
		return "", false
	}

	return hex.EncodeToString(raw[1:]), true
}

// decodeBech32 decodes addr and verifies the human-readable prefix matches
// wantHRP (mainnet) or wantHRP_test.
func decodeBech32(addr, wantHRP string) ([]byte, bool) {
	hrp, data, err := bech32.DecodeNoLimit(strings.TrimSpace(addr))
	if err != nil {
		logger.Debug("failed to decode bech32 address", zap.String("address", addr), zap.Error(err))
		return nil, false
	}

	if hrp != wantHRP && hrp != wantHRP+"_test" {
		return nil, false
	}

	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		logger.Debug("failed to convert bech32 payload", zap.String("address", addr), zap.Error(err))
		return nil, false
	}

	return raw, true
}

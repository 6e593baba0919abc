package marketdata

import (
	"strings"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// ValidAddress reports whether an address is plausible for the given chain.
// Solana addresses must be 32 base58-decoded bytes; wallet addresses must
// additionally be on the ed25519 curve, while program derived addresses are
// off-curve, so only the length is enforced there. EVM chains use the 0x
// hex form. Unknown chains accept any non-empty address.
func ValidAddress(chain, address string) bool {
	if address == "" {
		return false
	}
	switch chain {
	case "solana":
		return validSolanaAddress(address)
	case "ethereum", "base", "arbitrum", "polygon", "bsc", "optimism":
		return validEVMAddress(address)
	default:
		return true
	}
}

// ValidWalletAddress is the stricter Solana check: the decoded point must
// lie on the ed25519 curve, which holds for keypair-derived addresses but
// not for PDAs.
func ValidWalletAddress(address string) bool {
	decoded, err := base58.Decode(address)
	if err != nil || len(decoded) != 32 {
		return false
	}
	return isOnCurve(decoded)
}

func validSolanaAddress(address string) bool {
	decoded, err := base58.Decode(address)
	if err != nil {
		return false
	}
	return len(decoded) == 32
}

func validEVMAddress(address string) bool {
	if !strings.HasPrefix(address, "0x") || len(address) != 42 {
		return false
	}
	for _, r := range address[2:] {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}

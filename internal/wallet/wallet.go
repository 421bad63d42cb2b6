package wallet

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"
)

// AddressPrefix is the first byte of every TRON mainnet address.
const AddressPrefix = 0x41

var ErrInvalidAddress = errors.New("invalid TRON address")

// Wallet holds a private key and its TRON address
type Wallet struct {
	PrivateKey string
	Address    string
}

// GenerateTRONWallet creates a fresh key pair and its TRON address.
func GenerateTRONWallet() (*Wallet, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}

	address, err := addressFromPublicKey(&privateKey.PublicKey)
	if err != nil {
		return nil, err
	}

	return &Wallet{
		PrivateKey: hex.EncodeToString(crypto.FromECDSA(privateKey)),
		Address:    address,
	}, nil
}

// AddressFromPrivKey returns the base58 address, the 21-byte hex address and the parsed key.
func AddressFromPrivKey(privKeyHex string) (string, string, *ecdsa.PrivateKey, error) {
	privBytes, err := hex.DecodeString(strings.TrimPrefix(privKeyHex, "0x"))
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to decode private key hex: %v", err)
	}

	privKey, err := crypto.ToECDSA(privBytes)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to convert to ECDSA: %v", err)
	}

	raw := rawAddress(&privKey.PublicKey)
	return encodeCheck(raw), hex.EncodeToString(raw), privKey, nil
}

// Base58ToHex converts a base58check address into its 21-byte hex form (41...).
func Base58ToHex(address string) (string, error) {
	raw, err := decodeCheck(address)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

// Body returns the 20 address bytes without the 0x41 prefix, as used in ABI parameters.
func Body(address string) ([]byte, error) {
	raw, err := decodeCheck(address)
	if err != nil {
		return nil, err
	}
	return raw[1:], nil
}

// HexToBase58 accepts 41-prefixed, 0x-prefixed or bare 20-byte hex addresses.
func HexToBase58(h string) (string, error) {
	h = strings.TrimPrefix(strings.ToLower(h), "0x")
	raw, err := hex.DecodeString(h)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	switch len(raw) {
	case 20:
		raw = append([]byte{AddressPrefix}, raw...)
	case 21:
		if raw[0] != AddressPrefix {
			return "", fmt.Errorf("%w: bad prefix %x", ErrInvalidAddress, raw[0])
		}
	default:
		return "", fmt.Errorf("%w: got %d bytes", ErrInvalidAddress, len(raw))
	}
	return encodeCheck(raw), nil
}

// ValidateAddress reports whether address is a well-formed base58check TRON address.
func ValidateAddress(address string) error {
	_, err := decodeCheck(address)
	return err
}

func addressFromPublicKey(pub *ecdsa.PublicKey) (string, error) {
	pubBytes := crypto.FromECDSAPub(pub)[1:]
	if len(pubBytes) != 64 {
		return "", errors.New("invalid public key length")
	}
	return encodeCheck(rawAddress(pub)), nil
}

func rawAddress(pub *ecdsa.PublicKey) []byte {
	hash := crypto.Keccak256(crypto.FromECDSAPub(pub)[1:])
	return append([]byte{AddressPrefix}, hash[12:]...)
}

// checksum is the first four bytes of double SHA-256.
func checksum(raw []byte) []byte {
	first := sha256.Sum256(raw)
	second := sha256.Sum256(first[:])
	return second[:4]
}

func encodeCheck(raw []byte) string {
	full := append(append([]byte{}, raw...), checksum(raw)...)
	return base58.Encode(full)
}

func decodeCheck(address string) ([]byte, error) {
	decoded, err := base58.Decode(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidAddress, address, err)
	}
	if len(decoded) != 25 {
		return nil, fmt.Errorf("%w: %s: got %d bytes", ErrInvalidAddress, address, len(decoded))
	}

	raw := decoded[:21]
	if raw[0] != AddressPrefix {
		return nil, fmt.Errorf("%w: %s: bad prefix", ErrInvalidAddress, address)
	}
	if !bytes.Equal(checksum(raw), decoded[21:]) {
		return nil, fmt.Errorf("%w: %s: checksum mismatch", ErrInvalidAddress, address)
	}
	return raw, nil
}

package exchange

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	mathhex "github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/vmihailenco/msgpack/v5"
)

// Signer authenticates a PlaceOrder request before it leaves the
// process. EIP-712 wallet signing is one implementation; venues that
// use HMAC or API-key-only auth can implement the same interface
// without pulling in the crypto stack.
type Signer interface {
	// SignRequest attaches signature/timestamp fields to form and
	// returns the form to submit.
	SignRequest(form url.Values) (url.Values, error)
	Address() string
}

// WalletSigner signs order submissions with an EIP-712 digest over the
// wallet's private key, the same construction the teacher uses to
// authenticate exchange actions.
type WalletSigner struct {
	privateKeyHex string
	address       string
	chainID       int64
	verifying     common.Address
}

// NewWalletSigner constructs a WalletSigner from a hex-encoded private key.
func NewWalletSigner(privateKeyHex string, chainID int64) (*WalletSigner, error) {
	keyHex := strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	if keyHex == "" {
		return nil, errors.New("exchange: empty private key")
	}
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("exchange: decode private key: %w", err)
	}
	address := crypto.PubkeyToAddress(key.PublicKey)
	return &WalletSigner{
		privateKeyHex: keyHex,
		address:       strings.ToLower(address.Hex()),
		chainID:       chainID,
	}, nil
}

// Address returns the signer's wallet address.
func (s *WalletSigner) Address() string { return s.address }

// SignRequest hashes the order's canonical form via msgpack + EIP-712 and
// appends the resulting signature and nonce to the request.
func (s *WalletSigner) SignRequest(form url.Values) (url.Values, error) {
	key, err := crypto.HexToECDSA(s.privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("exchange: decode private key: %w", err)
	}

	nonce := time.Now().UnixMilli()
	digest, err := s.digest(form, nonce)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return nil, fmt.Errorf("exchange: sign order: %w", err)
	}

	out := url.Values{}
	for k, v := range form {
		out[k] = v
	}
	out.Set("timestamp", fmt.Sprintf("%d", nonce))
	out.Set("signature", "0x"+common.Bytes2Hex(sig))
	out.Set("address", s.address)
	return out, nil
}

func (s *WalletSigner) digest(form url.Values, nonce int64) ([]byte, error) {
	ordered := make(map[string]string, len(form))
	for k := range form {
		ordered[k] = form.Get(k)
	}

	var buf strings.Builder
	enc := msgpack.NewEncoder(&msgpackWriter{&buf})
	if err := enc.Encode(ordered); err != nil {
		return nil, fmt.Errorf("exchange: msgpack encode order: %w", err)
	}

	var nonceBytes [8]byte
	binary.BigEndian.PutUint64(nonceBytes[:], uint64(nonce))

	payload := append([]byte(buf.String()), nonceBytes[:]...)
	connectionID := crypto.Keccak256(payload)

	domain := apitypes.TypedDataDomain{
		Name:              "nof0-core",
		Version:           "1",
		ChainId:           mathhex.NewHexOrDecimal256(s.chainID),
		VerifyingContract: s.verifying.Hex(),
	}
	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Order": {
				{Name: "connectionId", Type: "bytes32"},
			},
		},
		PrimaryType: "Order",
		Domain:      domain,
		Message:     map[string]interface{}{"connectionId": connectionID},
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("exchange: hash domain: %w", err)
	}
	messageHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("exchange: hash message: %w", err)
	}
	raw := make([]byte, 0, 2+len(domainSeparator)+len(messageHash))
	raw = append(raw, 0x19, 0x01)
	raw = append(raw, domainSeparator...)
	raw = append(raw, messageHash...)
	return crypto.Keccak256(raw), nil
}

// msgpackWriter adapts strings.Builder to io.Writer for the msgpack encoder.
type msgpackWriter struct {
	b *strings.Builder
}

func (w *msgpackWriter) Write(p []byte) (int, error) { return w.b.Write(p) }

// BuildClientOrderID creates a stable, idempotent client order id for a
// given model/symbol/side/quantity at the current minute bucket, mirroring
// the teacher's buildCloid.
func BuildClientOrderID(modelID, symbol string, side OrderSide, qty float64, now time.Time) string {
	bucket := now.UTC().Format("20060102T1504")
	return fmt.Sprintf("%s|%s|%s|%.6f|%s", modelID, strings.ToUpper(symbol), side, qty, bucket)
}

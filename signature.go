package nftexchange

import (
	"bytes"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// EIP712 domain constants shared by every chain deployment
const (
	EIP712DomainName    = "MintoraExchange"
	EIP712DomainVersion = "1"
)

// Pre-computed type hashes using keccak256
var (
	// EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)
	eip712DomainTypeHash = crypto.Keccak256Hash([]byte(
		"EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)",
	))

	// Order(bool isSellOrder,address signer,uint256[] constraints,OrderItem[] nfts,address[] execParams,bytes extraParams)
	orderTypeHash = crypto.Keccak256Hash([]byte(
		"Order(bool isSellOrder,address signer,uint256[] constraints,OrderItem[] nfts,address[] execParams,bytes extraParams)" +
			"OrderItem(address collection,TokenInfo[] tokens)" +
			"TokenInfo(uint256 tokenId,uint256 numTokens)",
	))

	// OrderItem(address collection,TokenInfo[] tokens)
	orderItemTypeHash = crypto.Keccak256Hash([]byte(
		"OrderItem(address collection,TokenInfo[] tokens)" +
			"TokenInfo(uint256 tokenId,uint256 numTokens)",
	))

	// TokenInfo(uint256 tokenId,uint256 numTokens)
	tokenInfoTypeHash = crypto.Keccak256Hash([]byte(
		"TokenInfo(uint256 tokenId,uint256 numTokens)",
	))
)

// EIP712Domain represents the EIP712 domain separator data
type EIP712Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

// NewEIP712Domain creates the exchange's domain for one chain deployment
func NewEIP712Domain(chainID ChainID, verifyingContract common.Address) *EIP712Domain {
	return &EIP712Domain{
		Name:              EIP712DomainName,
		Version:           EIP712DomainVersion,
		ChainID:           big.NewInt(int64(chainID)),
		VerifyingContract: verifyingContract,
	}
}

// Hash computes the EIP712 domain separator hash
func (d *EIP712Domain) Hash() common.Hash {
	bytes32Type, _ := abi.NewType("bytes32", "", nil)
	uint256Type, _ := abi.NewType("uint256", "", nil)
	addressType, _ := abi.NewType("address", "", nil)

	arguments := abi.Arguments{
		{Type: bytes32Type}, // typeHash
		{Type: bytes32Type}, // nameHash
		{Type: bytes32Type}, // versionHash
		{Type: uint256Type}, // chainId
		{Type: addressType}, // verifyingContract
	}

	encoded, err := arguments.Pack(
		eip712DomainTypeHash,
		crypto.Keccak256Hash([]byte(d.Name)),
		crypto.Keccak256Hash([]byte(d.Version)),
		d.ChainID,
		d.VerifyingContract,
	)
	if err != nil {
		panic("failed to encode domain separator: " + err.Error())
	}

	return crypto.Keccak256Hash(encoded)
}

// hashTokenInfo computes the struct hash of one TokenInfo entry.
func hashTokenInfo(token TokenInfo) common.Hash {
	bytes32Type, _ := abi.NewType("bytes32", "", nil)
	uint256Type, _ := abi.NewType("uint256", "", nil)

	arguments := abi.Arguments{
		{Type: bytes32Type}, // typeHash
		{Type: uint256Type}, // tokenId
		{Type: uint256Type}, // numTokens
	}

	encoded, err := arguments.Pack(tokenInfoTypeHash, token.TokenID, big.NewInt(token.NumTokens))
	if err != nil {
		panic("failed to encode token info: " + err.Error())
	}
	return crypto.Keccak256Hash(encoded)
}

// hashOrderItem computes the struct hash of one OrderItem entry. Per EIP-712
// a struct array hashes to the keccak of its members' concatenated hashes.
func hashOrderItem(item OrderItem) common.Hash {
	var tokenHashes []byte
	for _, token := range item.Tokens {
		hash := hashTokenInfo(token)
		tokenHashes = append(tokenHashes, hash.Bytes()...)
	}

	bytes32Type, _ := abi.NewType("bytes32", "", nil)
	addressType, _ := abi.NewType("address", "", nil)

	arguments := abi.Arguments{
		{Type: bytes32Type}, // typeHash
		{Type: addressType}, // collection
		{Type: bytes32Type}, // tokens hash
	}

	encoded, err := arguments.Pack(
		orderItemTypeHash,
		item.Collection,
		crypto.Keccak256Hash(tokenHashes),
	)
	if err != nil {
		panic("failed to encode order item: " + err.Error())
	}
	return crypto.Keccak256Hash(encoded)
}

// hashUint256Array hashes a uint256[] value: keccak of the concatenated
// 32-byte big-endian words.
func hashUint256Array(values []*big.Int) common.Hash {
	var packed []byte
	for _, v := range values {
		packed = append(packed, common.LeftPadBytes(v.Bytes(), 32)...)
	}
	return crypto.Keccak256Hash(packed)
}

// hashAddressArray hashes an address[] value the same way.
func hashAddressArray(addrs []common.Address) common.Hash {
	var packed []byte
	for _, a := range addrs {
		packed = append(packed, common.LeftPadBytes(a.Bytes(), 32)...)
	}
	return crypto.Keccak256Hash(packed)
}

// Hash computes the order's EIP-712 struct hash. This is also the order's
// content hash: two orders with equal canonical fields hash identically.
func (o *Order) Hash() common.Hash {
	var itemHashes []byte
	for _, item := range o.Nfts {
		hash := hashOrderItem(item)
		itemHashes = append(itemHashes, hash.Bytes()...)
	}

	bytes32Type, _ := abi.NewType("bytes32", "", nil)
	boolType, _ := abi.NewType("bool", "", nil)
	addressType, _ := abi.NewType("address", "", nil)

	arguments := abi.Arguments{
		{Type: bytes32Type}, // typeHash
		{Type: boolType},    // isSellOrder
		{Type: addressType}, // signer
		{Type: bytes32Type}, // constraints hash
		{Type: bytes32Type}, // nfts hash
		{Type: bytes32Type}, // execParams hash
		{Type: bytes32Type}, // extraParams hash
	}

	encoded, err := arguments.Pack(
		orderTypeHash,
		o.IsSellOrder,
		o.Signer,
		hashUint256Array(o.constraints()),
		crypto.Keccak256Hash(itemHashes),
		hashAddressArray(o.execParams()),
		crypto.Keccak256Hash(o.ExtraParams),
	)
	if err != nil {
		panic("failed to encode order struct: " + err.Error())
	}

	return crypto.Keccak256Hash(encoded)
}

// Digest computes the final EIP712 hash to be signed:
// keccak256("\x19\x01" ++ domainSeparator ++ structHash).
func (o *Order) Digest(exchange common.Address) common.Hash {
	domainSeparator := NewEIP712Domain(o.ChainID, exchange).Hash()
	structHash := o.Hash()

	data := make([]byte, 0, 2+32+32)
	data = append(data, 0x19, 0x01)
	data = append(data, domainSeparator.Bytes()...)
	data = append(data, structHash.Bytes()...)

	return crypto.Keccak256Hash(data)
}

// SignatureData produces the EIP-712 typed-data triple a wallet signs.
func (o *Order) SignatureData(exchange common.Address) apitypes.TypedData {
	nfts := make([]interface{}, len(o.Nfts))
	for i, item := range o.Nfts {
		tokens := make([]interface{}, len(item.Tokens))
		for j, token := range item.Tokens {
			tokens[j] = map[string]interface{}{
				"tokenId":   token.TokenID.String(),
				"numTokens": big.NewInt(token.NumTokens).String(),
			}
		}
		nfts[i] = map[string]interface{}{
			"collection": item.Collection.Hex(),
			"tokens":     tokens,
		}
	}

	constraints := o.constraints()
	rawConstraints := make([]interface{}, len(constraints))
	for i, c := range constraints {
		rawConstraints[i] = c.String()
	}

	execParams := make([]interface{}, 2)
	for i, a := range o.execParams() {
		execParams[i] = a.Hex()
	}

	extraParams := "0x"
	if len(o.ExtraParams) > 0 {
		extraParams = hexutil.Encode(o.ExtraParams)
	}

	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Order": []apitypes.Type{
				{Name: "isSellOrder", Type: "bool"},
				{Name: "signer", Type: "address"},
				{Name: "constraints", Type: "uint256[]"},
				{Name: "nfts", Type: "OrderItem[]"},
				{Name: "execParams", Type: "address[]"},
				{Name: "extraParams", Type: "bytes"},
			},
			"OrderItem": []apitypes.Type{
				{Name: "collection", Type: "address"},
				{Name: "tokens", Type: "TokenInfo[]"},
			},
			"TokenInfo": []apitypes.Type{
				{Name: "tokenId", Type: "uint256"},
				{Name: "numTokens", Type: "uint256"},
			},
		},
		PrimaryType: "Order",
		Domain: apitypes.TypedDataDomain{
			Name:              EIP712DomainName,
			Version:           EIP712DomainVersion,
			ChainId:           math.NewHexOrDecimal256(int64(o.ChainID)),
			VerifyingContract: exchange.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"isSellOrder": o.IsSellOrder,
			"signer":      o.Signer.Hex(),
			"constraints": rawConstraints,
			"nfts":        nfts,
			"execParams":  execParams,
			"extraParams": extraParams,
		},
	}
}

// Sign signs the order's digest with an EOA key and returns the 65-byte
// signature hex-encoded with the Ethereum 27/28 recovery id.
func (o *Order) Sign(exchange common.Address, key *ecdsa.PrivateKey) (string, error) {
	digest := o.Digest(exchange)
	signature, err := crypto.Sign(digest.Bytes(), key)
	if err != nil {
		return "", fmt.Errorf("failed to sign order: %w", err)
	}

	// Recovery ID convention
	signature[64] += 27

	return hexutil.Encode(signature), nil
}

// VerifySignature checks that sig recovers to the order's signer.
func (o *Order) VerifySignature(exchange common.Address, sig string) error {
	signature, err := hexutil.Decode(sig)
	if err != nil {
		return fmt.Errorf("signature is not valid hex: %w", ErrInvalidSignature)
	}
	if len(signature) != 65 {
		return fmt.Errorf("signature must be 65 bytes, got %d: %w", len(signature), ErrInvalidSignature)
	}

	normalized := make([]byte, 65)
	copy(normalized, signature)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}

	digest := o.Digest(exchange)
	pubKey, err := crypto.SigToPub(digest.Bytes(), normalized)
	if err != nil {
		return fmt.Errorf("failed to recover signer: %w", ErrInvalidSignature)
	}

	recovered := crypto.PubkeyToAddress(*pubKey)
	if !bytes.Equal(recovered.Bytes(), o.Signer.Bytes()) {
		return fmt.Errorf("recovered %s, expected %s: %w", recovered.Hex(), o.Signer.Hex(), ErrInvalidSignature)
	}
	return nil
}

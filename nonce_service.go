package nftexchange

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mintora/nft-exchange-go/chain"
	"github.com/mintora/nft-exchange-go/store"
)

// NonceWidth is the fixed width of the stored nonce encoding: 78 decimal
// digits, the width of the largest uint256. Zero-padding to a fixed width
// makes lexicographic key order equal numeric order, and caps nonce values
// at 78 digits.
const NonceWidth = 78

// FormatNonce encodes a nonce as a fixed-width, zero-padded decimal string.
func FormatNonce(nonce *big.Int) (string, error) {
	if nonce == nil || nonce.Sign() < 0 {
		return "", fmt.Errorf("nonce must be a non-negative integer: %w", ErrInvalidOrder)
	}
	digits := nonce.String()
	if len(digits) > NonceWidth {
		return "", fmt.Errorf("nonce exceeds %d digits: %w", NonceWidth, ErrInvalidOrder)
	}
	return strings.Repeat("0", NonceWidth-len(digits)) + digits, nil
}

// NonceService allocates and claims per-user, per-chain monotonically ordered
// nonces. Claiming is the replay-protection root of trust: a nonce document,
// once written, is never written again.
type NonceService struct {
	db      *store.DB
	gateway chain.Gateway
	log     zerolog.Logger
}

// NewNonceService creates a new NonceService instance
func NewNonceService(db *store.DB, gateway chain.Gateway, log zerolog.Logger) *NonceService {
	return &NonceService{db: db, gateway: gateway, log: log}
}

// nonceScope resolves the (chain, exchange, user) key scope for a user.
func (s *NonceService) nonceScope(chainID ChainID, user string) (exchange, normalizedUser string, err error) {
	exchangeAddr, err := s.gateway.ExchangeAddress(int64(chainID))
	if err != nil {
		return "", "", err
	}
	return strings.ToLower(exchangeAddr.Hex()), strings.ToLower(user), nil
}

// Next suggests the lowest nonce the user can still claim: one more than the
// highest claimed nonce, or 1 when none is claimed yet. It has no side
// effects; the suggestion only becomes binding through Claim.
func (s *NonceService) Next(ctx context.Context, chainID ChainID, user string) (*big.Int, error) {
	exchange, user, err := s.nonceScope(chainID, user)
	if err != nil {
		return nil, err
	}

	prefix := store.NonceUserPrefix(int64(chainID), exchange, user)
	iter, err := s.db.NewIter(prefix, store.PrefixEnd(prefix))
	if err != nil {
		return nil, fmt.Errorf("failed to read nonce ledger: %w", err)
	}
	defer iter.Close()

	highest := big.NewInt(0)
	if iter.Last() && iter.Valid() {
		var doc UserNonce
		if err := json.Unmarshal(iter.Value(), &doc); err != nil {
			return nil, fmt.Errorf("corrupt nonce document: %w", err)
		}
		claimed, ok := new(big.Int).SetString(doc.Nonce, 10)
		if !ok {
			return nil, fmt.Errorf("corrupt nonce encoding %q", doc.Nonce)
		}
		highest = claimed
	}

	return highest.Add(highest, big.NewInt(1)), nil
}

// Claim mints the nonce for the user, failing with ErrNonceAlreadyClaimed if
// a claim for the same (user, chain, exchange, nonce) exists. The
// check-then-write runs inside one store transaction, which is what makes
// concurrent claims of the same nonce resolve to exactly one winner.
func (s *NonceService) Claim(ctx context.Context, chainID ChainID, user string, nonce *big.Int) (string, error) {
	var formatted string
	err := s.db.Update(func(tx *store.Tx) error {
		var err error
		formatted, err = s.claimInTx(tx, chainID, user, nonce)
		return err
	})
	if err != nil {
		return "", err
	}

	s.log.Debug().
		Int64("chainId", int64(chainID)).
		Str("user", strings.ToLower(user)).
		Str("nonce", nonce.String()).
		Msg("nonce claimed")
	return formatted, nil
}

// claimInTx stages a nonce claim inside an open transaction so callers can
// atomically pair the claim with other writes.
func (s *NonceService) claimInTx(tx *store.Tx, chainID ChainID, user string, nonce *big.Int) (string, error) {
	exchange, user, err := s.nonceScope(chainID, user)
	if err != nil {
		return "", err
	}
	formatted, err := FormatNonce(nonce)
	if err != nil {
		return "", err
	}

	key := store.NonceKey(int64(chainID), exchange, user, formatted)
	_, exists, err := tx.Get(key)
	if err != nil {
		return "", fmt.Errorf("failed to read nonce ledger: %w", err)
	}
	if exists {
		return "", &NonceClaimedError{ChainID: chainID, User: user, Nonce: nonce}
	}

	doc, err := json.Marshal(UserNonce{
		Nonce:           formatted,
		UserAddress:     user,
		ChainID:         chainID,
		ContractAddress: exchange,
		Fillability:     FillabilityFillable,
	})
	if err != nil {
		return "", err
	}
	if err := tx.Set(key, doc); err != nil {
		return "", err
	}
	return formatted, nil
}

// UpdateFillability batch-updates the fillability flags of claimed nonces for
// settlement bookkeeping. Writes are independent per nonce; that is fine
// because each nonce belongs to a disjoint order.
func (s *NonceService) UpdateFillability(ctx context.Context, chainID ChainID, user string, nonces []*big.Int, fillability Fillability) error {
	exchange, user, err := s.nonceScope(chainID, user)
	if err != nil {
		return err
	}

	for _, nonce := range nonces {
		formatted, err := FormatNonce(nonce)
		if err != nil {
			return err
		}
		key := store.NonceKey(int64(chainID), exchange, user, formatted)

		value, exists, err := s.db.Get(key)
		if err != nil {
			return fmt.Errorf("failed to read nonce %s: %w", nonce, err)
		}
		if !exists {
			s.log.Warn().
				Int64("chainId", int64(chainID)).
				Str("user", user).
				Str("nonce", nonce.String()).
				Msg("skipping fillability update for unclaimed nonce")
			continue
		}

		var doc UserNonce
		if err := json.Unmarshal(value, &doc); err != nil {
			return fmt.Errorf("corrupt nonce document for %s: %w", nonce, err)
		}
		doc.Fillability = fillability

		updated, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		if err := s.db.Set(key, updated); err != nil {
			return fmt.Errorf("failed to update nonce %s: %w", nonce, err)
		}
	}
	return nil
}

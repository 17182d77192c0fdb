package store

import "fmt"

// Key layout. Nonce keys end in a fixed-width nonce encoding and event keys
// embed a fixed-width millisecond timestamp, so pebble's lexicographic key
// order doubles as the numeric index order the queries need.
const (
	noncePrefix = "non"
	orderPrefix = "ord"
	eventPrefix = "evt"
)

// NonceKey addresses one claimed nonce document.
func NonceKey(chainID int64, exchange, user, nonce string) []byte {
	return []byte(fmt.Sprintf("%s/%d/%s/%s/%s", noncePrefix, chainID, exchange, user, nonce))
}

// NonceUserPrefix covers every nonce document of one (chain, exchange, user).
func NonceUserPrefix(chainID int64, exchange, user string) []byte {
	return []byte(fmt.Sprintf("%s/%d/%s/%s/", noncePrefix, chainID, exchange, user))
}

// OrderKey addresses one order document by order id.
func OrderKey(orderID string) []byte {
	return []byte(fmt.Sprintf("%s/%s", orderPrefix, orderID))
}

// EventKey addresses one order event; events for a chain sort by
// (timestamp, orderId).
func EventKey(chainID int64, timestampMs int64, orderID string) []byte {
	return []byte(fmt.Sprintf("%s/%d/%013d/%s", eventPrefix, chainID, timestampMs, orderID))
}

// EventTimePrefix is the smallest possible key at a given timestamp; it is
// used as a range bound for time-window queries.
func EventTimePrefix(chainID int64, timestampMs int64) []byte {
	return []byte(fmt.Sprintf("%s/%d/%013d/", eventPrefix, chainID, timestampMs))
}

// EventChainPrefix covers every event of one chain.
func EventChainPrefix(chainID int64) []byte {
	return []byte(fmt.Sprintf("%s/%d/", eventPrefix, chainID))
}

// PrefixEnd returns the smallest key greater than every key with the prefix.
func PrefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

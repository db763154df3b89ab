// Package keys encodes partition and sort keys for the ordering table.
package keys

import "strings"

const (
	// MetaSK is the sort key of the per-domain meta record.
	MetaSK = "meta"

	itemPrefix = "item#"
)

// ItemSK returns the sort key of an item record.
func ItemSK(id string) string {
	return itemPrefix + id
}

// IsItemSK reports whether sk belongs to an item record.
func IsItemSK(sk string) bool {
	return strings.HasPrefix(sk, itemPrefix) && len(sk) > len(itemPrefix)
}

// ItemID extracts the item ID from an item sort key.
// Returns empty string for any other sort key.
func ItemID(sk string) string {
	if !IsItemSK(sk) {
		return ""
	}
	return sk[len(itemPrefix):]
}

// ItemPrefix returns the sort key prefix shared by all item records.
func ItemPrefix() string {
	return itemPrefix
}

package board

// Key schema. All entities and indexes share one KV namespace; colon-separated
// segments, entity keys first segment names the record type, index keys pair
// the scanning user with the target id so "mine" listings are prefix scans.
const (
	userKeyPrefix     = "user:"
	itemKeyPrefix     = "item:"
	userItemKeyPrefix = "userItem:"
)

func userKey(userID string) string {
	return userKeyPrefix + userID
}

func itemKey(itemID string) string {
	return itemKeyPrefix + itemID
}

func userItemKey(userID, itemID string) string {
	return userItemKeyPrefix + userID + ":" + itemID
}

func userItemScanPrefix(userID string) string {
	return userItemKeyPrefix + userID + ":"
}

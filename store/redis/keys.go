package redis

import "github.com/xraph/sentinel/id"

const keyPrefix = "sentinel:"

func breakerKey(tenantID string) string {
	return keyPrefix + "breaker:" + tenantID
}

func breakerIDsKey() string {
	return keyPrefix + "breakers"
}

func dlqKey(msgID id.DLQID) string {
	return keyPrefix + "dlq:" + msgID.String()
}

func dlqIDsKey() string {
	return keyPrefix + "dlq_ids"
}

func replayKey(tenantID, eventID string) string {
	return keyPrefix + "replay:" + tenantID + ":" + eventID
}

func replayIdxKey(tenantID string) string {
	return keyPrefix + "replay_idx:" + tenantID
}

func replayTenantsKey() string {
	return keyPrefix + "replay_tenants"
}

func tenantKey(tenantID string) string {
	return keyPrefix + "tenant:" + tenantID
}

func tenantIDsKey() string {
	return keyPrefix + "tenants"
}

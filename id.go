package sentinel

import "github.com/xraph/sentinel/id"

// ID is the primary identifier type for all Sentinel entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix

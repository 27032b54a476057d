package pricing

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const missingModelsKey = "relay:missing_models"

// MissingModelTally counts requests for unpriced models so operators can
// see which pricing entries to add. Best-effort: a nil client or a Redis
// failure never affects request handling.
type MissingModelTally struct {
	rdb *redis.Client
}

// NewMissingModelTally creates a tally. If rdb is nil, Record is a no-op.
func NewMissingModelTally(rdb *redis.Client) *MissingModelTally {
	return &MissingModelTally{rdb: rdb}
}

// Record increments the tally for a model name.
func (t *MissingModelTally) Record(ctx context.Context, model string) error {
	if t.rdb == nil {
		return nil
	}
	return t.rdb.HIncrBy(ctx, missingModelsKey, model, 1).Err()
}

// List returns the tally as model name → request count.
func (t *MissingModelTally) List(ctx context.Context) (map[string]int64, error) {
	if t.rdb == nil {
		return map[string]int64{}, nil
	}
	raw, err := t.rdb.HGetAll(ctx, missingModelsKey).Result()
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(raw))
	for model, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		counts[model] = n
	}
	return counts, nil
}

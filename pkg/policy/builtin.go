package policy

import (
	"context"
	"encoding/binary"
	"hash/fnv"

	"github.com/eduardo5010/study-cycle/pkg/model"
)

// HumanFirst picks the first human-authored variant, else the first variant
func HumanFirst() Policy {
	return Func(func(ctx context.Context, req *Request) (*model.Variant, error) {
		for _, v := range req.Variants {
			if v.Origin == model.OriginHuman {
				return v, nil
			}
		}
		if len(req.Variants) > 0 {
			return req.Variants[0], nil
		}
		return nil, nil
	})
}

// SeededRandom picks uniformly among variants using a hash of the seed, item
// and learner. The same inputs always produce the same choice.
func SeededRandom(seed uint64) Policy {
	return Func(func(ctx context.Context, req *Request) (*model.Variant, error) {
		if len(req.Variants) == 0 {
			return nil, nil
		}

		h := fnv.New64a()
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], seed)
		_, _ = h.Write(buf[:])
		_, _ = h.Write([]byte(req.ItemID))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(req.LearnerID))

		return req.Variants[h.Sum64()%uint64(len(req.Variants))], nil
	})
}

// LeastRecentlyUsed prefers variants the learner has never seen, in insertion
// order, and otherwise the one shown longest ago
func LeastRecentlyUsed() Policy {
	return Func(func(ctx context.Context, req *Request) (*model.Variant, error) {
		var oldest *model.Variant
		for _, v := range req.Variants {
			at, seen := req.Usage[v.ID]
			if !seen {
				return v, nil
			}
			if oldest == nil || at.Before(req.Usage[oldest.ID]) {
				oldest = v
			}
		}
		return oldest, nil
	})
}

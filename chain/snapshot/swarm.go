package snapshot

import (
	"sort"

	"github.com/syssiproject/oxen-core-sub000/chain/quorum"
	"github.com/syssiproject/oxen-core-sub000/config/params"
	"github.com/syssiproject/oxen-core-sub000/consensus-types/primitives"
)

// RepartitionSwarms recomputes swarm_id for every active node whenever
// the active set changes (spec §4.2 step 10 / §4.2.2): existing
// {swarm_id -> [pubkey]} buckets are rebuilt, a PRNG seeded from
// blockHash resolves every random choice the balancing pass needs, and
// any node whose swarm_id changed is written back via copy-on-write.
func (s *StateSnapshot) RepartitionSwarms(cfg *params.Config, blockHash primitives.BlockHash) {
	rng := quorum.NewSwarmRNG(blockHash)

	buckets := map[primitives.SwarmID][]primitives.PubKey{}
	var unassigned []primitives.PubKey
	for _, pub := range s.sortedPubkeys() {
		n := s.Nodes[pub]
		if !n.IsActive() {
			continue
		}
		if n.SwarmID == primitives.UnassignedSwarmID {
			unassigned = append(unassigned, pub)
			continue
		}
		buckets[n.SwarmID] = append(buckets[n.SwarmID], pub)
	}

	shuffleBucket(unassigned, rng)
	fillUnderSized(cfg, buckets, &unassigned)
	formNewSwarms(cfg, buckets, &unassigned)
	splitOversized(cfg, buckets, rng)
	mergeOrStealUndersized(cfg, buckets)

	for id, members := range buckets {
		for _, pub := range members {
			if s.Nodes[pub].SwarmID != id {
				next := s.Nodes[pub].Clone()
				next.SwarmID = id
				s.putNode(pub, next)
			}
		}
	}
}

// fillUnderSized tops up existing swarms below IdealSwarmSize from the
// unassigned pool before any new swarm is formed, visiting swarms in
// ascending swarm_id order for determinism.
func fillUnderSized(cfg *params.Config, buckets map[primitives.SwarmID][]primitives.PubKey, unassigned *[]primitives.PubKey) {
	for _, id := range sortedSwarmIDs(buckets) {
		for len(buckets[id]) < cfg.IdealSwarmSize && len(*unassigned) > 0 {
			buckets[id] = append(buckets[id], (*unassigned)[0])
			*unassigned = (*unassigned)[1:]
		}
	}
}

// formNewSwarms groups any still-unassigned nodes into fresh swarms of
// IdealSwarmSize. A final undersized remainder is still created; it
// will be picked up by mergeOrStealUndersized next repartition (or
// immediately below, since buckets is shared).
func formNewSwarms(cfg *params.Config, buckets map[primitives.SwarmID][]primitives.PubKey, unassigned *[]primitives.PubKey) {
	nextID := nextSwarmID(buckets)
	for len(*unassigned) > 0 {
		n := cfg.IdealSwarmSize
		if n > len(*unassigned) {
			n = len(*unassigned)
		}
		buckets[nextID] = append([]primitives.PubKey(nil), (*unassigned)[:n]...)
		*unassigned = (*unassigned)[n:]
		nextID++
	}
}

// splitOversized breaks any swarm above MaxSwarmSize into two,
// shuffling its members first so the split point doesn't correlate
// with join order.
func splitOversized(cfg *params.Config, buckets map[primitives.SwarmID][]primitives.PubKey, rng *quorum.DeterministicRNG) {
	for _, id := range sortedSwarmIDs(buckets) {
		members := buckets[id]
		if len(members) <= cfg.MaxSwarmSize {
			continue
		}
		shuffleBucket(members, rng)
		mid := len(members) / 2
		newID := nextSwarmID(buckets)
		buckets[id] = append([]primitives.PubKey(nil), members[:mid]...)
		buckets[newID] = append([]primitives.PubKey(nil), members[mid:]...)
	}
}

// mergeOrStealUndersized repairs any swarm below MinSwarmSize: merge
// it into the smallest swarm that stays within MaxSwarmSize after
// absorbing it, or, if none qualifies, steal one member at a time from
// the largest swarm. Donor/acceptor ties break on ascending swarm_id
// for determinism, since the original iterates a std::map in key
// order.
func mergeOrStealUndersized(cfg *params.Config, buckets map[primitives.SwarmID][]primitives.PubKey) {
	for _, id := range sortedSwarmIDs(buckets) {
		members, ok := buckets[id]
		if !ok || len(members) >= cfg.MinSwarmSize {
			continue
		}

		if target, ok := smallestAbsorbingSwarm(buckets, id, len(members), cfg.MaxSwarmSize); ok {
			buckets[target] = append(buckets[target], members...)
			delete(buckets, id)
			continue
		}

		for len(buckets[id]) < cfg.MinSwarmSize {
			donor, ok := largestSwarm(buckets, id)
			if !ok || len(buckets[donor]) <= cfg.MinSwarmSize {
				break // no donor can give without itself underflowing
			}
			last := len(buckets[donor]) - 1
			stolen := buckets[donor][last]
			buckets[donor] = buckets[donor][:last]
			buckets[id] = append(buckets[id], stolen)
		}
	}
}

func smallestAbsorbingSwarm(buckets map[primitives.SwarmID][]primitives.PubKey, exclude primitives.SwarmID, need int, max int) (primitives.SwarmID, bool) {
	best := primitives.SwarmID(0)
	bestSize := -1
	found := false
	for _, id := range sortedSwarmIDs(buckets) {
		if id == exclude {
			continue
		}
		size := len(buckets[id])
		if size+need > max {
			continue
		}
		if !found || size < bestSize {
			best, bestSize, found = id, size, true
		}
	}
	return best, found
}

func largestSwarm(buckets map[primitives.SwarmID][]primitives.PubKey, exclude primitives.SwarmID) (primitives.SwarmID, bool) {
	best := primitives.SwarmID(0)
	bestSize := -1
	found := false
	for _, id := range sortedSwarmIDs(buckets) {
		if id == exclude {
			continue
		}
		size := len(buckets[id])
		if !found || size > bestSize {
			best, bestSize, found = id, size, true
		}
	}
	return best, found
}

func sortedSwarmIDs(buckets map[primitives.SwarmID][]primitives.PubKey) []primitives.SwarmID {
	ids := make([]primitives.SwarmID, 0, len(buckets))
	for id := range buckets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func nextSwarmID(buckets map[primitives.SwarmID][]primitives.PubKey) primitives.SwarmID {
	var max primitives.SwarmID
	for id := range buckets {
		if id != primitives.UnassignedSwarmID && id >= max {
			max = id + 1
		}
	}
	if max == 0 {
		max = 1
	}
	return max
}

func shuffleBucket(list []primitives.PubKey, rng *quorum.DeterministicRNG) {
	for i := len(list) - 1; i > 0; i-- {
		j := int(rng.Intn(uint64(i + 1)))
		list[i], list[j] = list[j], list[i]
	}
}

package access

import (
	"context"
	"slices"
	"sort"

	"github.com/testbench-tools/taco/internal/clock"
	"github.com/testbench-tools/taco/internal/lockstore"
	"github.com/testbench-tools/taco/internal/topology"
)

// fakeStore is an in-memory LockStore with the same missing-record
// behavior as lockstore.Store.
type fakeStore struct {
	clock    clock.Clock
	location string
	recs     map[string]lockstore.Record

	getLocksCalls int
	ensured       []string
	closed        bool

	failGetLocks error
	failSetLock  error
	failEnsure   error
}

func newFakeStore(c clock.Clock, location string) *fakeStore {
	return &fakeStore{clock: c, location: location, recs: make(map[string]lockstore.Record)}
}

func (s *fakeStore) EnsureResource(_ context.Context, address string) error {
	s.ensured = append(s.ensured, address)
	if s.failEnsure != nil {
		return s.failEnsure
	}
	if _, ok := s.recs[address]; !ok {
		s.recs[address] = lockstore.Record{HeldSince: s.clock.Now()}
	}
	return nil
}

func (s *fakeStore) GetLocks(_ context.Context, addresses []string) (map[string]lockstore.Record, error) {
	s.getLocksCalls++
	if s.failGetLocks != nil {
		return nil, s.failGetLocks
	}
	out := make(map[string]lockstore.Record)
	if len(addresses) == 0 {
		for a, r := range s.recs {
			out[a] = r
		}
		return out, nil
	}
	var missing []string
	for _, a := range addresses {
		r, ok := s.recs[a]
		if !ok {
			if !slices.Contains(missing, a) {
				missing = append(missing, a)
			}
			continue
		}
		out[a] = r
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &lockstore.NotFoundError{Addresses: missing, Location: s.location}
	}
	return out, nil
}

func (s *fakeStore) SetLock(_ context.Context, address, holder string) error {
	if s.failSetLock != nil {
		return s.failSetLock
	}
	if _, ok := s.recs[address]; !ok {
		return &lockstore.NotFoundError{Addresses: []string{address}, Location: s.location}
	}
	s.recs[address] = lockstore.Record{Holder: holder, HeldSince: s.clock.Now()}
	return nil
}

func (s *fakeStore) Location() string { return s.location }

func (s *fakeStore) Close() error {
	s.closed = true
	return nil
}

// fakeLauncher hands out increasing process ids.
type fakeLauncher struct {
	nextPID  int
	err      error
	launched []topology.Resource
}

func (l *fakeLauncher) Launch(_ context.Context, r topology.Resource) (int, error) {
	if l.err != nil {
		return 0, l.err
	}
	l.launched = append(l.launched, r)
	l.nextPID++
	return l.nextPID, nil
}

// flatTopology builds a single block of top-level entries with the given
// ids and addresses.
func flatTopology(pairs ...string) *topology.Topology {
	var nodes []topology.Node
	for i := 0; i+1 < len(pairs); i += 2 {
		nodes = append(nodes, topology.Node{ID: pairs[i], Address: pairs[i+1]})
	}
	return &topology.Topology{Blocks: []topology.Block{{Nodes: nodes}}}
}

package kvstore

import (
	"errors"
	"sync"

	"github.com/rony4d/opera-stake/staking/stakeerrors"
)

var (
	errWriterAlreadyHeld = errors.New("writer handle already checked out")
	errNoWriterHeld      = errors.New("no writer handle checked out")
)

// writerGuard implements the same single-writer capability check as
// store/memstore, kept local so kvstore doesn't depend on memstore.
type writerGuard struct {
	mu sync.Mutex
	on bool
}

func (g *writerGuard) begin() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.on {
		panic(stakeerrors.Wrap(stakeerrors.ErrMissingState, "kvstore", errWriterAlreadyHeld))
	}
	g.on = true
}

func (g *writerGuard) end() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.on = false
}

func (g *writerGuard) assert() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.on {
		panic(stakeerrors.Wrap(stakeerrors.ErrMissingState, "kvstore", errNoWriterHeld))
	}
}

func (s *kvStore) BeginWrite()        { s.writer.begin() }
func (s *kvStore) EndWrite()          { s.writer.end() }
func (s *kvStore) AssertUniqueWriter() { s.writer.assert() }

package listview

import (
	"context"
	"errors"
	"sync"

	"github.com/alfredjeanlab/portal/internal/client"
	"github.com/alfredjeanlab/portal/internal/model"
)

// ErrStale is returned for a fetch that was superseded by a newer one
// before it completed. Its response must not be committed.
var ErrStale = errors.New("listview: response superseded by a newer request")

// Fetcher issues collection reads for one resource with a last-request-wins
// discipline. Every fetch is tagged with a sequence number; starting a fetch
// cancels the one in flight, and a response whose sequence is older than the
// latest dispatched is discarded.
type Fetcher struct {
	client client.CollectionClient
	res    *model.Resource

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// NewFetcher creates a fetcher for res.
func NewFetcher(c client.CollectionClient, res *model.Resource) *Fetcher {
	return &Fetcher{client: c, res: res}
}

// Fetch performs one collection read. It returns the response together with
// the sequence number it was dispatched under, or ErrStale when a newer
// fetch started while this one was in flight.
func (f *Fetcher) Fetch(ctx context.Context, req client.ListRequest) (*client.ListResponse, uint64, error) {
	f.mu.Lock()
	if f.cancel != nil {
		f.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	f.seq++
	seq := f.seq
	f.cancel = cancel
	f.mu.Unlock()
	defer cancel()

	resp, err := f.client.List(ctx, f.res, &req)

	f.mu.Lock()
	defer f.mu.Unlock()
	if seq != f.seq {
		return nil, seq, ErrStale
	}
	f.cancel = nil
	if err != nil {
		return nil, seq, err
	}
	return resp, seq, nil
}

// IsLatest reports whether seq is the most recently dispatched fetch.
func (f *Fetcher) IsLatest(seq uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return seq == f.seq
}

// Cancel aborts the fetch in flight, if any, and invalidates its response.
// Call it when the screen is disposed.
func (f *Fetcher) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	f.seq++
}

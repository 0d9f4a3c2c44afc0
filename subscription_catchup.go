/*
 * MIT License
 *
 * Copyright (c) 2021 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package esdb

import (
	"context"
	"io"
	"sync"

	"google.golang.org/grpc"

	"github.com/sabouaram/eventstore-client-go/internal/transport"
	"github.com/sabouaram/eventstore-client-go/internal/wire"
)

const (
	defaultWindowSize                   = 30
	defaultCheckpointIntervalMultiplier = 5
)

// CatchUpOptions configures Subscribe (§4.6).
type CatchUpOptions struct {
	FromRevision       uint64
	FromCommit         uint64
	FromEnd            bool
	StreamID           string // "" subscribes to $all
	FilterInclude      *Filter
	FilterExclude      *Filter
	ResolveLinks       bool
	IncludeCheckpoints bool
	IncludeCaughtUp    bool
	WindowSize         int
	CheckpointIntervalMultiplier int
}

func (o CatchUpOptions) withDefaults() CatchUpOptions {
	if o.WindowSize <= 0 {
		o.WindowSize = defaultWindowSize
	}
	if o.CheckpointIntervalMultiplier <= 0 {
		o.CheckpointIntervalMultiplier = defaultCheckpointIntervalMultiplier
	}
	return o
}

// CatchUpItem is one delivered element of a catch-up subscription's mixed
// sequence: RecordedEvent, Checkpoint, CaughtUp, or FellBehind (§4.6).
// Exactly one of Event/Checkpoint is non-nil unless CaughtUp or FellBehind
// is set.
type CatchUpItem struct {
	Event      *RecordedEvent
	Checkpoint *Checkpoint
	CaughtUp   bool
	FellBehind bool
}

// Checkpoint marks a durable resumption cursor within $all.
type Checkpoint struct {
	CommitPosition uint64
	StreamPosition uint64
}

// catchUpReader drives one open catch-up subscription RPC. It implements
// stopper so it can register in the Client's streamerRegistry (§4.8).
type catchUpReader struct {
	c    *Client
	opts CatchUpOptions

	mu      sync.Mutex
	conn    *grpc.ClientConn
	stream  wire.SubscribeStream
	cancel  context.CancelFunc
	stopped bool
	lastErr error

	slot   chan catchUpSlot
	stopCh chan struct{}
	done   chan struct{}
	regID  uint64
}

type catchUpSlot struct {
	item CatchUpItem
	err  error
}

// Subscribe opens a catch-up subscription (§4.6). The caller pulls items
// via Next; the RPC is driven by a background goroutine that hands off
// one item at a time through a single-slot channel, so a slow consumer
// throttles the server the same way the server throttles a slow client
// (backpressure without unbounded client-side buffering).
func (c *Client) Subscribe(ctx context.Context, opts CatchUpOptions) (*catchUpReader, error) {
	opts = opts.withDefaults()
	rpcCtx, cancel := context.WithCancel(ctx)
	r := &catchUpReader{
		c:      c,
		opts:   opts,
		cancel: cancel,
		slot:   make(chan catchUpSlot),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}

	if err := r.openOnce(rpcCtx, true); err != nil {
		cancel()
		return nil, err
	}

	r.regID = registerStreamer(c.reg, r)
	go r.run(rpcCtx)
	return r, nil
}

func (r *catchUpReader) openOnce(ctx context.Context, firstOpen bool) error {
	var filterInclude, filterExclude []string
	if r.opts.FilterInclude != nil {
		filterInclude = []string{r.opts.FilterInclude.String()}
	}
	if r.opts.FilterExclude != nil {
		filterExclude = []string{r.opts.FilterExclude.String()}
	}

	req := wire.SubscribeRequest{
		StreamID:                     r.opts.StreamID,
		FromRevision:                 r.opts.FromRevision,
		FromEnd:                      r.opts.FromEnd,
		FromCommit:                   r.opts.FromCommit,
		ResolveLinks:                 r.opts.ResolveLinks,
		FilterInclude:                filterInclude,
		FilterExclude:                filterExclude,
		IncludeCheckpoints:           r.opts.IncludeCheckpoints,
		IncludeCaughtUp:              r.opts.IncludeCaughtUp,
		WindowSize:                   r.opts.WindowSize,
		CheckpointIntervalMultiplier: r.opts.CheckpointIntervalMultiplier,
	}

	conn, err := r.c.mgr.Acquire(ctx)
	if err != nil {
		return err
	}
	stream, err := r.c.streamsClient(conn).Subscribe(ctx, req)
	if err != nil {
		translated := transport.Translate(err)
		if firstOpen && transport.IsReconnectable(translated, r.c.spec.NodePreference == PreferLeader) {
			conn, rerr := r.c.mgr.Reopen(ctx)
			if rerr != nil {
				return rerr
			}
			stream, err = r.c.streamsClient(conn).Subscribe(ctx, req)
			if err != nil {
				return transport.Translate(err)
			}
			r.conn = conn
			r.stream = stream
			return nil
		}
		return translated
	}
	r.conn = conn
	r.stream = stream
	return nil
}

// run pumps Recv in a loop, handing each translated item to the single
// consumer slot. It exits on stream end, translated error, or Stop.
func (r *catchUpReader) run(ctx context.Context) {
	defer close(r.done)
	for {
		item, err := r.stream.Recv()
		if err != nil {
			if err == io.EOF {
				return
			}
			r.deliver(catchUpSlot{err: transport.Translate(err)})
			return
		}

		out := CatchUpItem{CaughtUp: item.CaughtUp, FellBehind: item.FellBehind}
		if item.Event != nil {
			rec := fromEventRecord(*item.Event)
			out.Event = &rec
		}
		if item.Checkpoint != nil {
			out.Checkpoint = &Checkpoint{
				CommitPosition: item.Checkpoint.CommitPosition,
				StreamPosition: item.Checkpoint.StreamPosition,
			}
		}

		if r.deliver(catchUpSlot{item: out}) {
			return
		}
	}
}

// deliver hands s to the next Next() call, or returns true if the reader
// was stopped first (in which case the goroutine should exit).
func (r *catchUpReader) deliver(s catchUpSlot) bool {
	select {
	case r.slot <- s:
		return false
	case <-r.stopCh:
		return true
	}
}

// Next blocks until the next CatchUpItem is available, the subscription
// ends, or it is stopped. The zero-value item with ok=false signals
// end-of-iteration; call Err to distinguish clean end from failure.
func (r *catchUpReader) Next(ctx context.Context) (CatchUpItem, bool) {
	select {
	case s, open := <-r.slot:
		if !open {
			return CatchUpItem{}, false
		}
		if s.err != nil {
			r.mu.Lock()
			r.lastErr = s.err
			r.mu.Unlock()
			return CatchUpItem{}, false
		}
		return s.item, true
	case <-r.done:
		return CatchUpItem{}, false
	case <-ctx.Done():
		return CatchUpItem{}, false
	}
}

// Err returns the error that ended iteration, if any.
func (r *catchUpReader) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// Stop cancels the underlying RPC and unregisters from the client's
// registry. Idempotent: iteration after Stop ends cleanly (§4.6).
func (r *catchUpReader) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	close(r.stopCh)
	r.cancel()
	if r.stream != nil {
		r.stream.Close()
	}
	r.mu.Unlock()

	r.c.reg.unregister(r.regID)
}

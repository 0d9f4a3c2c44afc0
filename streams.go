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
	"strconv"
	"time"

	"google.golang.org/grpc"

	"github.com/sabouaram/eventstore-client-go/eserr"
	"github.com/sabouaram/eventstore-client-go/internal/transport"
	"github.com/sabouaram/eventstore-client-go/internal/wire"
)

// defaultReadBatchSize is the batch-size hint carried by the single
// wire.ReadRequest a readStream/readAll iterator sends (SPEC_FULL §C.4).
// The iterator yields what that one RPC returns; it does not request
// further pages once the server ends the stream.
const defaultReadBatchSize = 500

// appendFrameBudget keeps each streamed Append frame comfortably under the
// 17 MiB receive cap (§6), leaving room for envelope overhead.
const appendFrameBudget = transport.MaxReceiveMessageLength - (1 << 20)

// CallOptions customizes a single operation: per-call deadline, explicit
// leader requirement, and link resolution. Most facade methods accept a
// variadic CallOption; Subscribe and ReadPersistentSubscription do not.
type CallOptions struct {
	Deadline       time.Duration
	RequiresLeader *bool
	ResolveLinks   bool
}

// CallOption mutates CallOptions.
type CallOption func(*CallOptions)

// WithDeadline overrides the connection spec's default per-call deadline.
func WithDeadline(d time.Duration) CallOption {
	return func(o *CallOptions) { o.Deadline = d }
}

// WithRequiresLeader records an explicit requires-leader value in
// CallOptions.RequiresLeader. No call path reads that field, and requests
// carry no requires-leader metadata.
func WithRequiresLeader(v bool) CallOption {
	return func(o *CallOptions) { o.RequiresLeader = &v }
}

// WithResolveLinks requests link-event resolution on a read or catch-up
// subscription.
func WithResolveLinks() CallOption {
	return func(o *CallOptions) { o.ResolveLinks = true }
}

func resolveCallOptions(spec ConnectionSpec, opts []CallOption) CallOptions {
	o := CallOptions{Deadline: spec.DefaultDeadline}
	for _, apply := range opts {
		apply(&o)
	}
	return o
}

func callContext(ctx context.Context, o CallOptions) (context.Context, context.CancelFunc) {
	if o.Deadline <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.Deadline)
}

func toAppendOptions(stream string, expected StreamState) wire.AppendOptions {
	opts := wire.AppendOptions{StreamID: stream}
	switch {
	case expected.IsNoStream():
		opts.ExpectedNoStream = true
	case expected.IsExists():
		opts.ExpectedStreamExists = true
	case expected.IsAny():
		opts.ExpectedAny = true
	default:
		rev, _ := expected.Revision()
		opts.ExpectedRevision = rev
		opts.HasExpectedRevision = true
	}
	return opts
}

func toProposedEvent(e NewEvent) wire.ProposedEvent {
	e = e.WithDefaults()
	return wire.ProposedEvent{
		EventID:     e.EventID,
		EventType:   e.EventType,
		Data:        e.Data,
		Metadata:    e.Metadata,
		ContentType: e.ContentType,
	}
}

// buildAppendFrames splits events into one or more AppendRequestFrame,
// keeping a single frame's payload under appendFrameBudget (SPEC_FULL
// §C.5). Only the first frame carries Options, so exactly one
// expected-version check applies to the whole logical append regardless
// of how many wire frames it is split across.
func buildAppendFrames(stream string, expected StreamState, events []NewEvent) []wire.AppendRequestFrame {
	opts := toAppendOptions(stream, expected)
	frames := []wire.AppendRequestFrame{{Options: &opts}}

	batchBytes := 0
	for _, e := range events {
		pe := toProposedEvent(e)
		size := len(pe.Data) + len(pe.Metadata) + len(pe.EventType) + len(pe.ContentType)

		last := &frames[len(frames)-1]
		if len(last.ProposedEvents) > 0 && batchBytes+size > appendFrameBudget {
			frames = append(frames, wire.AppendRequestFrame{})
			last = &frames[len(frames)-1]
			batchBytes = 0
		}
		last.ProposedEvents = append(last.ProposedEvents, pe)
		batchBytes += size
	}

	return frames
}

// Append writes events to stream under an optimistic-concurrency check
// against expected (§4.5). Returns the commit position assigned to the
// last event. Re-sending the same event identifiers at the same expected
// position is idempotent: the server recognizes the replay and returns
// the original commit position, which Append exposes unchanged.
func (c *Client) Append(ctx context.Context, stream string, expected StreamState, events []NewEvent, opts ...CallOption) (uint64, error) {
	o := resolveCallOptions(c.spec, opts)
	cctx, cancel := callContext(ctx, o)
	defer cancel()

	start := time.Now()
	defer c.metrics.observeAppend(start)

	frames := buildAppendFrames(stream, expected, events)

	var resp wire.AppendResponse
	err := c.withRetry(cctx, func(conn *grpc.ClientConn) error {
		r, err := c.streamsClient(conn).Append(cctx, frames)
		if err != nil {
			return transport.Translate(err)
		}
		resp = r
		return nil
	})
	if err != nil {
		return 0, err
	}

	if resp.StreamDeleted {
		return 0, eserr.StreamIsDeleted(stream)
	}
	if resp.WrongExpectedVersion {
		return 0, eserr.WrongCurrentVersion(stream, expectedVersionLabel(expected), resp.ExpectedRevision)
	}
	return resp.CommitPosition, nil
}

func expectedVersionLabel(s StreamState) string {
	if rev, ok := s.Revision(); ok {
		return strconv.FormatUint(rev, 10)
	}
	return s.String()
}

// Delete soft-deletes stream: subsequent appends succeed and the stream
// reappears at a version greater than its previous maximum (§4.5).
func (c *Client) Delete(ctx context.Context, stream string, expected StreamState, opts ...CallOption) error {
	o := resolveCallOptions(c.spec, opts)
	cctx, cancel := callContext(ctx, o)
	defer cancel()

	wireOpts := toAppendOptions(stream, expected)
	return c.withRetry(cctx, func(conn *grpc.ClientConn) error {
		resp, err := c.streamsClient(conn).Delete(cctx, stream, wireOpts)
		if err != nil {
			return transport.Translate(err)
		}
		if resp.StreamDeleted {
			return eserr.StreamIsDeleted(stream)
		}
		if resp.WrongExpectedVersion {
			return eserr.WrongCurrentVersion(stream, expectedVersionLabel(expected), resp.ExpectedRevision)
		}
		return nil
	})
}

// Tombstone hard-deletes stream: any further operation on it yields
// StreamIsDeleted (§4.5).
func (c *Client) Tombstone(ctx context.Context, stream string, expected StreamState, opts ...CallOption) error {
	o := resolveCallOptions(c.spec, opts)
	cctx, cancel := callContext(ctx, o)
	defer cancel()

	wireOpts := toAppendOptions(stream, expected)
	return c.withRetry(cctx, func(conn *grpc.ClientConn) error {
		resp, err := c.streamsClient(conn).Tombstone(cctx, stream, wireOpts)
		if err != nil {
			return transport.Translate(err)
		}
		if resp.WrongExpectedVersion {
			return eserr.WrongCurrentVersion(stream, expectedVersionLabel(expected), resp.ExpectedRevision)
		}
		return nil
	})
}

// RecordIterator is the lazy, single-pass sequence returned by
// ReadStream/ReadAll. Next must be called before each Current; it reports
// false at end-of-stream or on error (check Err once Next returns false).
type RecordIterator struct {
	c         *Client
	streamID  string
	direction ReadDirection
	filter    *Filter
	deadline  time.Duration
	resolve   bool

	fromRevision uint64
	fromCommit   uint64
	fromEnd      bool
	limit        int64

	conn    *grpc.ClientConn
	stream  wire.ReadStream
	cancel  context.CancelFunc
	current RecordedEvent
	err     error
	done    bool
	yielded int64
}

// ReadStream opens a lazy forward/backward read of one stream starting at
// revision from (§4.5). Forward-from-position is inclusive; backward is
// exclusive of the anchor.
func (c *Client) ReadStream(ctx context.Context, stream string, from uint64, direction ReadDirection, limit int64, opts ...CallOption) *RecordIterator {
	o := resolveCallOptions(c.spec, opts)
	return &RecordIterator{
		c:            c,
		streamID:     stream,
		direction:    direction,
		deadline:     o.Deadline,
		resolve:      o.ResolveLinks,
		fromRevision: from,
		limit:        limit,
	}
}

// ReadAll opens a lazy forward/backward read of the $all stream starting
// at commit position fromCommit, optionally restricted by filter (§4.5).
func (c *Client) ReadAll(ctx context.Context, fromCommit uint64, direction ReadDirection, limit int64, filter *Filter, opts ...CallOption) *RecordIterator {
	o := resolveCallOptions(c.spec, opts)
	return &RecordIterator{
		c:          c,
		direction:  direction,
		filter:     filter,
		deadline:   o.Deadline,
		resolve:    o.ResolveLinks,
		fromCommit: fromCommit,
		limit:      limit,
	}
}

// readAllFromEnd opens a backward read of $all anchored at the log's
// current tail rather than at a caller-supplied commit position — the
// server's own "FromEnd" sentinel (SPEC_FULL §C.7), not a backward read
// from commit 0 (which would be exclusive of position 0 and so yield
// nothing on a non-empty store).
func (c *Client) readAllFromEnd(ctx context.Context, limit int64, filter *Filter, opts ...CallOption) *RecordIterator {
	o := resolveCallOptions(c.spec, opts)
	return &RecordIterator{
		c:         c,
		direction: Backward,
		filter:    filter,
		deadline:  o.Deadline,
		resolve:   o.ResolveLinks,
		fromEnd:   true,
		limit:     limit,
	}
}

func directionString(d ReadDirection) string {
	if d == Backward {
		return "Backward"
	}
	return "Forward"
}

// Next advances the iterator, opening the underlying read RPC on first use
// (one RPC per iterator, see defaultReadBatchSize). Returns false at
// end-of-stream or on error.
func (r *RecordIterator) Next(ctx context.Context) bool {
	if r.done {
		return false
	}
	if r.limit > 0 && r.yielded >= r.limit {
		r.done = true
		r.closeStream()
		return false
	}

	for {
		if r.stream == nil {
			if err := r.openPage(ctx); err != nil {
				r.err = err
				r.done = true
				return false
			}
		}

		item, err := r.stream.Recv()
		if err == io.EOF {
			r.closeStream()
			r.done = true
			return false
		}
		if err != nil {
			r.err = transport.Translate(err)
			r.done = true
			r.closeStream()
			return false
		}
		if item.NotFound {
			r.err = eserr.NotFound(r.streamID)
			r.done = true
			r.closeStream()
			return false
		}
		if item.StreamDeleted {
			r.err = eserr.StreamIsDeleted(r.streamID)
			r.done = true
			r.closeStream()
			return false
		}
		if item.Event == nil {
			continue
		}

		rec := fromEventRecord(*item.Event)
		if !r.filter.Matches(rec.StreamID) {
			continue
		}

		r.current = rec
		r.yielded++
		return true
	}
}

func (r *RecordIterator) openPage(ctx context.Context) error {
	var filterInclude, filterExclude []string
	if r.filter != nil {
		if s := r.filter.String(); s != "" {
			if r.filter.IsExclude() {
				filterExclude = []string{s}
			} else {
				filterInclude = []string{s}
			}
		}
	}

	req := wire.ReadRequest{
		StreamID:      r.streamID,
		FromRevision:  r.fromRevision,
		FromEnd:       r.fromEnd,
		FromCommit:    r.fromCommit,
		Direction:     directionString(r.direction),
		Limit:         r.limit,
		ResolveLinks:  r.resolve,
		FilterInclude: filterInclude,
		FilterExclude: filterExclude,
		BatchSize:     defaultReadBatchSize,
	}

	cctx, cancel := callContext(ctx, CallOptions{Deadline: r.deadline})

	conn, err := r.c.mgr.Acquire(cctx)
	if err != nil {
		cancel()
		return err
	}
	stream, err := r.c.streamsClient(conn).Read(cctx, req)
	if err != nil {
		cancel()
		return transport.Translate(err)
	}
	r.conn = conn
	r.stream = stream
	r.cancel = cancel
	return nil
}

func (r *RecordIterator) closeStream() {
	if r.stream != nil {
		r.stream.Close()
		r.stream = nil
	}
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

// Current returns the event produced by the most recent successful Next.
func (r *RecordIterator) Current() RecordedEvent { return r.current }

// Err returns the error that ended iteration, if any.
func (r *RecordIterator) Err() error { return r.err }

// Close releases the underlying RPC early, before exhaustion. Safe to
// call multiple times.
func (r *RecordIterator) Close() {
	r.done = true
	r.closeStream()
}

func fromEventRecord(e wire.EventRecord) RecordedEvent {
	rec := RecordedEvent{
		EventID:           e.EventID,
		EventType:         e.EventType,
		Data:              e.Data,
		Metadata:          e.Metadata,
		ContentType:       e.ContentType,
		StreamID:          e.StreamID,
		StreamPosition:    e.StreamPosition,
		CommitPosition:    e.CommitPosition,
		HasCommitPosition: e.HasCommitPosition,
		RetryCount:        int(e.RetryCount),
		HasRetryCount:     e.HasRetryCount,
		RecordedAt:        e.RecordedAt(),
	}
	if e.Link != nil {
		link := fromEventRecord(*e.Link)
		rec.Link = &link
	}
	return rec
}

// GetCommitPosition is a cheap convenience: a length-1 backward read of
// $all anchored at the server's FromEnd sentinel rather than at commit
// position 0 — a backward read is exclusive of its anchor, so anchoring
// at 0 would return nothing on a non-empty store. Exposed the same way
// the original client's get_commit_position helper is (SPEC_FULL §C.7).
func (c *Client) GetCommitPosition(ctx context.Context, opts ...CallOption) (uint64, error) {
	it := c.readAllFromEnd(ctx, 1, nil, opts...)
	defer it.Close()
	if !it.Next(ctx) {
		if it.Err() != nil {
			return 0, it.Err()
		}
		return 0, nil
	}
	rec := it.Current()
	return rec.CommitPosition, nil
}

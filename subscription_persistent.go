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

	"github.com/google/uuid"
	"google.golang.org/grpc"

	"github.com/sabouaram/eventstore-client-go/eserr"
	"github.com/sabouaram/eventstore-client-go/internal/transport"
	"github.com/sabouaram/eventstore-client-go/internal/wire"
)

// startFromEnd is the symbolic "end" sentinel for SubscriptionInfo.StartFrom
// (§3's glossary: "-1" for end). An empty StartFrom means "leave the
// existing cursor untouched," which only makes sense for Update (§4.7).
const startFromEnd = "-1"

func toWireSettings(info SubscriptionInfo) wire.PersistentSubscriptionSettings {
	s := wire.PersistentSubscriptionSettings{
		GroupName:              info.GroupName,
		EventSource:            info.EventSource,
		ResolveLinks:           info.ResolveLinks,
		Strategy:               strategyString(info.Strategy),
		MessageTimeoutSeconds:  info.MessageTimeoutSeconds,
		MaxRetryCount:          info.MaxRetryCount,
		MinCheckpointCount:     info.MinCheckpointCount,
		MaxCheckpointCount:     info.MaxCheckpointCount,
		CheckpointAfterSeconds: info.CheckpointAfterSeconds,
		MaxSubscriberCount:     info.MaxSubscriberCount,
		LiveBufferSize:         info.LiveBufferSize,
		ReadBatchSize:          info.ReadBatchSize,
		HistoryBufferSize:      info.HistoryBufferSize,
		ExtraStatistics:        info.ExtraStatistics,
	}

	switch info.StartFrom {
	case "":
		// leave the existing cursor untouched (Update only)
	case startFromEnd:
		s.FromEnd, s.HasFromEnd = true, true
	default:
		s.StartFrom, s.HasFromEnd = info.StartFrom, true
	}

	return s
}

func fromWireSettings(w wire.PersistentSubscriptionSettings) SubscriptionInfo {
	startFrom := w.StartFrom
	if w.HasFromEnd && w.FromEnd {
		startFrom = startFromEnd
	}
	s := w
	return SubscriptionInfo{
		GroupName:              s.GroupName,
		EventSource:            s.EventSource,
		StartFrom:              startFrom,
		ResolveLinks:           s.ResolveLinks,
		Strategy:               strategyFromString(s.Strategy),
		MessageTimeoutSeconds:  s.MessageTimeoutSeconds,
		MaxRetryCount:          s.MaxRetryCount,
		MinCheckpointCount:     s.MinCheckpointCount,
		MaxCheckpointCount:     s.MaxCheckpointCount,
		CheckpointAfterSeconds: s.CheckpointAfterSeconds,
		MaxSubscriberCount:     s.MaxSubscriberCount,
		LiveBufferSize:         s.LiveBufferSize,
		ReadBatchSize:          s.ReadBatchSize,
		HistoryBufferSize:      s.HistoryBufferSize,
		ExtraStatistics:        s.ExtraStatistics,
	}
}

func strategyString(s ConsumerStrategy) string {
	switch s {
	case RoundRobin:
		return "RoundRobin"
	case Pinned:
		return "Pinned"
	default:
		return "DispatchToSingle"
	}
}

func strategyFromString(s string) ConsumerStrategy {
	switch s {
	case "RoundRobin":
		return RoundRobin
	case "Pinned":
		return Pinned
	default:
		return DispatchToSingle
	}
}

// CreatePersistentSubscription creates a persistent subscription group on
// a stream (or "$all"). Runs against the leader; on NodeIsNotLeader the
// client rediscovers and retries once (§4.7).
func (c *Client) CreatePersistentSubscription(ctx context.Context, info SubscriptionInfo, opts ...CallOption) error {
	o := resolveCallOptions(c.spec, opts)
	cctx, cancel := callContext(ctx, o)
	defer cancel()
	settings := toWireSettings(info)
	return c.withRetry(cctx, func(conn *grpc.ClientConn) error {
		return transport.Translate(c.persistentSubsClient(conn).Create(cctx, settings))
	})
}

// UpdatePersistentSubscription updates an existing group's settings.
func (c *Client) UpdatePersistentSubscription(ctx context.Context, info SubscriptionInfo, opts ...CallOption) error {
	o := resolveCallOptions(c.spec, opts)
	cctx, cancel := callContext(ctx, o)
	defer cancel()
	settings := toWireSettings(info)
	return c.withRetry(cctx, func(conn *grpc.ClientConn) error {
		return transport.Translate(c.persistentSubsClient(conn).Update(cctx, settings))
	})
}

// GetPersistentSubscriptionInfo fetches one group's current settings.
func (c *Client) GetPersistentSubscriptionInfo(ctx context.Context, group, source string, opts ...CallOption) (SubscriptionInfo, error) {
	o := resolveCallOptions(c.spec, opts)
	cctx, cancel := callContext(ctx, o)
	defer cancel()
	var out SubscriptionInfo
	err := c.withRetry(cctx, func(conn *grpc.ClientConn) error {
		s, err := c.persistentSubsClient(conn).Get(cctx, group, source)
		if err != nil {
			if eserr.HasCode(transport.Translate(err), eserr.CodeNotFound) {
				return eserr.SubscriptionNotFound(group, source)
			}
			return transport.Translate(err)
		}
		out = fromWireSettings(s)
		return nil
	})
	return out, err
}

// ListPersistentSubscriptions lists every group registered on the node.
func (c *Client) ListPersistentSubscriptions(ctx context.Context, opts ...CallOption) ([]SubscriptionInfo, error) {
	o := resolveCallOptions(c.spec, opts)
	cctx, cancel := callContext(ctx, o)
	defer cancel()
	var out []SubscriptionInfo
	err := c.withRetry(cctx, func(conn *grpc.ClientConn) error {
		list, err := c.persistentSubsClient(conn).List(cctx)
		if err != nil {
			return transport.Translate(err)
		}
		out = make([]SubscriptionInfo, len(list))
		for i, s := range list {
			out[i] = fromWireSettings(s)
		}
		return nil
	})
	return out, err
}

// DeletePersistentSubscription removes a group.
func (c *Client) DeletePersistentSubscription(ctx context.Context, group, source string, opts ...CallOption) error {
	o := resolveCallOptions(c.spec, opts)
	cctx, cancel := callContext(ctx, o)
	defer cancel()
	return c.withRetry(cctx, func(conn *grpc.ClientConn) error {
		return transport.Translate(c.persistentSubsClient(conn).Delete(cctx, group, source))
	})
}

// ReplayParkedEvents requests that a group's parked (repeatedly-nacked)
// events be redelivered.
func (c *Client) ReplayParkedEvents(ctx context.Context, group, source string, opts ...CallOption) error {
	o := resolveCallOptions(c.spec, opts)
	cctx, cancel := callContext(ctx, o)
	defer cancel()
	return c.withRetry(cctx, func(conn *grpc.ClientConn) error {
		return transport.Translate(c.persistentSubsClient(conn).ReplayParkedEvents(cctx, group, source))
	})
}

// persistentState is the §4.7.2 state machine: INIT -> RUNNING ->
// STOPPING -> STOPPED.
type persistentState uint8

const (
	stateInit persistentState = iota
	stateRunning
	stateStopping
	stateStopped
)

// PersistentItem is one delivered event of a persistent subscription read,
// paired with the ack/nack handle for it.
type PersistentItem struct {
	Event   RecordedEvent
	eventID uuid.UUID
}

// persistentReader drives one open persistent-subscription bidi stream.
// It implements stopper for the streamerRegistry (§4.8).
type persistentReader struct {
	c      *Client
	group  string
	source string

	mu    sync.Mutex
	state persistentState

	stream  wire.PersistentReadStream
	cancel  context.CancelFunc
	batcher *ackBatcher
	inbox   chan PersistentItem
	done    chan struct{}
	lastErr error
	regID   uint64

	pending map[uuid.UUID]struct{}
}

// ReadPersistentSubscription opens the bidi Read stream for a group,
// pushing the initial options frame (group, source, buffer size,
// uuidOption=string per §4.7) and starting the inbound pump plus the
// outbound ack/nack batcher.
func (c *Client) ReadPersistentSubscription(ctx context.Context, group, source string, bufferSize int) (*persistentReader, error) {
	conn, err := c.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	rpcCtx, cancel := context.WithCancel(ctx)
	stream, err := c.persistentSubsClient(conn).Read(rpcCtx, wire.PersistentReadOptions{
		GroupName:   group,
		EventSource: source,
		BufferSize:  bufferSize,
		UUIDOption:  "string",
	})
	if err != nil {
		cancel()
		return nil, transport.Translate(err)
	}

	r := &persistentReader{
		c:       c,
		group:   group,
		source:  source,
		stream:  stream,
		cancel:  cancel,
		inbox:   make(chan PersistentItem),
		done:    make(chan struct{}),
		pending: make(map[uuid.UUID]struct{}),
	}
	r.batcher = newAckBatcher(defaultAckBatcherConfig(), r.flush)
	r.state = stateInit

	r.regID = registerStreamer(c.reg, r)
	go r.run()
	return r, nil
}

func (r *persistentReader) flush(b ackBatch) {
	var frame wire.PersistentReadRequestFrame
	if b.kind == ackKindAck {
		ack := toWireAck(b.ids)
		frame.Ack = &ack
	} else {
		nack := toWireNack(b.ids, b.action)
		frame.Nack = &nack
	}
	if err := r.stream.Send(frame); err != nil {
		r.mu.Lock()
		if r.lastErr == nil {
			r.lastErr = eserr.ExceptionIteratingRequests(err)
		}
		r.mu.Unlock()
	}
}

// run pumps Recv, turning the first frame (subscription confirmation)
// into the INIT->RUNNING transition, echoing pings as pongs, and handing
// off events to the inbox channel.
func (r *persistentReader) run() {
	defer close(r.done)
	for {
		item, err := r.stream.Recv()
		if err != nil {
			r.mu.Lock()
			if r.state != stateStopped && r.lastErr == nil && err != io.EOF {
				r.lastErr = transport.Translate(err)
			}
			r.state = stateStopped
			r.mu.Unlock()
			return
		}

		if item.SubscriptionConfirmed {
			r.mu.Lock()
			if r.state == stateInit {
				r.state = stateRunning
			}
			r.mu.Unlock()
			continue
		}

		if item.Ping {
			if err := r.stream.Send(wire.PersistentReadRequestFrame{Pong: true}); err != nil {
				r.mu.Lock()
				r.lastErr = eserr.ExceptionIteratingRequests(err)
				r.mu.Unlock()
				return
			}
			continue
		}

		if item.Event == nil {
			continue
		}

		rec := fromEventRecord(*item.Event)
		pi := PersistentItem{Event: rec, eventID: rec.EventID}

		r.mu.Lock()
		r.pending[pi.eventID] = struct{}{}
		state := r.state
		r.mu.Unlock()
		if state == stateStopped {
			return
		}

		select {
		case r.inbox <- pi:
		case <-r.done:
			return
		}
	}
}

// Next blocks for the next delivered event, or returns ok=false at
// end-of-stream/stop/failure.
func (r *persistentReader) Next(ctx context.Context) (PersistentItem, bool) {
	select {
	case pi, open := <-r.inbox:
		if !open {
			return PersistentItem{}, false
		}
		return pi, true
	case <-r.done:
		return PersistentItem{}, false
	case <-ctx.Done():
		return PersistentItem{}, false
	}
}

// Err returns the error that ended the subscription, if any.
func (r *persistentReader) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// Ack acknowledges successful processing of an event delivered by Next.
// Acking an id this reader never delivered, or acking after Stop, is
// rejected locally as ProgrammingError without a round trip (§4.7.3).
func (r *persistentReader) Ack(item PersistentItem) error {
	return r.ackOrNack(item.eventID, ackKindAck, NackPark)
}

// Nack rejects an event with the given disposition.
func (r *persistentReader) Nack(item PersistentItem, action NackAction) error {
	return r.ackOrNack(item.eventID, ackKindNack, action)
}

func (r *persistentReader) ackOrNack(id uuid.UUID, kind ackKind, action NackAction) error {
	r.mu.Lock()
	if r.state == stateStopped || r.state == stateStopping {
		r.mu.Unlock()
		return eserr.ProgrammingError("ack/nack called after subscription stop")
	}
	if _, known := r.pending[id]; !known {
		r.mu.Unlock()
		return eserr.ProgrammingError("ack/nack for an id this subscription never delivered")
	}
	delete(r.pending, id)
	r.mu.Unlock()

	if kind == ackKindAck {
		r.batcher.ack(id)
	} else {
		r.batcher.nack(id, action)
	}
	return nil
}

// Stop drains the batcher, closes the outbound stream, and unregisters
// from the client's registry. Idempotent: Stop in STOPPED is a no-op
// (§4.7.2).
func (r *persistentReader) Stop() {
	r.mu.Lock()
	if r.state == stateStopped || r.state == stateStopping {
		r.mu.Unlock()
		return
	}
	r.state = stateStopping
	r.mu.Unlock()

	r.batcher.stop()
	r.stream.Close()
	r.cancel()

	r.mu.Lock()
	r.state = stateStopped
	r.mu.Unlock()

	r.c.reg.unregister(r.regID)
}

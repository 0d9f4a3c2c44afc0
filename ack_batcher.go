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
	"time"

	"github.com/google/uuid"

	"github.com/sabouaram/eventstore-client-go/internal/wire"
)

// ackKind tags a queued batch entry; NackAction's zero value (NackPark)
// is never mistaken for "this is an ack" because ackKindAck is a distinct
// sentinel.
type ackKind uint8

const (
	ackKindAck ackKind = iota
	ackKindNack
)

type ackRequest struct {
	kind   ackKind
	action NackAction
	id     uuid.UUID
}

// ackBatch is one outbound frame's worth of coalesced ack/nack ids, built
// by ackBatcher and handed to the caller-supplied flush function (§4.7.1).
type ackBatch struct {
	kind   ackKind
	action NackAction
	ids    []uuid.UUID
}

// ackBatcherConfig carries the tunables of §4.7.1, each defaulted per spec.
type ackBatcherConfig struct {
	MaxBatchSize  int
	MaxDelay      time.Duration
	StoppingGrace time.Duration
}

func defaultAckBatcherConfig() ackBatcherConfig {
	return ackBatcherConfig{
		MaxBatchSize:  50,
		MaxDelay:      200 * time.Millisecond,
		StoppingGrace: 200 * time.Millisecond,
	}
}

// ackBatcher coalesces ack/nack calls into batches, flushing on
// batch-full, action-change, timer-elapsed, or stop-requested (§9). It is
// a classic producer/consumer: ack/nack calls are producers, a single
// goroutine is the consumer driven by a channel and a timer.
type ackBatcher struct {
	cfg   ackBatcherConfig
	flush func(ackBatch)

	reqs    chan ackRequest
	stopCh  chan chan struct{}
	done    chan struct{}
}

func newAckBatcher(cfg ackBatcherConfig, flush func(ackBatch)) *ackBatcher {
	b := &ackBatcher{
		cfg:    cfg,
		flush:  flush,
		reqs:   make(chan ackRequest, cfg.MaxBatchSize*2),
		stopCh: make(chan chan struct{}),
		done:   make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *ackBatcher) ack(id uuid.UUID) {
	b.reqs <- ackRequest{kind: ackKindAck, id: id}
}

func (b *ackBatcher) nack(id uuid.UUID, action NackAction) {
	b.reqs <- ackRequest{kind: ackKindNack, action: action, id: id}
}

// stop drains any queued items (waiting up to StoppingGrace for stragglers
// already in flight on reqs) and stops the consumer goroutine. Idempotent.
func (b *ackBatcher) stop() {
	reply := make(chan struct{})
	select {
	case b.stopCh <- reply:
		<-reply
	case <-b.done:
	}
}

func (b *ackBatcher) run() {
	defer close(b.done)

	var pending []ackRequest
	var timer *time.Timer
	var timerC <-chan time.Time

	resetTimer := func() {
		if timer == nil {
			timer = time.NewTimer(b.cfg.MaxDelay)
		} else {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(b.cfg.MaxDelay)
		}
		timerC = timer.C
	}

	flushPending := func() {
		if len(pending) == 0 {
			return
		}
		batch := ackBatch{kind: pending[0].kind, action: pending[0].action}
		for _, r := range pending {
			batch.ids = append(batch.ids, r.id)
		}
		b.flush(batch)
		pending = nil
	}

	for {
		select {
		case req := <-b.reqs:
			if len(pending) > 0 {
				head := pending[0]
				if head.kind != req.kind || (req.kind == ackKindNack && head.action != req.action) {
					flushPending()
				}
			}
			if len(pending) == 0 {
				resetTimer()
			}
			pending = append(pending, req)
			if len(pending) >= b.cfg.MaxBatchSize {
				flushPending()
			}

		case <-timerC:
			flushPending()

		case reply := <-b.stopCh:
			grace := time.NewTimer(b.cfg.StoppingGrace)
			drain := true
			for drain {
				select {
				case req := <-b.reqs:
					if len(pending) > 0 {
						head := pending[0]
						if head.kind != req.kind || (req.kind == ackKindNack && head.action != req.action) {
							flushPending()
						}
					}
					pending = append(pending, req)
					if len(pending) >= b.cfg.MaxBatchSize {
						flushPending()
					}
				case <-grace.C:
					drain = false
				}
			}
			grace.Stop()
			flushPending()
			close(reply)
			return
		}
	}
}

// toWireAck/toWireNack convert a coalesced batch into the outbound wire
// frame persistent_subscription.go sends.
func toWireAck(ids []uuid.UUID) wire.PersistentAck {
	out := make([][16]byte, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return wire.PersistentAck{IDs: out}
}

func toWireNack(ids []uuid.UUID, action NackAction) wire.PersistentNack {
	out := make([][16]byte, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return wire.PersistentNack{IDs: out, Action: nackActionString(action)}
}

func nackActionString(a NackAction) string {
	switch a {
	case NackPark:
		return "Park"
	case NackRetry:
		return "Retry"
	case NackSkip:
		return "Skip"
	case NackStop:
		return "Stop"
	default:
		return "Park"
	}
}

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
	"sync"
	"time"

	"github.com/google/uuid"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ackBatcher", func() {

	It("coalesces a run of same-kind requests into one batch on a change of action", func() {
		var mu sync.Mutex
		var flushed []ackBatch

		cfg := defaultAckBatcherConfig()
		cfg.MaxDelay = time.Hour // disable the timer path for this test
		b := newAckBatcher(cfg, func(batch ackBatch) {
			mu.Lock()
			defer mu.Unlock()
			flushed = append(flushed, batch)
		})

		a1, a2, a3 := uuid.New(), uuid.New(), uuid.New()
		n1 := uuid.New()

		b.ack(a1)
		b.ack(a2)
		b.ack(a3)
		b.nack(n1, NackPark)

		// Wait for the consumer to see the action change (ack -> nack)
		// and flush the ack batch before stopping.
		Eventually(func() int {
			mu.Lock()
			defer mu.Unlock()
			return len(flushed)
		}, time.Second, 5*time.Millisecond).Should(Equal(1))

		b.stop()

		mu.Lock()
		defer mu.Unlock()
		Expect(flushed).To(HaveLen(2))
		Expect(flushed[0].kind).To(Equal(ackKindAck))
		Expect(flushed[0].ids).To(ConsistOf(a1, a2, a3))
		Expect(flushed[1].kind).To(Equal(ackKindNack))
		Expect(flushed[1].action).To(Equal(NackPark))
		Expect(flushed[1].ids).To(ConsistOf(n1))
	})

	It("flushes immediately once MaxBatchSize is reached", func() {
		var mu sync.Mutex
		var flushed []ackBatch

		cfg := defaultAckBatcherConfig()
		cfg.MaxBatchSize = 2
		cfg.MaxDelay = time.Hour
		b := newAckBatcher(cfg, func(batch ackBatch) {
			mu.Lock()
			defer mu.Unlock()
			flushed = append(flushed, batch)
		})

		ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
		for _, id := range ids {
			b.ack(id)
		}

		// Wait for the size-triggered flush to land before stopping.
		Eventually(func() int {
			mu.Lock()
			defer mu.Unlock()
			return len(flushed)
		}, time.Second, 5*time.Millisecond).Should(Equal(1))

		b.stop()

		mu.Lock()
		defer mu.Unlock()
		Expect(flushed).To(HaveLen(2))
		Expect(flushed[0].ids).To(HaveLen(2))
		Expect(flushed[1].ids).To(HaveLen(1))
	})

	It("flushes a pending batch on stop even when neither size nor timer fired", func() {
		var mu sync.Mutex
		var flushed []ackBatch

		cfg := defaultAckBatcherConfig()
		b := newAckBatcher(cfg, func(batch ackBatch) {
			mu.Lock()
			defer mu.Unlock()
			flushed = append(flushed, batch)
		})

		id := uuid.New()
		b.ack(id)
		b.stop()

		mu.Lock()
		defer mu.Unlock()
		Expect(flushed).To(HaveLen(1))
		Expect(flushed[0].ids).To(ConsistOf(id))
	})

	It("drains a straggler request that arrives during the stopping grace window", func() {
		var mu sync.Mutex
		var flushed []ackBatch

		cfg := defaultAckBatcherConfig()
		cfg.MaxDelay = time.Hour
		cfg.StoppingGrace = 300 * time.Millisecond
		b := newAckBatcher(cfg, func(batch ackBatch) {
			mu.Lock()
			defer mu.Unlock()
			flushed = append(flushed, batch)
		})

		straggler := uuid.New()
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			time.Sleep(50 * time.Millisecond)
			b.ack(straggler)
		}()

		b.stop()
		wg.Wait()

		mu.Lock()
		defer mu.Unlock()
		Expect(flushed).To(HaveLen(1))
		Expect(flushed[0].ids).To(ConsistOf(straggler))
	})

	It("is idempotent under repeated stop calls", func() {
		cfg := defaultAckBatcherConfig()
		b := newAckBatcher(cfg, func(ackBatch) {})
		b.ack(uuid.New())
		b.stop()
		Expect(func() { b.stop() }).ToNot(Panic())
	})

	It("flushes on the MaxDelay timer without an explicit stop", func() {
		var mu sync.Mutex
		var flushed []ackBatch

		cfg := defaultAckBatcherConfig()
		cfg.MaxDelay = 20 * time.Millisecond
		b := newAckBatcher(cfg, func(batch ackBatch) {
			mu.Lock()
			defer mu.Unlock()
			flushed = append(flushed, batch)
		})

		id := uuid.New()
		b.ack(id)

		Eventually(func() int {
			mu.Lock()
			defer mu.Unlock()
			return len(flushed)
		}, time.Second, 5*time.Millisecond).Should(Equal(1))

		b.stop()
	})
})

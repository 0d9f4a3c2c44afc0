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
	"runtime"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// fakeStreamer is a minimal stopper used to exercise streamerRegistry
// without depending on a real catch-up/persistent reader.
type fakeStreamer struct {
	stopped atomic.Bool
}

func (f *fakeStreamer) Stop() { f.stopped.Store(true) }

var _ = Describe("streamerRegistry", func() {

	It("stops every live entry on stopAll", func() {
		r := newStreamerRegistry()
		a := &fakeStreamer{}
		b := &fakeStreamer{}
		registerStreamer(r, a)
		registerStreamer(r, b)

		r.stopAll()

		Expect(a.stopped.Load()).To(BeTrue())
		Expect(b.stopped.Load()).To(BeTrue())
	})

	It("tolerates unregister before stopAll", func() {
		r := newStreamerRegistry()
		a := &fakeStreamer{}
		id := registerStreamer(r, a)
		r.unregister(id)

		Expect(func() { r.stopAll() }).ToNot(Panic())
		Expect(a.stopped.Load()).To(BeFalse())
	})

	It("tolerates a duplicate unregister call", func() {
		r := newStreamerRegistry()
		a := &fakeStreamer{}
		id := registerStreamer(r, a)

		r.unregister(id)
		Expect(func() { r.unregister(id) }).ToNot(Panic())
	})

	It("tolerates stopAll on an empty registry", func() {
		r := newStreamerRegistry()
		Expect(func() { r.stopAll() }).ToNot(Panic())
	})

	It("silently skips an entry collected by the garbage collector", func() {
		r := newStreamerRegistry()
		func() {
			a := &fakeStreamer{}
			registerStreamer(r, a)
		}()

		runtime.GC()
		runtime.GC()

		Expect(func() { r.stopAll() }).ToNot(Panic())
	})
})

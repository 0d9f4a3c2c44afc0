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

package esdb_test

import (
	esdb "github.com/sabouaram/eventstore-client-go"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("StreamState", func() {

	It("classifies Any", func() {
		s := esdb.Any
		Expect(s.IsAny()).To(BeTrue())
		Expect(s.IsNoStream()).To(BeFalse())
		Expect(s.IsExists()).To(BeFalse())
		_, ok := s.Revision()
		Expect(ok).To(BeFalse())
		Expect(s.String()).To(Equal("any"))
	})

	It("classifies NoStream", func() {
		s := esdb.NoStream
		Expect(s.IsNoStream()).To(BeTrue())
		Expect(s.IsAny()).To(BeFalse())
		Expect(s.String()).To(Equal("no_stream"))
	})

	It("classifies StreamExists", func() {
		s := esdb.StreamExists
		Expect(s.IsExists()).To(BeTrue())
		Expect(s.String()).To(Equal("exists"))
	})

	It("classifies a concrete revision", func() {
		s := esdb.StreamRevision(42)
		Expect(s.IsAny()).To(BeFalse())
		Expect(s.IsNoStream()).To(BeFalse())
		Expect(s.IsExists()).To(BeFalse())
		rev, ok := s.Revision()
		Expect(ok).To(BeTrue())
		Expect(rev).To(Equal(uint64(42)))
		Expect(s.String()).To(Equal("revision"))
	})

	It("treats revision zero as a distinct concrete token from Any", func() {
		s := esdb.StreamRevision(0)
		rev, ok := s.Revision()
		Expect(ok).To(BeTrue())
		Expect(rev).To(Equal(uint64(0)))
		Expect(s.IsAny()).To(BeFalse())
	})
})

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
	"errors"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/eventstore-client-go/eserr"
	"github.com/sabouaram/eventstore-client-go/internal/transport"
	"github.com/sabouaram/eventstore-client-go/internal/wire"
)

// fakeStreamsClient is a hand-rolled wire.StreamsClient: no network, no
// codegen, just enough bookkeeping for the facade tests below to assert
// against what the facade sent and control what it receives back.
type fakeStreamsClient struct {
	appendFrames []wire.AppendRequestFrame
	appendResp   wire.AppendResponse
	appendErr    error

	deleteResp wire.AppendResponse
	deleteErr  error

	tombstoneResp wire.AppendResponse
	tombstoneErr  error

	metaResult wire.StreamMetadataResult
	metaErr    error

	setMetaResp wire.AppendResponse
	setMetaErr  error

	readItems []wire.ReadResponseItem
	readErr   error

	subscribeItems []wire.SubscribeResponseItem
	subscribeErr   error
	lastReadReq    wire.ReadRequest
	lastSubscribe  wire.SubscribeRequest
}

func (f *fakeStreamsClient) Append(ctx context.Context, frames []wire.AppendRequestFrame) (wire.AppendResponse, error) {
	f.appendFrames = frames
	return f.appendResp, f.appendErr
}

func (f *fakeStreamsClient) Read(ctx context.Context, req wire.ReadRequest) (wire.ReadStream, error) {
	f.lastReadReq = req
	if f.readErr != nil {
		return nil, f.readErr
	}
	return &fakeReadStream{items: f.readItems}, nil
}

func (f *fakeStreamsClient) Delete(ctx context.Context, streamID string, opts wire.AppendOptions) (wire.AppendResponse, error) {
	return f.deleteResp, f.deleteErr
}

func (f *fakeStreamsClient) Tombstone(ctx context.Context, streamID string, opts wire.AppendOptions) (wire.AppendResponse, error) {
	return f.tombstoneResp, f.tombstoneErr
}

func (f *fakeStreamsClient) GetStreamMetadata(ctx context.Context, streamID string) (wire.StreamMetadataResult, error) {
	return f.metaResult, f.metaErr
}

func (f *fakeStreamsClient) SetStreamMetadata(ctx context.Context, streamID string, metadata map[string]any, opts wire.AppendOptions) (wire.AppendResponse, error) {
	return f.setMetaResp, f.setMetaErr
}

func (f *fakeStreamsClient) Subscribe(ctx context.Context, req wire.SubscribeRequest) (wire.SubscribeStream, error) {
	f.lastSubscribe = req
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	return &fakeSubscribeStream{ctx: ctx, items: f.subscribeItems}, nil
}

// fakeReadStream replays a fixed slice of items, then io.EOF.
type fakeReadStream struct {
	items  []wire.ReadResponseItem
	idx    int
	closed bool
}

func (f *fakeReadStream) Recv() (wire.ReadResponseItem, error) {
	if f.idx < len(f.items) {
		it := f.items[f.idx]
		f.idx++
		return it, nil
	}
	return wire.ReadResponseItem{}, io.EOF
}

func (f *fakeReadStream) Close() error {
	f.closed = true
	return nil
}

// fakeSubscribeStream replays a fixed slice of items, then blocks on its
// bound context until cancellation — standing in for a live server
// streaming Recv() that only ever unblocks when the RPC's context is
// cancelled (exactly what Stop() is required to do).
type fakeSubscribeStream struct {
	ctx    context.Context
	items  []wire.SubscribeResponseItem
	idx    int
	closed bool
}

func (f *fakeSubscribeStream) Recv() (wire.SubscribeResponseItem, error) {
	if f.idx < len(f.items) {
		it := f.items[f.idx]
		f.idx++
		return it, nil
	}
	<-f.ctx.Done()
	return wire.SubscribeResponseItem{}, f.ctx.Err()
}

func (f *fakeSubscribeStream) Close() error {
	f.closed = true
	return nil
}

// fakePersistentSubscriptionsClient is a hand-rolled wire.PersistentSubscriptionsClient.
type fakePersistentSubscriptionsClient struct {
	createErr, updateErr, deleteErr, replayErr error
	getSettings                                wire.PersistentSubscriptionSettings
	getErr                                     error
	listSettings                               []wire.PersistentSubscriptionSettings
	listErr                                    error

	readItems []wire.PersistentReadResponseItem
	readErr   error
}

func (f *fakePersistentSubscriptionsClient) Create(ctx context.Context, settings wire.PersistentSubscriptionSettings) error {
	return f.createErr
}

func (f *fakePersistentSubscriptionsClient) Update(ctx context.Context, settings wire.PersistentSubscriptionSettings) error {
	return f.updateErr
}

func (f *fakePersistentSubscriptionsClient) Get(ctx context.Context, group, source string) (wire.PersistentSubscriptionSettings, error) {
	return f.getSettings, f.getErr
}

func (f *fakePersistentSubscriptionsClient) List(ctx context.Context) ([]wire.PersistentSubscriptionSettings, error) {
	return f.listSettings, f.listErr
}

func (f *fakePersistentSubscriptionsClient) Delete(ctx context.Context, group, source string) error {
	return f.deleteErr
}

func (f *fakePersistentSubscriptionsClient) ReplayParkedEvents(ctx context.Context, group, source string) error {
	return f.replayErr
}

func (f *fakePersistentSubscriptionsClient) Read(ctx context.Context, opts wire.PersistentReadOptions) (wire.PersistentReadStream, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return &fakePersistentReadStream{ctx: ctx, items: f.readItems}, nil
}

// fakePersistentReadStream mirrors fakeSubscribeStream's "block until the
// RPC context is cancelled" behavior on the bidi persistent-subscription
// stream, plus records every outbound ack/nack/pong frame.
type fakePersistentReadStream struct {
	ctx   context.Context
	items []wire.PersistentReadResponseItem
	idx   int
	sent  []wire.PersistentReadRequestFrame
	closed bool
}

func (f *fakePersistentReadStream) Recv() (wire.PersistentReadResponseItem, error) {
	if f.idx < len(f.items) {
		it := f.items[f.idx]
		f.idx++
		return it, nil
	}
	<-f.ctx.Done()
	return wire.PersistentReadResponseItem{}, f.ctx.Err()
}

func (f *fakePersistentReadStream) Send(frame wire.PersistentReadRequestFrame) error {
	f.sent = append(f.sent, frame)
	return nil
}

func (f *fakePersistentReadStream) Close() error {
	f.closed = true
	return nil
}

// newTestClient builds a Client whose facade logic (retry, option
// resolution, error translation) runs for real, but whose wire-level
// clients are the fakes above instead of a live gRPC channel. The
// Manager still needs a *grpc.ClientConn to hand back from Acquire; a
// non-blocking dial to a passthrough target produces one without ever
// touching the network, since the fakes never invoke it.
func newTestClient(sc wire.StreamsClient, pc wire.PersistentSubscriptionsClient) *Client {
	c := &Client{
		spec:    ConnectionSpec{DefaultDeadline: 5 * time.Second},
		logger:  discardLogger{},
		reg:     newStreamerRegistry(),

		newStreamsClient:    func(*grpc.ClientConn) wire.StreamsClient { return sc },
		newPersistentClient: func(*grpc.ClientConn) wire.PersistentSubscriptionsClient { return pc },
	}
	c.mgr = transport.NewManager(func(ctx context.Context) (*grpc.ClientConn, error) {
		return grpc.DialContext(ctx, "passthrough:///esdb-test", grpc.WithTransportCredentials(insecure.NewCredentials()))
	})
	return c
}

var _ = Describe("Client.Append", func() {
	It("returns the assigned commit position on success", func() {
		sc := &fakeStreamsClient{appendResp: wire.AppendResponse{CommitPosition: 42}}
		c := newTestClient(sc, nil)

		pos, err := c.Append(context.Background(), "stream-a", Any, []NewEvent{{EventType: "t", Data: []byte("x")}})
		Expect(err).NotTo(HaveOccurred())
		Expect(pos).To(Equal(uint64(42)))
		Expect(sc.appendFrames).To(HaveLen(1))
		Expect(sc.appendFrames[0].ProposedEvents).To(HaveLen(1))
		Expect(sc.appendFrames[0].Options.ExpectedAny).To(BeTrue())
	})

	It("returns a typed WrongCurrentVersion error when the server rejects the expected version", func() {
		sc := &fakeStreamsClient{appendResp: wire.AppendResponse{WrongExpectedVersion: true, ExpectedRevision: "3"}}
		c := newTestClient(sc, nil)

		_, err := c.Append(context.Background(), "stream-a", StreamRevision(5), nil)
		Expect(err).To(HaveOccurred())
		Expect(eserr.HasCode(err, eserr.CodeWrongCurrentVersion)).To(BeTrue())
	})

	It("returns StreamIsDeleted when the server reports the stream as tombstoned", func() {
		sc := &fakeStreamsClient{appendResp: wire.AppendResponse{StreamDeleted: true}}
		c := newTestClient(sc, nil)

		_, err := c.Append(context.Background(), "stream-a", Any, nil)
		Expect(err).To(HaveOccurred())
		Expect(eserr.HasCode(err, eserr.CodeStreamIsDeleted)).To(BeTrue())
	})

	It("translates a raw transport error instead of returning it verbatim", func() {
		sc := &fakeStreamsClient{appendErr: errors.New("boom")}
		c := newTestClient(sc, nil)

		_, err := c.Append(context.Background(), "stream-a", Any, nil)
		Expect(err).To(HaveOccurred())
		Expect(eserr.HasCode(err, eserr.CodeInternalError)).To(BeTrue())
		Expect(errors.Unwrap(err)).To(MatchError("boom"))
	})
})

var _ = Describe("Client.ReadStream / ReadAll", func() {
	It("decodes every yielded event and stops cleanly at EOF", func() {
		sc := &fakeStreamsClient{readItems: []wire.ReadResponseItem{
			{Event: &wire.EventRecord{StreamID: "s", EventType: "a", StreamPosition: 0}},
			{Event: &wire.EventRecord{StreamID: "s", EventType: "b", StreamPosition: 1}},
		}}
		c := newTestClient(sc, nil)

		it := c.ReadStream(context.Background(), "s", 0, Forward, 0)
		defer it.Close()

		var types []string
		for it.Next(context.Background()) {
			types = append(types, it.Current().EventType)
		}
		Expect(it.Err()).NotTo(HaveOccurred())
		Expect(types).To(Equal([]string{"a", "b"}))
		Expect(sc.lastReadReq.StreamID).To(Equal("s"))
		Expect(sc.lastReadReq.Direction).To(Equal("Forward"))
	})

	It("surfaces NotFound for a stream that doesn't exist", func() {
		sc := &fakeStreamsClient{readItems: []wire.ReadResponseItem{{NotFound: true}}}
		c := newTestClient(sc, nil)

		it := c.ReadStream(context.Background(), "missing", 0, Forward, 0)
		defer it.Close()

		Expect(it.Next(context.Background())).To(BeFalse())
		Expect(eserr.HasCode(it.Err(), eserr.CodeNotFound)).To(BeTrue())
	})

	It("anchors GetCommitPosition at the server's FromEnd sentinel, not commit 0", func() {
		sc := &fakeStreamsClient{readItems: []wire.ReadResponseItem{
			{Event: &wire.EventRecord{StreamID: "$all", CommitPosition: 999, HasCommitPosition: true}},
		}}
		c := newTestClient(sc, nil)

		pos, err := c.GetCommitPosition(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(pos).To(Equal(uint64(999)))
		Expect(sc.lastReadReq.FromEnd).To(BeTrue())
		Expect(sc.lastReadReq.Direction).To(Equal("Backward"))
		Expect(sc.lastReadReq.Limit).To(Equal(int64(1)))
	})
})

var _ = Describe("Client.Subscribe (catch-up)", func() {
	It("delivers items and Stop actually cancels the in-flight RPC", func() {
		sc := &fakeStreamsClient{subscribeItems: []wire.SubscribeResponseItem{
			{Event: &wire.EventRecord{StreamID: "s", EventType: "a"}},
		}}
		c := newTestClient(sc, nil)

		r, err := c.Subscribe(context.Background(), CatchUpOptions{StreamID: "s"})
		Expect(err).NotTo(HaveOccurred())

		item, ok := r.Next(context.Background())
		Expect(ok).To(BeTrue())
		Expect(item.Event.EventType).To(Equal("a"))

		// The fake's Recv blocks on its bound RPC context from here on,
		// exactly like a live server streaming Recv() would. If Stop
		// only half-closed the send side (as it used to) this reader's
		// run() goroutine — and the fake Recv() call inside it — would
		// never unblock, and r.done would never close.
		r.Stop()

		Eventually(func() bool {
			select {
			case <-r.done:
				return true
			default:
				return false
			}
		}, time.Second, 5*time.Millisecond).Should(BeTrue())
	})
})

var _ = Describe("Client.ReadPersistentSubscription", func() {
	It("delivers events, acks them, and Stop cancels the bidi RPC", func() {
		id := [16]byte{1, 2, 3}
		pc := &fakePersistentSubscriptionsClient{readItems: []wire.PersistentReadResponseItem{
			{SubscriptionConfirmed: true},
			{Event: &wire.EventRecord{StreamID: "s", EventID: id, EventType: "a"}},
		}}
		c := newTestClient(nil, pc)

		r, err := c.ReadPersistentSubscription(context.Background(), "group", "s", 16)
		Expect(err).NotTo(HaveOccurred())

		item, ok := r.Next(context.Background())
		Expect(ok).To(BeTrue())
		Expect(item.Event.EventType).To(Equal("a"))

		Expect(r.Ack(item)).NotTo(HaveOccurred())

		r.Stop()

		Eventually(func() bool {
			select {
			case <-r.done:
				return true
			default:
				return false
			}
		}, time.Second, 5*time.Millisecond).Should(BeTrue())
	})

	It("rejects acking an id the subscription never delivered", func() {
		pc := &fakePersistentSubscriptionsClient{readItems: []wire.PersistentReadResponseItem{
			{SubscriptionConfirmed: true},
		}}
		c := newTestClient(nil, pc)

		r, err := c.ReadPersistentSubscription(context.Background(), "group", "s", 16)
		Expect(err).NotTo(HaveOccurred())
		defer r.Stop()

		err = r.Ack(PersistentItem{})
		Expect(err).To(HaveOccurred())
		Expect(eserr.HasCode(err, eserr.CodeProgrammingError)).To(BeTrue())
	})
})

var _ = Describe("Client.GetStreamMetadata", func() {
	It("returns StreamIsDeleted for a tombstoned stream instead of silently discarding the flag", func() {
		sc := &fakeStreamsClient{metaResult: wire.StreamMetadataResult{Deleted: true}}
		c := newTestClient(sc, nil)

		_, err := c.GetStreamMetadata(context.Background(), "stream-a")
		Expect(err).To(HaveOccurred())
		Expect(eserr.HasCode(err, eserr.CodeStreamIsDeleted)).To(BeTrue())
	})

	It("returns an empty mapping for a stream with no metadata of its own", func() {
		sc := &fakeStreamsClient{metaResult: wire.StreamMetadataResult{Metadata: nil}}
		c := newTestClient(sc, nil)

		meta, err := c.GetStreamMetadata(context.Background(), "stream-a")
		Expect(err).NotTo(HaveOccurred())
		Expect(meta).To(BeEmpty())
	})

	It("returns the decoded mapping unchanged when present", func() {
		sc := &fakeStreamsClient{metaResult: wire.StreamMetadataResult{Metadata: map[string]any{TruncateBeforeKey: float64(3)}}}
		c := newTestClient(sc, nil)

		meta, err := c.GetStreamMetadata(context.Background(), "stream-a")
		Expect(err).NotTo(HaveOccurred())
		Expect(meta).To(HaveKeyWithValue(TruncateBeforeKey, float64(3)))
	})
})

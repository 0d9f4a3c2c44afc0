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

package wire

import "context"

// StreamsClient is the client side of the `streams` service (§6). Its
// concrete implementation (internal/transport) marshals these calls onto
// a gRPC channel; tests substitute a fake implementing the same
// interface.
type StreamsClient interface {
	Append(ctx context.Context, frames []AppendRequestFrame) (AppendResponse, error)
	Read(ctx context.Context, req ReadRequest) (ReadStream, error)
	Delete(ctx context.Context, streamID string, opts AppendOptions) (AppendResponse, error)
	Tombstone(ctx context.Context, streamID string, opts AppendOptions) (AppendResponse, error)
	GetStreamMetadata(ctx context.Context, streamID string) (StreamMetadataResult, error)
	SetStreamMetadata(ctx context.Context, streamID string, metadata map[string]any, opts AppendOptions) (AppendResponse, error)
	Subscribe(ctx context.Context, req SubscribeRequest) (SubscribeStream, error)
}

// StreamMetadataResult is the decoded response of GetStreamMetadata. Deleted
// is set when the stream has been tombstoned rather than merely having no
// metadata of its own (§4.5).
type StreamMetadataResult struct {
	Metadata map[string]any
	Deleted  bool
}

// ReadStream is a single-pass, lazily-pulled sequence of read results.
type ReadStream interface {
	Recv() (ReadResponseItem, error) // io.EOF when exhausted
	Close() error
}

// SubscribeStream is a single-pass, server-driven sequence of catch-up
// subscription items.
type SubscribeStream interface {
	Recv() (SubscribeResponseItem, error)
	Close() error
}

// PersistentSubscriptionsClient is the client side of the
// `persistent_subscriptions` service (§6).
type PersistentSubscriptionsClient interface {
	Create(ctx context.Context, settings PersistentSubscriptionSettings) error
	Update(ctx context.Context, settings PersistentSubscriptionSettings) error
	Get(ctx context.Context, group, source string) (PersistentSubscriptionSettings, error)
	List(ctx context.Context) ([]PersistentSubscriptionSettings, error)
	Delete(ctx context.Context, group, source string) error
	ReplayParkedEvents(ctx context.Context, group, source string) error
	Read(ctx context.Context, opts PersistentReadOptions) (PersistentReadStream, error)
}

// PersistentReadStream is the bidirectional stream behind a persistent
// subscription's Read operation (§4.7).
type PersistentReadStream interface {
	Recv() (PersistentReadResponseItem, error)
	Send(PersistentReadRequestFrame) error
	Close() error
}

// GossipClient is the client side of the `gossip` service (§4.3).
type GossipClient interface {
	Read(ctx context.Context) (GossipResponse, error)
}

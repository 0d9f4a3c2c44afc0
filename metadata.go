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

	"google.golang.org/grpc"

	"github.com/sabouaram/eventstore-client-go/eserr"
	"github.com/sabouaram/eventstore-client-go/internal/transport"
	"github.com/sabouaram/eventstore-client-go/internal/wire"
)

// TruncateBeforeKey and ACLKey name the two recognized system metadata
// keys (§4.5): `$tb` (truncate-before position) and `$acl` (access
// control list).
const (
	TruncateBeforeKey = "$tb"
	ACLKey            = "$acl"
)

// GetStreamMetadata reads the JSON mapping stored in stream's
// system-prefixed sibling stream ($$<stream>). An absent or soft-deleted
// stream yields an empty mapping; a tombstoned stream yields
// StreamIsDeleted — note this is asymmetric with SetStreamMetadata, which
// succeeds on a tombstoned stream's sibling (§9 Open Question: the
// metadata stream itself is never tombstoned by Tombstone(stream), only
// the data stream is, so writes to $$<stream> keep working).
func (c *Client) GetStreamMetadata(ctx context.Context, stream string, opts ...CallOption) (map[string]any, error) {
	o := resolveCallOptions(c.spec, opts)
	cctx, cancel := callContext(ctx, o)
	defer cancel()

	var res wire.StreamMetadataResult
	err := c.withRetry(cctx, func(conn *grpc.ClientConn) error {
		r, err := c.streamsClient(conn).GetStreamMetadata(cctx, stream)
		if err != nil {
			return transport.Translate(err)
		}
		res = r
		return nil
	})
	if err != nil {
		if eserr.HasCode(err, eserr.CodeNotFound) {
			return map[string]any{}, nil
		}
		return nil, err
	}
	if res.Deleted {
		return nil, eserr.StreamIsDeleted(stream)
	}
	meta := res.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	return meta, nil
}

// SetStreamMetadata overwrites the JSON mapping stored in stream's
// system-prefixed sibling stream, under the same optimistic-concurrency
// rules as Append (§4.5).
func (c *Client) SetStreamMetadata(ctx context.Context, stream string, metadata map[string]any, expected StreamState, opts ...CallOption) error {
	o := resolveCallOptions(c.spec, opts)
	cctx, cancel := callContext(ctx, o)
	defer cancel()

	wireOpts := toAppendOptions(stream, expected)
	return c.withRetry(cctx, func(conn *grpc.ClientConn) error {
		resp, err := c.streamsClient(conn).SetStreamMetadata(cctx, stream, metadata, wireOpts)
		if err != nil {
			return transport.Translate(err)
		}
		if resp.WrongExpectedVersion {
			return eserr.WrongCurrentVersion(stream, expectedVersionLabel(expected), resp.ExpectedRevision)
		}
		return nil
	})
}

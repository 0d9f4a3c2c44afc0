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

// Package wire stands in for the code a protoc-gen-go-grpc run would
// produce from the streams/persistent_subscriptions/gossip/server_features
// schema (§1 treats that schema as an external collaborator). It defines
// the Go-shaped request/response/stream-item types the rest of the module
// talks to, plus the three client-stub interfaces, so internal/transport and
// the facade packages have something concrete to depend on without this
// module vendoring a .proto file and a generator step.
package wire

import "time"

// GossipMember mirrors the gossip RPC's per-node response entry.
type GossipMember struct {
	Address   string
	Port      int
	State     string // "Leader" | "Follower" | "ReadOnlyReplica" | other
	IsAlive   bool
}

// GossipResponse is the result of one gossip.Read call.
type GossipResponse struct {
	Members []GossipMember
}

// EventRecord mirrors one recorded event as it travels over the wire.
type EventRecord struct {
	EventID        [16]byte
	EventType      string
	Data           []byte
	Metadata       []byte
	ContentType    string
	StreamID       string
	StreamPosition uint64

	CommitPosition    uint64
	HasCommitPosition bool

	Link *EventRecord

	RetryCount    int32
	HasRetryCount bool

	RecordedAtTicks int64 // 100ns ticks since Unix epoch, per §3
}

// RecordedAt converts the server's 100ns-tick timestamp to a time.Time.
func (e EventRecord) RecordedAt() time.Time {
	const ticksPerSecond = 10_000_000
	sec := e.RecordedAtTicks / ticksPerSecond
	nsec := (e.RecordedAtTicks % ticksPerSecond) * 100
	return time.Unix(sec, nsec).UTC()
}

// AppendRequestFrame is one frame of a streamed Append call: the first
// frame of a given logical append carries Options, every frame (including
// the first) carries zero or more ProposedEvents.
type AppendRequestFrame struct {
	Options        *AppendOptions
	ProposedEvents []ProposedEvent
}

type AppendOptions struct {
	StreamID           string
	ExpectedNoStream   bool
	ExpectedAny        bool
	ExpectedStreamExists bool
	ExpectedRevision   uint64
	HasExpectedRevision bool
}

type ProposedEvent struct {
	EventID     [16]byte
	EventType   string
	Data        []byte
	Metadata    []byte
	ContentType string
}

// AppendResponse is returned once, after the last AppendRequestFrame.
type AppendResponse struct {
	Success            bool
	CommitPosition     uint64
	CurrentRevision    uint64
	ExpectedRevision   string // symbolic or decimal, for error messages
	WrongExpectedVersion bool
	StreamDeleted      bool
}

// ReadRequest covers both readStream and readAll (StreamID == "" means $all).
type ReadRequest struct {
	StreamID      string
	FromRevision  uint64
	FromEnd       bool
	FromCommit    uint64
	Direction     string // "Forward" | "Backward"
	Limit         int64
	ResolveLinks  bool
	FilterInclude []string
	FilterExclude []string
	BatchSize     int
}

type ReadResponseItem struct {
	Event        *EventRecord
	NotFound     bool
	StreamDeleted bool
}

// SubscribeRequest opens a catch-up subscription.
type SubscribeRequest struct {
	StreamID                     string
	FromRevision                 uint64
	FromEnd                      bool
	FromCommit                   uint64
	ResolveLinks                 bool
	FilterInclude                []string
	FilterExclude                []string
	IncludeCheckpoints           bool
	IncludeCaughtUp              bool
	WindowSize                   int
	CheckpointIntervalMultiplier int
}

// SubscribeResponseItem is the tagged union delivered by a catch-up
// subscription (§4.6): exactly one field is set.
type SubscribeResponseItem struct {
	Event      *EventRecord
	Checkpoint *Checkpoint
	CaughtUp   bool
	FellBehind bool
}

type Checkpoint struct {
	CommitPosition uint64
	StreamPosition uint64
}

// PersistentSubscriptionSettings is the shared option schema for every
// persistent-subscription admin RPC (§4.7).
type PersistentSubscriptionSettings struct {
	GroupName   string
	EventSource string
	StartFrom   string
	FromEnd     bool
	HasFromEnd  bool

	ResolveLinks           bool
	Strategy               string
	MessageTimeoutSeconds  int
	MaxRetryCount          int
	MinCheckpointCount     int
	MaxCheckpointCount     int
	CheckpointAfterSeconds int
	MaxSubscriberCount     int
	LiveBufferSize         int
	ReadBatchSize          int
	HistoryBufferSize      int
	ExtraStatistics        bool
}

// PersistentReadRequestFrame is one outbound frame on the persistent-
// subscription bidi stream.
type PersistentReadRequestFrame struct {
	Options *PersistentReadOptions
	Ack     *PersistentAck
	Nack    *PersistentNack
	Pong    bool
}

type PersistentReadOptions struct {
	GroupName   string
	EventSource string
	BufferSize  int
	UUIDOption  string // "string" | "structured"
}

type PersistentAck struct {
	IDs [][16]byte
}

type PersistentNack struct {
	IDs    [][16]byte
	Action string // "Park" | "Retry" | "Skip" | "Stop"
}

// PersistentReadResponseItem is one inbound frame on the persistent-
// subscription bidi stream.
type PersistentReadResponseItem struct {
	SubscriptionConfirmed bool
	Event                 *EventRecord
	Ping                  bool
}

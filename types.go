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
)

// NewEvent is a client-authored event awaiting append. EventID is
// generated if the zero value is passed to Append.
type NewEvent struct {
	EventID     uuid.UUID
	EventType   string
	Data        []byte
	Metadata    []byte
	ContentType string
}

const defaultContentType = "application/json"

// WithDefaults returns a copy of e with EventID generated and ContentType
// defaulted when left zero.
func (e NewEvent) WithDefaults() NewEvent {
	if e.EventID == uuid.Nil {
		e.EventID = uuid.New()
	}
	if e.ContentType == "" {
		e.ContentType = defaultContentType
	}
	return e
}

// RecordedEvent is a server-observed, immutable event.
type RecordedEvent struct {
	EventID        uuid.UUID
	EventType      string
	Data           []byte
	Metadata       []byte
	ContentType    string
	StreamID       string
	StreamPosition uint64

	// CommitPosition is set for events read from $all; zero value paired
	// with HasCommitPosition=false for stream-scoped reads that don't
	// carry a commit position in the response.
	CommitPosition    uint64
	HasCommitPosition bool

	// Link is populated when the event was delivered via a resolved link
	// (a $> event in a category/by-event-type projection stream).
	Link *RecordedEvent

	// RetryCount is only meaningful for events delivered through a
	// persistent subscription.
	RetryCount    int
	HasRetryCount bool

	RecordedAt time.Time
}

// StreamState is the optimistic-concurrency expected-version token. Use
// the package-level NoStream/StreamExists/Any values for the symbolic
// forms, or StreamRevision(n) for a concrete position.
type StreamState struct {
	kind     streamStateKind
	revision uint64
}

type streamStateKind uint8

const (
	streamStateAny streamStateKind = iota
	streamStateNoStream
	streamStateExists
	streamStateRevision
)

var (
	// Any skips the optimistic-concurrency check entirely.
	Any = StreamState{kind: streamStateAny}
	// NoStream requires the stream to not exist yet.
	NoStream = StreamState{kind: streamStateNoStream}
	// StreamExists requires the stream to exist at any positive version.
	StreamExists = StreamState{kind: streamStateExists}
)

// StreamRevision builds a concrete expected-version token.
func StreamRevision(n uint64) StreamState {
	return StreamState{kind: streamStateRevision, revision: n}
}

// IsAny, IsNoStream, IsExists report which symbolic form s is.
func (s StreamState) IsAny() bool      { return s.kind == streamStateAny }
func (s StreamState) IsNoStream() bool { return s.kind == streamStateNoStream }
func (s StreamState) IsExists() bool   { return s.kind == streamStateExists }

// Revision returns (position, true) when s is a concrete numeric token.
func (s StreamState) Revision() (uint64, bool) {
	if s.kind == streamStateRevision {
		return s.revision, true
	}
	return 0, false
}

func (s StreamState) String() string {
	switch s.kind {
	case streamStateAny:
		return "any"
	case streamStateNoStream:
		return "no_stream"
	case streamStateExists:
		return "exists"
	default:
		return "revision"
	}
}

// ReadDirection selects the order events are returned in.
type ReadDirection uint8

const (
	Forward ReadDirection = iota
	Backward
)

// NodePreference selects which cluster member a call should be routed to.
type NodePreference uint8

const (
	PreferLeader NodePreference = iota
	PreferFollower
	PreferReadOnlyReplica
	PreferRandom
)

func (p NodePreference) String() string {
	switch p {
	case PreferLeader:
		return "leader"
	case PreferFollower:
		return "follower"
	case PreferReadOnlyReplica:
		return "readonlyreplica"
	case PreferRandom:
		return "random"
	default:
		return "unknown"
	}
}

// NodeState is the role a ClusterMember reports via gossip.
type NodeState uint8

const (
	NodeLeader NodeState = iota
	NodeFollower
	NodeReadOnlyReplica
	NodeOther
)

func (s NodeState) String() string {
	switch s {
	case NodeLeader:
		return "leader"
	case NodeFollower:
		return "follower"
	case NodeReadOnlyReplica:
		return "readonlyreplica"
	default:
		return "other"
	}
}

// ClusterMember is one entry of a gossip response.
type ClusterMember struct {
	Address string
	Port    int
	State   NodeState
	IsAlive bool
}

// ConsumerStrategy selects how a persistent subscription's server-side
// dispatcher hands events to competing consumers.
type ConsumerStrategy uint8

const (
	DispatchToSingle ConsumerStrategy = iota
	RoundRobin
	Pinned
)

// SubscriptionInfo describes a persistent subscription, for both admin
// operations (create/update) and introspection (get/list).
type SubscriptionInfo struct {
	GroupName   string
	EventSource string // stream name, or "$all"
	StartFrom   string // "C:c/P:p" for $all, decimal position for a stream, "-1" for end

	ResolveLinks bool
	Strategy     ConsumerStrategy

	MessageTimeoutSeconds int
	MaxRetryCount         int
	MinCheckpointCount    int
	MaxCheckpointCount    int
	CheckpointAfterSeconds int
	MaxSubscriberCount    int
	LiveBufferSize        int
	ReadBatchSize         int
	HistoryBufferSize     int
	ExtraStatistics       bool
}

// NackAction is the disposition a consumer assigns to a nacked event.
type NackAction uint8

const (
	NackPark NackAction = iota
	NackRetry
	NackSkip
	NackStop
)

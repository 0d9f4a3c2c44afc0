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

// Package eserr is the typed error taxonomy shared by every package in this
// module. It pairs a numeric Code (HTTP-status flavored, like
// nabbar/golib/errors) with a small Error interface that chains to a parent
// cause without losing compatibility with errors.Is/errors.As.
package eserr

import "strconv"

// Code classifies an Error the way an HTTP status classifies a response:
// coarse enough to switch on, stable across client versions.
type Code uint16

const (
	CodeUnknown Code = iota

	// Transport tier (translated from transport status + detail fingerprint).
	CodeExceptionThrownByHandler
	CodeConsumerTooSlow
	CodeAbortedByServer
	CodeCancelledByClient
	CodeDeadlineExceeded
	CodeTlsError
	CodeServiceUnavailable
	CodeAlreadyExists
	CodeNodeIsNotLeader
	CodeNotFound
	CodeMaximumSubscriptionsReached
	CodeFailedPrecondition
	CodeInternalError

	// Domain tier (raised by facade methods).
	CodeWrongCurrentVersion
	CodeStreamIsDeleted
	CodeDiscoveryFailed
	CodeFollowerNotFound
	CodeReadOnlyReplicaNotFound
	CodeSubscriptionNotFound
	CodeGossipSeedError
	CodeProgrammingError
	CodeExceptionIteratingRequests

	// Configuration tier (connection-spec parsing, §4.1).
	CodeConfigurationError
)

var codeNames = map[Code]string{
	CodeUnknown:                     "unknown",
	CodeExceptionThrownByHandler:    "exception-thrown-by-handler",
	CodeConsumerTooSlow:             "consumer-too-slow",
	CodeAbortedByServer:             "aborted-by-server",
	CodeCancelledByClient:           "cancelled-by-client",
	CodeDeadlineExceeded:            "deadline-exceeded",
	CodeTlsError:                    "tls-error",
	CodeServiceUnavailable:          "service-unavailable",
	CodeAlreadyExists:               "already-exists",
	CodeNodeIsNotLeader:             "node-is-not-leader",
	CodeNotFound:                    "not-found",
	CodeMaximumSubscriptionsReached: "maximum-subscriptions-reached",
	CodeFailedPrecondition:          "failed-precondition",
	CodeInternalError:               "internal-error",
	CodeWrongCurrentVersion:         "wrong-current-version",
	CodeStreamIsDeleted:             "stream-is-deleted",
	CodeDiscoveryFailed:             "discovery-failed",
	CodeFollowerNotFound:            "follower-not-found",
	CodeReadOnlyReplicaNotFound:     "read-only-replica-not-found",
	CodeSubscriptionNotFound:        "subscription-not-found",
	CodeGossipSeedError:             "gossip-seed-error",
	CodeProgrammingError:            "programming-error",
	CodeExceptionIteratingRequests:  "exception-iterating-requests",
	CodeConfigurationError:          "configuration-error",
}

// String implements fmt.Stringer.
func (c Code) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return "code(" + strconv.Itoa(int(c)) + ")"
}

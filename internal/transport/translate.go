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

package transport

import (
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/sabouaram/eventstore-client-go/eserr"
)

// Translate maps a transport-level error into the typed taxonomy of
// spec §4.2. A nil input returns nil. Errors that aren't gRPC statuses at
// all (dial failures before a status is ever produced, context errors)
// are wrapped as InternalError with the original error preserved as the
// Unwrap() target.
func Translate(err error) error {
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok {
		return eserr.New(eserr.CodeInternalError, "non-status transport error", err)
	}

	detail := st.Message()

	switch st.Code() {
	case codes.Unknown:
		if strings.Contains(detail, "Exception was thrown by handler") {
			return eserr.New(eserr.CodeExceptionThrownByHandler, detail, err)
		}
		return eserr.New(eserr.CodeInternalError, detail, err)

	case codes.Aborted:
		if strings.Contains(detail, "Consumer too slow") {
			return eserr.New(eserr.CodeConsumerTooSlow, detail, err)
		}
		return eserr.New(eserr.CodeAbortedByServer, detail, err)

	case codes.Canceled:
		if strings.Contains(detail, "Locally cancelled by application") {
			return eserr.New(eserr.CodeCancelledByClient, detail, err)
		}
		return eserr.New(eserr.CodeCancelledByClient, detail, err)

	case codes.DeadlineExceeded:
		return eserr.New(eserr.CodeDeadlineExceeded, detail, err)

	case codes.Unavailable:
		switch {
		case strings.Contains(detail, "SSL_ERROR"):
			return eserr.New(eserr.CodeTlsError, detail, err)
		case strings.Contains(detail, "empty address list"):
			return eserr.New(eserr.CodeTlsError, "bad CA configuration: "+detail, err)
		default:
			return eserr.New(eserr.CodeServiceUnavailable, detail, err)
		}

	case codes.AlreadyExists:
		return eserr.New(eserr.CodeAlreadyExists, detail, err)

	case codes.NotFound:
		if strings.Contains(detail, "Leader info available") {
			return eserr.New(eserr.CodeNodeIsNotLeader, detail, err)
		}
		return eserr.New(eserr.CodeNotFound, detail, err)

	case codes.FailedPrecondition:
		if strings.Contains(detail, "Maximum subscriptions reached") {
			return eserr.New(eserr.CodeMaximumSubscriptionsReached, detail, err)
		}
		return eserr.New(eserr.CodeFailedPrecondition, detail, err)

	case codes.Internal:
		return eserr.New(eserr.CodeInternalError, detail, err)

	default:
		return eserr.New(eserr.CodeInternalError, detail, err)
	}
}

// IsReconnectable reports whether err (already translated) should trigger
// the automatic retry policy of spec §7: rediscover the cluster and retry
// the call exactly once.
func IsReconnectable(err error, preferLeader bool) bool {
	if eserr.HasCode(err, eserr.CodeServiceUnavailable) {
		return true
	}
	if eserr.HasCode(err, eserr.CodeNodeIsNotLeader) && preferLeader {
		return true
	}
	return false
}

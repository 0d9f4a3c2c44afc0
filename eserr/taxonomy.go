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

package eserr

// These constructors name the exact taxonomy of spec §4.2/§7 so call sites
// read as "WrongCurrentVersion(...)" rather than "New(CodeWrongCurrentVersion, ...)".

func WrongCurrentVersion(stream string, expected, actual string) Error {
	return Newf(CodeWrongCurrentVersion, nil, "stream %q: expected version %s, current is %s", stream, expected, actual)
}

func StreamIsDeleted(stream string) Error {
	return Newf(CodeStreamIsDeleted, nil, "stream %q is tombstoned", stream)
}

func NotFound(stream string) Error {
	return Newf(CodeNotFound, nil, "stream %q not found", stream)
}

func DiscoveryFailed(lastSeedHost string, lastSeedPort int, cause error) Error {
	return Newf(CodeDiscoveryFailed, cause, "no node matched preference after exhausting discovery attempts, last seed %s:%d", lastSeedHost, lastSeedPort)
}

func FollowerNotFound() Error {
	return New(CodeFollowerNotFound, "no live follower in gossip response", nil)
}

func ReadOnlyReplicaNotFound() Error {
	return New(CodeReadOnlyReplicaNotFound, "no live read-only replica in gossip response", nil)
}

func SubscriptionNotFound(group, source string) Error {
	return Newf(CodeSubscriptionNotFound, nil, "persistent subscription group %q on %q not found", group, source)
}

func GossipSeedError(host string, port int, cause error) Error {
	return Newf(CodeGossipSeedError, cause, "gossip seed %s:%d failed", host, port)
}

func ProgrammingError(msg string) Error {
	return New(CodeProgrammingError, msg, nil)
}

func ExceptionIteratingRequests(cause error) Error {
	return New(CodeExceptionIteratingRequests, "upstream failure inside bidirectional stream", cause)
}

func ConfigurationError(msg string) Error {
	return New(CodeConfigurationError, msg, nil)
}

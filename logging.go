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

import "github.com/sirupsen/logrus"

// Logger is the minimal structured-logging surface the Client writes
// through; the eserr and internal packages do not log. Setting up a concrete Logger (file rotation,
// syslog hooks, level filters, ...) is the caller's concern; this client
// only ever calls these four methods.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// discardLogger is installed whenever a caller passes a nil Logger.
type discardLogger struct{}

func (discardLogger) Debugf(string, ...any) {}
func (discardLogger) Infof(string, ...any)  {}
func (discardLogger) Warnf(string, ...any)  {}
func (discardLogger) Errorf(string, ...any) {}

// NewLogrusLogger adapts a *logrus.Logger (or logrus.StandardLogger()) to
// the Logger interface. Passing nil is equivalent to a discard logger.
func NewLogrusLogger(l *logrus.Logger) Logger {
	if l == nil {
		return discardLogger{}
	}
	return &logrusAdapter{l: l}
}

type logrusAdapter struct {
	l *logrus.Logger
}

func (a *logrusAdapter) Debugf(format string, args ...any) { a.l.Debugf(format, args...) }
func (a *logrusAdapter) Infof(format string, args ...any)  { a.l.Infof(format, args...) }
func (a *logrusAdapter) Warnf(format string, args ...any)  { a.l.Warnf(format, args...) }
func (a *logrusAdapter) Errorf(format string, args ...any) { a.l.Errorf(format, args...) }

func logOrDiscard(l Logger) Logger {
	if l == nil {
		return discardLogger{}
	}
	return l
}

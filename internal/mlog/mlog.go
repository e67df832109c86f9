// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Package mlog holds the process-wide logrus logger and hands out
// package- and function-scoped entries.
package mlog

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Log wraps logrus.Logger and holds information of logging file.
type Log struct {
	*logrus.Logger

	file     *os.File
	location string
}

var (
	mu  sync.RWMutex
	log = newDefault()
)

func newDefault() *Log {
	l := &Log{Logger: logrus.New(), location: "stderr"}
	l.Out = os.Stderr
	l.Level = logrus.WarnLevel
	return l
}

// New creates a Log writing to location, which is "stderr", "stdout" or
// a file path opened for append.
func New(level, location string) (*Log, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	l := &Log{Logger: logrus.New(), location: location}
	l.Level = lvl
	l.Formatter = &logrus.TextFormatter{FullTimestamp: true}

	switch location {
	case "", "stderr":
		l.Out = os.Stderr
	case "stdout":
		l.Out = os.Stdout
	default:
		//nolint:gosec // G304: log location comes from the operator
		f, err := os.OpenFile(location, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
		if err != nil {
			return nil, err
		}
		l.Out = f
		l.file = f
	}
	return l, nil
}

// Close releases the log file, if any.
func (l *Log) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Init replaces the global logger.
func Init(level, location string) error {
	l, err := New(level, location)
	if err != nil {
		return err
	}

	mu.Lock()
	old := log
	log = l
	mu.Unlock()

	return old.Close()
}

// SetOutput redirects the global logger, mainly for tests.
func SetOutput(w io.Writer) {
	mu.RLock()
	defer mu.RUnlock()
	log.SetOutput(w)
}

// GetLogger returns the global logger.
func GetLogger() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log.Logger
}

// GetPackageLogger returns an entry tagged with the package name.
func GetPackageLogger(pkg string) *logrus.Entry {
	return GetLogger().WithField("package", pkg)
}

// GetFunctionLogger narrows a package entry to one function.
func GetFunctionLogger(entry *logrus.Entry, fn string) *logrus.Entry {
	return entry.WithField("function", fn)
}

// GetMethodLogger narrows a package entry to one method, named "type.Method".
func GetMethodLogger(entry *logrus.Entry, method string) *logrus.Entry {
	return entry.WithField("method", method)
}

// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package log is the leveled logger used by the ingestion/retrieval
// binaries and every internal package. The binaries are one-shot batch
// processes rather than long-running services, so unlike a
// systemd-supervised daemon they usually want their own timestamp on each
// line; the binaries' -logdate flag (SetLogDateTime) defaults on, while
// the package itself starts with timestamps off until SetLogDateTime(true).
//
// Severity prefixes follow systemd's convention so output still parses
// correctly if the binary is ever wrapped by a unit:
// https://www.freedesktop.org/software/systemd/man/sd-daemon.html
package log

import (
	"fmt"
	"io"
	"log"
	"os"
)

var logDateTime bool

var (
	DebugWriter io.Writer = os.Stderr
	NoteWriter  io.Writer = os.Stderr
	InfoWriter  io.Writer = os.Stderr
	WarnWriter  io.Writer = os.Stderr
	ErrWriter   io.Writer = os.Stderr
	CritWriter  io.Writer = os.Stderr
)

// level bundles one severity's writer and its two loggers (with and
// without a timestamp), so every exported Xxx/Xxxf pair below shares one
// small dispatch function instead of duplicating the writer/format check.
type level struct {
	writer  *io.Writer
	plain   *log.Logger
	withTS  *log.Logger
	onPanic bool // never set or read; no level exits or panics by itself
}

func newLevel(w *io.Writer, prefix string, plainFlags, tsFlags int) *level {
	return &level{
		writer: w,
		plain:  log.New(*w, prefix, plainFlags),
		withTS: log.New(*w, prefix, tsFlags),
	}
}

var (
	debugLevel = newLevel(&DebugWriter, "<7>[DEBUG]    ", 0, log.LstdFlags)
	infoLevel  = newLevel(&InfoWriter, "<6>[INFO]     ", 0, log.LstdFlags)
	noteLevel  = newLevel(&NoteWriter, "<5>[NOTICE]   ", log.Lshortfile, log.LstdFlags|log.Lshortfile)
	warnLevel  = newLevel(&WarnWriter, "<4>[WARNING]  ", log.Lshortfile, log.LstdFlags|log.Lshortfile)
	errLevel   = newLevel(&ErrWriter, "<3>[ERROR]    ", log.Llongfile, log.LstdFlags|log.Llongfile)
	critLevel  = newLevel(&CritWriter, "<2>[CRITICAL] ", log.Llongfile, log.LstdFlags|log.Llongfile)
)

func (l *level) emit(s string) {
	if *l.writer == io.Discard {
		return
	}
	if logDateTime {
		l.withTS.Output(3, s)
	} else {
		l.plain.Output(3, s)
	}
}

/* CONFIG */

// SetLogLevel silences every severity below lvl ("debug", "info",
// "notice", "warn", "err"/"fatal", or "crit"), from the bottom up, the way
// a batch job's operator dials verbosity down for routine runs.
func SetLogLevel(lvl string) {
	switch lvl {
	case "crit":
		ErrWriter = io.Discard
		fallthrough
	case "err", "fatal":
		WarnWriter = io.Discard
		fallthrough
	case "warn":
		NoteWriter = io.Discard
		fallthrough
	case "notice":
		InfoWriter = io.Discard
		fallthrough
	case "info":
		DebugWriter = io.Discard
	case "debug":
		// nothing to silence
	default:
		fmt.Printf("pkg/log: flag 'loglevel' has invalid value %#v; using 'debug'\n", lvl)
		SetLogLevel("debug")
		return
	}
	rebindWriters()
}

// rebindWriters re-targets each level's loggers after SetLogLevel swaps a
// package-level Writer var to io.Discard or back.
func rebindWriters() {
	debugLevel = newLevel(&DebugWriter, "<7>[DEBUG]    ", 0, log.LstdFlags)
	infoLevel = newLevel(&InfoWriter, "<6>[INFO]     ", 0, log.LstdFlags)
	noteLevel = newLevel(&NoteWriter, "<5>[NOTICE]   ", log.Lshortfile, log.LstdFlags|log.Lshortfile)
	warnLevel = newLevel(&WarnWriter, "<4>[WARNING]  ", log.Lshortfile, log.LstdFlags|log.Lshortfile)
	errLevel = newLevel(&ErrWriter, "<3>[ERROR]    ", log.Llongfile, log.LstdFlags|log.Llongfile)
	critLevel = newLevel(&CritWriter, "<2>[CRITICAL] ", log.Llongfile, log.LstdFlags|log.Llongfile)
}

func SetLogDateTime(logdate bool) {
	logDateTime = logdate
}

/* PRINT */

func Print(v ...interface{}) { Info(v...) }

func Debug(v ...interface{}) { debugLevel.emit(fmt.Sprint(v...)) }

func Info(v ...interface{}) { infoLevel.emit(fmt.Sprint(v...)) }

func Note(v ...interface{}) { noteLevel.emit(fmt.Sprint(v...)) }

func Warn(v ...interface{}) { warnLevel.emit(fmt.Sprint(v...)) }

func Error(v ...interface{}) { errLevel.emit(fmt.Sprint(v...)) }

// Panic logs at error severity, then panics; the process does not exit on
// its own (a deferred recover higher up may still catch it).
func Panic(v ...interface{}) {
	Error(v...)
	panic("panic triggered by pkg/log.Panic")
}

// Fatal logs at error severity and exits immediately; used for setup
// failures in the cmd binaries before any dataset row has been touched.
func Fatal(v ...interface{}) {
	Error(v...)
	os.Exit(1)
}

func Crit(v ...interface{}) { critLevel.emit(fmt.Sprint(v...)) }

/* PRINT FORMAT */

func Printf(format string, v ...interface{}) { Infof(format, v...) }

func Debugf(format string, v ...interface{}) { debugLevel.emit(fmt.Sprintf(format, v...)) }

func Infof(format string, v ...interface{}) { infoLevel.emit(fmt.Sprintf(format, v...)) }

func Notef(format string, v ...interface{}) { noteLevel.emit(fmt.Sprintf(format, v...)) }

func Warnf(format string, v ...interface{}) { warnLevel.emit(fmt.Sprintf(format, v...)) }

func Errorf(format string, v ...interface{}) { errLevel.emit(fmt.Sprintf(format, v...)) }

func Panicf(format string, v ...interface{}) {
	Errorf(format, v...)
	panic("panic triggered by pkg/log.Panicf")
}

func Fatalf(format string, v ...interface{}) {
	Errorf(format, v...)
	os.Exit(1)
}

func Critf(format string, v ...interface{}) { critLevel.emit(fmt.Sprintf(format, v...)) }

/* DATASET-SCOPED LOGGING */

// Dataset is a logger bound to one dataset serial, so every line an
// ingestion or retrieval run emits for that dataset carries it without
// every call site re-formatting it by hand.
type Dataset struct {
	serial string
}

// ForDataset scopes subsequent log calls to serial, the way the
// ingestion coordinator and retrieval planner report per-row outcomes.
func ForDataset(serial string) Dataset {
	return Dataset{serial: serial}
}

func (d Dataset) Infof(format string, v ...interface{}) {
	infoLevel.emit(fmt.Sprintf("dataset=%s "+format, append([]interface{}{d.serial}, v...)...))
}

func (d Dataset) Warnf(format string, v ...interface{}) {
	warnLevel.emit(fmt.Sprintf("dataset=%s "+format, append([]interface{}{d.serial}, v...)...))
}

func (d Dataset) Errorf(format string, v ...interface{}) {
	errLevel.emit(fmt.Sprintf("dataset=%s "+format, append([]interface{}{d.serial}, v...)...))
}

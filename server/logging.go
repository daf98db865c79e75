package server

import (
	"github.com/shadimsaleh/push-glib/apns"
)

var logger apns.LoggerInterface = new(nullLogger)

// SetLogger sets the package logger
func SetLogger(l apns.LoggerInterface) {
	logger = l
}

type nullLogger struct{}

func (l *nullLogger) Fatalf(format string, args ...interface{}) {}
func (l *nullLogger) Fatal(args ...interface{})                 {}

func (l *nullLogger) Errorf(format string, args ...interface{}) {}
func (l *nullLogger) Error(entries ...interface{})              {}

func (l *nullLogger) Warningf(format string, args ...interface{}) {}
func (l *nullLogger) Warning(entries ...interface{})              {}

func (l *nullLogger) Infof(format string, args ...interface{}) {}
func (l *nullLogger) Info(entries ...interface{})              {}

func (l *nullLogger) Debugf(format string, args ...interface{}) {}
func (l *nullLogger) Debug(entries ...interface{})              {}

package apns

// LoggerInterface specifies the type of logger the package requires.
// It matches github.com/coreos/pkg/capnslog's PackageLogger so callers
// can pass one in directly.
type LoggerInterface interface {
	Fatalf(format string, args ...interface{})
	Fatal(args ...interface{})

	Errorf(format string, args ...interface{})
	Error(entries ...interface{})

	Warningf(format string, args ...interface{})
	Warning(entries ...interface{})

	Infof(format string, args ...interface{})
	Info(entries ...interface{})

	Debugf(format string, args ...interface{})
	Debug(entries ...interface{})
}

var logger LoggerInterface = new(nullLogger)

// SetLogger sets the package-wide logger. Call it once at startup;
// the default is a silent no-op logger.
func SetLogger(l LoggerInterface) {
	if l == nil {
		l = new(nullLogger)
	}
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

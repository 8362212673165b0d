package logger

// LeveledBridge adapts Logger to the key/value leveled logger interface
// expected by retryablehttp.
type LeveledBridge struct {
	l Logger
}

func NewLeveledBridge(l Logger) *LeveledBridge {
	return &LeveledBridge{l: l.WithFields(Fields{"component": "retryablehttp"})}
}

func kvFields(keysAndValues []interface{}) (Fields, error) {
	f := make(Fields, len(keysAndValues)/2)
	var err error
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		k, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if e, isErr := keysAndValues[i+1].(error); isErr && k == "error" {
			err = e
			continue
		}
		f[k] = keysAndValues[i+1]
	}
	return f, err
}

func (b *LeveledBridge) Error(msg string, keysAndValues ...interface{}) {
	f, err := kvFields(keysAndValues)
	b.l.Error(msg, err, f)
}

func (b *LeveledBridge) Info(msg string, keysAndValues ...interface{}) {
	f, _ := kvFields(keysAndValues)
	b.l.Info(msg, f)
}

func (b *LeveledBridge) Debug(msg string, keysAndValues ...interface{}) {
	f, _ := kvFields(keysAndValues)
	b.l.Debug(msg, f)
}

func (b *LeveledBridge) Warn(msg string, keysAndValues ...interface{}) {
	f, _ := kvFields(keysAndValues)
	b.l.Warn(msg, f)
}

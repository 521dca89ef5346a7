package conversation

// Observer receives structured progress from agents. Implementations must not block.
type Observer interface {
	Log(level, message string)
	UnitStarted(stage string, index, total int, name string)
	UnitFinished(stage string, index, total int, name string, ok bool)
}

// NopObserver discards everything.
type NopObserver struct{}

func (NopObserver) Log(string, string) {}
func (NopObserver) UnitStarted(string, int, int, string) {}
func (NopObserver) UnitFinished(string, int, int, string, bool) {}

// ObserverFuncs adapts optional callbacks to Observer.
type ObserverFuncs struct {
	OnLog      func(level, message string)
	OnStarted  func(stage string, index, total int, name string)
	OnFinished func(stage string, index, total int, name string, ok bool)
}

func (o ObserverFuncs) Log(level, message string) {
	if o.OnLog != nil {
		o.OnLog(level, message)
	}
}

func (o ObserverFuncs) UnitStarted(stage string, index, total int, name string) {
	if o.OnStarted != nil {
		o.OnStarted(stage, index, total, name)
	}
}

func (o ObserverFuncs) UnitFinished(stage string, index, total int, name string, ok bool) {
	if o.OnFinished != nil {
		o.OnFinished(stage, index, total, name, ok)
	}
}

package agent

// Agent is one cooperative worker. DoWork must not block; it returns the
// amount of work done so the idle strategy can back off when it is zero.
// A non-nil error is fatal for the agent.
type Agent interface {
	DoWork() (int, error)
	RoleName() string
}

// Starter is implemented by agents that need setup on the runner goroutine.
type Starter interface {
	OnStart()
}

// Closer is implemented by agents that release state when their runner stops.
type Closer interface {
	OnClose()
}

// ErrorHandler receives the error that stopped an agent.
type ErrorHandler func(role string, err error)

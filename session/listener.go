package session

// Listener receives session lifecycle callbacks. Callbacks are delivered one
// at a time, in the order the manager emits them. Implementations must not
// call StartSession, EndSession or ResumeSession synchronously from a
// callback.
type Listener interface {
	OnSessionStarting(s Session)
	OnSessionStarted(s Session, sessionID string)
	OnSessionStartFailed(s Session, err error)
	OnSessionEnding(s Session)
	OnSessionEnded(s Session, err error)
	OnSessionResuming(s Session, sessionID string)
	OnSessionResumed(s Session, wasSuspended bool)
	OnSessionResumeFailed(s Session, err error)
	OnSessionSuspended(s Session, reason SuspendReason)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Starting     func(Session)
	Started      func(Session, string)
	StartFailed  func(Session, error)
	Ending       func(Session)
	Ended        func(Session, error)
	Resuming     func(Session, string)
	Resumed      func(Session, bool)
	ResumeFailed func(Session, error)
	Suspended    func(Session, SuspendReason)
}

var _ Listener = (*ListenerFuncs)(nil)

func (f *ListenerFuncs) OnSessionStarting(s Session) {
	if f.Starting != nil {
		f.Starting(s)
	}
}

func (f *ListenerFuncs) OnSessionStarted(s Session, sessionID string) {
	if f.Started != nil {
		f.Started(s, sessionID)
	}
}

func (f *ListenerFuncs) OnSessionStartFailed(s Session, err error) {
	if f.StartFailed != nil {
		f.StartFailed(s, err)
	}
}

func (f *ListenerFuncs) OnSessionEnding(s Session) {
	if f.Ending != nil {
		f.Ending(s)
	}
}

func (f *ListenerFuncs) OnSessionEnded(s Session, err error) {
	if f.Ended != nil {
		f.Ended(s, err)
	}
}

func (f *ListenerFuncs) OnSessionResuming(s Session, sessionID string) {
	if f.Resuming != nil {
		f.Resuming(s, sessionID)
	}
}

func (f *ListenerFuncs) OnSessionResumed(s Session, wasSuspended bool) {
	if f.Resumed != nil {
		f.Resumed(s, wasSuspended)
	}
}

func (f *ListenerFuncs) OnSessionResumeFailed(s Session, err error) {
	if f.ResumeFailed != nil {
		f.ResumeFailed(s, err)
	}
}

func (f *ListenerFuncs) OnSessionSuspended(s Session, reason SuspendReason) {
	if f.Suspended != nil {
		f.Suspended(s, reason)
	}
}

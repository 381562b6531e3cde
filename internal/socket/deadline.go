package socket

import "time"

// timeoutReadFromBase bounds how long RecvMessages blocks before reporting
// WouldBlock, matching the teacher's Base.readLoop 5s read deadline. The
// agent's own event loop is what actually paces reads; this is just a
// guard against a socket that never becomes readable again.
const timeoutReadFromBase = 5 * time.Second

func readDeadline() time.Time {
	return time.Now().Add(timeoutReadFromBase)
}

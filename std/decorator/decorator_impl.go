package decorator

// NewThread builds a thread decorator. A parent equal to the thread ID
// means no parent at all, so it is dropped.
func NewThread(ID, PID string) *Thread {
	realPID := ""
	if ID != PID {
		realPID = PID
	}
	return &Thread{ID: ID, PID: realPID}
}

// CheckThread fills a missing thread from the message ID: by the Aries
// threading rules the first message's ID is the thread ID.
func CheckThread(thread *Thread, ID string) *Thread {
	if thread == nil {
		return &Thread{ID: ID}
	}
	if thread.ID == "" {
		thread.ID = ID
	}
	return thread
}

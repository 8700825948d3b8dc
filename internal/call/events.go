package call

import "dialer-platform/internal/notify"

// The manager is the relay's event observer: media-path changes land here and
// are folded into the owning session record.

// StreamStarted binds a newly announced media stream to its session and, when
// the call was placed into a conference, issues the automatic join now that
// the agent leg is live.
func (m *Manager) StreamStarted(streamID, callID, conferenceName string) {
	m.mu.Lock()
	subjectID, ok := m.byCall[callID]
	var confToJoin string
	if ok {
		s := m.sessions[subjectID]
		s.MediaStreamID = streamID
		s.AudioActive = true
		s.AudioStreaming = true
		if conferenceName != "" {
			s.ConferenceID = conferenceName
		}
		confToJoin = s.ConferenceID
	}
	m.mu.Unlock()

	if !ok {
		m.log.Warn("media stream for unknown call", "stream_id", streamID, "call_id", callID)
		return
	}
	m.log.Info("media stream bound", "subject_id", subjectID, "stream_id", streamID)

	if confToJoin != "" {
		if err := m.relay.JoinConference(confToJoin); err != nil {
			m.log.Warn("conference auto-join failed", "conference", confToJoin, "error", err)
		}
	}
}

// StreamStopped marks every session's media path idle; the provider closes
// the stream as a whole, not per call.
func (m *Manager) StreamStopped() {
	m.mu.Lock()
	for _, s := range m.sessions {
		s.AudioStreaming = false
		s.MediaStreamID = ""
	}
	m.mu.Unlock()
}

// ConferenceJoined confirms a pending conference binding.
func (m *Manager) ConferenceJoined(conferenceName string) {
	m.mu.Lock()
	for _, s := range m.sessions {
		if s.ConferenceID == conferenceName {
			s.AudioActive = true
		}
	}
	m.mu.Unlock()
	m.log.Info("conference joined", "conference", conferenceName)
}

// DTMFReceived currently only logs; keypad handling is a caller concern.
func (m *Manager) DTMFReceived(digit string) {
	m.log.Info("dtmf received", "digit", digit)
}

// TransportDown marks all sessions' audio as stopped while the relay
// attempts recovery.
func (m *Manager) TransportDown() {
	m.mu.Lock()
	for _, s := range m.sessions {
		s.AudioStreaming = false
	}
	m.mu.Unlock()
	m.log.Warn("media transport lost")
}

// TransportRestored is informational; streams rebind via StreamStarted.
func (m *Manager) TransportRestored() {
	m.log.Info("media transport restored")
}

// TransportGaveUp surfaces a permanently lost media path to the user. Calls
// stay up on the provider side; only our audio leg is gone.
func (m *Manager) TransportGaveUp(err error) {
	m.log.Error("media transport unrecoverable", "error", err)
	m.notifier.Notify(notify.KindError, "Call audio connection lost")
}

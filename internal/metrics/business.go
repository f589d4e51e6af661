package metrics

import "strings"

// RoomCreated counts a freshly created room
func (m *Metrics) RoomCreated(roomType string) {
	m.safeExecute("RoomCreated", func() {
		m.RoomsCreatedTotal.WithLabelValues(roomType).Inc()
	})
}

// RoomReused counts a direct room request that returned an existing room
func (m *Metrics) RoomReused() {
	m.safeExecute("RoomReused", func() {
		m.RoomsReusedTotal.Inc()
	})
}

func (m *Metrics) MessageSent(messageType string) {
	m.safeExecute("MessageSent", func() {
		m.MessagesSentTotal.WithLabelValues(messageType).Inc()
	})
}

func (m *Metrics) MessageDeleted() {
	m.safeExecute("MessageDeleted", func() {
		m.MessagesDeletedTotal.Inc()
	})
}

// MessagesMarkedRead adds the number of receipts written by one mark-as-read
func (m *Metrics) MessagesMarkedRead(count int) {
	if count <= 0 {
		return
	}
	m.safeExecute("MessagesMarkedRead", func() {
		m.MessagesMarkedReadTotal.Add(float64(count))
	})
}

// SetRoomsActive sets the active rooms gauge
func (m *Metrics) SetRoomsActive(count int64) {
	m.safeExecute("SetRoomsActive", func() {
		m.RoomsActive.Set(float64(count))
	})
}

// SetUsersOnline sets the online users gauge
func (m *Metrics) SetUsersOnline(count int64) {
	m.safeExecute("SetUsersOnline", func() {
		m.UsersOnline.Set(float64(count))
	})
}

func (m *Metrics) WebSocketConnected() {
	m.safeExecute("WebSocketConnected", func() {
		m.WebSocketConnectionsTotal.Inc()
		m.WebSocketActiveConnections.Inc()
	})
}

func (m *Metrics) WebSocketDisconnected() {
	m.safeExecute("WebSocketDisconnected", func() {
		m.WebSocketActiveConnections.Dec()
	})
}

// SocketEvent counts an inbound socket event. Unknown names share one label.
func (m *Metrics) SocketEvent(event string, known bool) {
	m.safeExecute("SocketEvent", func() {
		if !known {
			event = "unknown"
		}
		m.SocketEventsTotal.WithLabelValues(strings.ToLower(event)).Inc()
	})
}

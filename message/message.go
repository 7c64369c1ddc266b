package message

import (
	"encoding/json"
	"sort"
	"time"
)

// Message is the channel-level unit of work: one source connector message
// plus zero or more destination connector messages, keyed by metadata ID.
type Message struct {
	MessageID    int64
	ChannelID    string
	ServerID     string
	ReceivedDate time.Time

	connectorMessages map[int]*ConnectorMessage
}

// NewMessage creates an empty message.
func NewMessage(messageID int64, channelID, serverID string, receivedDate time.Time) *Message {
	return &Message{
		MessageID:         messageID,
		ChannelID:         channelID,
		ServerID:          serverID,
		ReceivedDate:      receivedDate,
		connectorMessages: make(map[int]*ConnectorMessage),
	}
}

// AddConnectorMessage registers cm under its metadata ID, replacing any
// previous entry for the same ID.
func (m *Message) AddConnectorMessage(cm *ConnectorMessage) {
	if cm == nil {
		return
	}
	m.connectorMessages[cm.MetaDataID] = cm
}

// GetConnectorMessage returns the connector message at the given metadata ID,
// or nil.
func (m *Message) GetConnectorMessage(metaDataID int) *ConnectorMessage {
	return m.connectorMessages[metaDataID]
}

// Source returns the source connector message (metadata ID 0), or nil when
// none has been added.
func (m *Message) Source() *ConnectorMessage {
	return m.connectorMessages[SourceMetaDataID]
}

// Destinations returns the destination connector messages in ascending
// metadata ID order.
func (m *Message) Destinations() []*ConnectorMessage {
	ids := make([]int, 0, len(m.connectorMessages))
	for id := range m.connectorMessages {
		if id != SourceMetaDataID {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	dests := make([]*ConnectorMessage, 0, len(ids))
	for _, id := range ids {
		dests = append(dests, m.connectorMessages[id])
	}
	return dests
}

// Len returns the number of connector messages, source included.
func (m *Message) Len() int {
	return len(m.connectorMessages)
}

type messageWire struct {
	MessageID    int64               `json:"messageId"`
	ChannelID    string              `json:"channelId"`
	ServerID     string              `json:"serverId"`
	ReceivedDate time.Time           `json:"receivedDate"`
	Connectors   []*ConnectorMessage `json:"connectorMessages"`
}

// MarshalJSON emits the message with its connector messages in ascending
// metadata ID order, source first.
func (m *Message) MarshalJSON() ([]byte, error) {
	wire := messageWire{
		MessageID:    m.MessageID,
		ChannelID:    m.ChannelID,
		ServerID:     m.ServerID,
		ReceivedDate: m.ReceivedDate,
	}
	if src := m.Source(); src != nil {
		wire.Connectors = append(wire.Connectors, src)
	}
	wire.Connectors = append(wire.Connectors, m.Destinations()...)
	return json.Marshal(wire)
}

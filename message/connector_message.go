package message

import (
	"encoding/json"
	"sort"
	"time"
)

// SourceMetaDataID is the metadata ID reserved for the source connector.
// Destination connectors are numbered from 1 in channel order.
const SourceMetaDataID = 0

// SourceConnectorName is the conventional connector name for metadata ID 0.
const SourceConnectorName = "Source"

// ConnectorMessage is the per-connector view of a message: the source
// connector's copy at metadata ID 0, and one copy per destination connector
// at metadata IDs 1..n. Identity fields are fixed at construction; status,
// content and maps evolve as the message moves through the pipeline.
//
// A connector message is owned by a single processing goroutine. The maps it
// carries are individually synchronized because scripts and the engine touch
// them through shared references.
type ConnectorMessage struct {
	MessageID     int64
	MetaDataID    int
	ChannelID     string
	ConnectorName string
	ServerID      string
	ReceivedDate  time.Time

	status  Status
	content map[ContentType]*Content

	sourceMap    *Map
	channelMap   *Map
	connectorMap *Map
	responseMap  *Map
}

// NewConnectorMessage creates a connector message in status RECEIVED with
// empty maps and no content.
func NewConnectorMessage(messageID int64, metaDataID int, channelID, connectorName, serverID string, receivedDate time.Time) *ConnectorMessage {
	return &ConnectorMessage{
		MessageID:     messageID,
		MetaDataID:    metaDataID,
		ChannelID:     channelID,
		ConnectorName: connectorName,
		ServerID:      serverID,
		ReceivedDate:  receivedDate,
		status:        StatusReceived,
		content:       make(map[ContentType]*Content),
		sourceMap:     NewMap(),
		channelMap:    NewMap(),
		connectorMap:  NewMap(),
		responseMap:   NewMap(),
	}
}

// Status returns the current lifecycle status.
func (m *ConnectorMessage) Status() Status {
	return m.status
}

// SetStatus updates the lifecycle status.
func (m *ConnectorMessage) SetStatus(status Status) {
	m.status = status
}

// GetContent returns the content stored in the given slot, or nil.
func (m *ConnectorMessage) GetContent(contentType ContentType) *Content {
	return m.content[contentType]
}

// SetContent stores content in its slot, replacing any previous entry of the
// same type.
func (m *ConnectorMessage) SetContent(content *Content) {
	if content == nil {
		return
	}
	m.content[content.Type] = content
}

// ContentString returns the string payload of a slot, or "" when the slot is
// empty.
func (m *ConnectorMessage) ContentString(contentType ContentType) string {
	if c := m.content[contentType]; c != nil {
		return c.Content
	}
	return ""
}

// ContentTypes returns the populated slots in ascending type order.
func (m *ConnectorMessage) ContentTypes() []ContentType {
	types := make([]ContentType, 0, len(m.content))
	for t := range m.content {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// SourceMap returns the read-mostly map seeded by the source connector.
func (m *ConnectorMessage) SourceMap() *Map { return m.sourceMap }

// ChannelMap returns the map shared across all connectors of a message.
func (m *ConnectorMessage) ChannelMap() *Map { return m.channelMap }

// ConnectorMap returns the map private to this connector.
func (m *ConnectorMessage) ConnectorMap() *Map { return m.connectorMap }

// ResponseMap returns the map destinations publish their responses into.
func (m *ConnectorMessage) ResponseMap() *Map { return m.responseMap }

// MergeResponseData folds other's channel and response maps into this
// message's maps. Existing keys keep their position and take other's value.
func (m *ConnectorMessage) MergeResponseData(other *ConnectorMessage) {
	if other == nil {
		return
	}
	m.channelMap.Merge(other.channelMap)
	m.responseMap.Merge(other.responseMap)
}

// Snapshot returns a metadata-ID-0 copy of this connector message with
// independent maps and content. Mutating the snapshot leaves the original
// untouched; map values themselves are shared by reference.
func (m *ConnectorMessage) Snapshot() *ConnectorMessage {
	snap := &ConnectorMessage{
		MessageID:     m.MessageID,
		MetaDataID:    SourceMetaDataID,
		ChannelID:     m.ChannelID,
		ConnectorName: SourceConnectorName,
		ServerID:      m.ServerID,
		ReceivedDate:  m.ReceivedDate,
		status:        m.status,
		content:       make(map[ContentType]*Content, len(m.content)),
		sourceMap:     m.sourceMap.Clone(),
		channelMap:    m.channelMap.Clone(),
		connectorMap:  m.connectorMap.Clone(),
		responseMap:   m.responseMap.Clone(),
	}
	for t, c := range m.content {
		copied := *c
		snap.content[t] = &copied
	}
	return snap
}

type connectorMessageWire struct {
	MessageID     int64      `json:"messageId"`
	MetaDataID    int        `json:"metaDataId"`
	ChannelID     string     `json:"channelId"`
	ConnectorName string     `json:"connectorName"`
	ServerID      string     `json:"serverId"`
	ReceivedDate  time.Time  `json:"receivedDate"`
	Status        Status     `json:"status"`
	Content       []*Content `json:"content,omitempty"`
	SourceMap     *Map       `json:"sourceMap,omitempty"`
	ChannelMap    *Map       `json:"channelMap,omitempty"`
	ConnectorMap  *Map       `json:"connectorMap,omitempty"`
	ResponseMap   *Map       `json:"responseMap,omitempty"`
}

// MarshalJSON emits the wire form of the connector message. Content entries
// appear in ascending content-type order.
func (m *ConnectorMessage) MarshalJSON() ([]byte, error) {
	wire := connectorMessageWire{
		MessageID:     m.MessageID,
		MetaDataID:    m.MetaDataID,
		ChannelID:     m.ChannelID,
		ConnectorName: m.ConnectorName,
		ServerID:      m.ServerID,
		ReceivedDate:  m.ReceivedDate,
		Status:        m.status,
		SourceMap:     m.sourceMap,
		ChannelMap:    m.channelMap,
		ConnectorMap:  m.connectorMap,
		ResponseMap:   m.responseMap,
	}
	for _, t := range m.ContentTypes() {
		wire.Content = append(wire.Content, m.content[t])
	}
	return json.Marshal(wire)
}

package message

import "encoding/json"

// ContentType identifies one of the content slots a connector message carries.
// Each slot holds at most one entry; writing a slot again replaces it.
type ContentType int

const (
	// ContentRaw is the payload exactly as the source connector received it.
	ContentRaw ContentType = iota + 1
	// ContentProcessedRaw is the raw payload after preprocessing.
	ContentProcessedRaw
	// ContentTransformed is the working content after the transformer chain.
	ContentTransformed
	// ContentEncoded is the transformed content serialized to the outbound
	// data type.
	ContentEncoded
	// ContentSent is the payload a destination connector actually wrote.
	ContentSent
	// ContentResponse is the reply a destination connector received.
	ContentResponse
	// ContentResponseTransformed is the response after its transformer.
	ContentResponseTransformed
	// ContentProcessedResponse is the response after response processing.
	ContentProcessedResponse
	// ContentConnectorMap is a persisted snapshot of the connector map.
	ContentConnectorMap
	// ContentChannelMap is a persisted snapshot of the channel map.
	ContentChannelMap
	// ContentResponseMap is a persisted snapshot of the response map.
	ContentResponseMap
	// ContentProcessingError records a filter or transformer failure.
	ContentProcessingError
	// ContentPostProcessorError records a postprocessor failure.
	ContentPostProcessorError
	// ContentResponseError records a response handling failure.
	ContentResponseError
	// ContentSourceMap is a persisted snapshot of the source map.
	ContentSourceMap
)

var contentTypeNames = map[ContentType]string{
	ContentRaw:                 "RAW",
	ContentProcessedRaw:        "PROCESSED_RAW",
	ContentTransformed:         "TRANSFORMED",
	ContentEncoded:             "ENCODED",
	ContentSent:                "SENT",
	ContentResponse:            "RESPONSE",
	ContentResponseTransformed: "RESPONSE_TRANSFORMED",
	ContentProcessedResponse:   "PROCESSED_RESPONSE",
	ContentConnectorMap:        "CONNECTOR_MAP",
	ContentChannelMap:          "CHANNEL_MAP",
	ContentResponseMap:         "RESPONSE_MAP",
	ContentProcessingError:     "PROCESSING_ERROR",
	ContentPostProcessorError:  "POSTPROCESSOR_ERROR",
	ContentResponseError:       "RESPONSE_ERROR",
	ContentSourceMap:           "SOURCE_MAP",
}

// String returns the content type name, e.g. "PROCESSING_ERROR".
func (t ContentType) String() string {
	if name, ok := contentTypeNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// MarshalJSON emits the content type as its name.
func (t ContentType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// Content is one stored content entry of a connector message.
type Content struct {
	Type      ContentType `json:"contentType"`
	Content   string      `json:"content"`
	DataType  string      `json:"dataType,omitempty"`
	Encrypted bool        `json:"encrypted,omitempty"`
}

// NewContent creates a content entry for the given slot.
func NewContent(contentType ContentType, content, dataType string) *Content {
	return &Content{
		Type:     contentType,
		Content:  content,
		DataType: dataType,
	}
}

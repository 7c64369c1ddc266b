// Package serializer converts wire formats to and from the XML form that
// filter and transformer scripts navigate. A data type that is already
// sandbox-navigable (plain text, JSON) reports that serialization is not
// required and passes content through untouched.
package serializer

import (
	"fmt"
	"sync"

	pkgerrors "github.com/careroute/interlink/errors"
	"github.com/careroute/interlink/message"
)

// Well-known data type names.
const (
	DataTypeRaw       = "RAW"
	DataTypeDelimited = "DELIMITED"
)

// Serializer is the per-data-type conversion contract the pipeline consumes.
type Serializer interface {
	// ToXML renders raw wire content as XML for script navigation.
	ToXML(raw string) (string, error)
	// FromXML renders XML back into the wire format.
	FromXML(xml string) (string, error)
	// IsSerializationRequired reports whether a conversion in the given
	// direction actually changes the representation. When false the
	// pipeline skips the call and uses the content as-is.
	IsSerializationRequired(toXML bool) bool
	// PopulateMetaData extracts format-level metadata from raw content
	// into the target map.
	PopulateMetaData(raw string, target *message.Map)
}

// Registry resolves data type names to serializers. A channel builds its
// registry once at deploy time; lookups afterwards are read-only.
type Registry struct {
	mu          sync.RWMutex
	serializers map[string]Serializer
}

// NewRegistry creates a registry with the built-in data types registered:
// RAW and DELIMITED with default settings.
func NewRegistry() *Registry {
	r := &Registry{serializers: make(map[string]Serializer)}
	r.Register(DataTypeRaw, NewRaw())
	r.Register(DataTypeDelimited, NewDelimited(DefaultDelimitedConfig()))
	return r
}

// Register binds a serializer to a data type name, replacing any previous
// binding. Channels use this to install instances with channel-specific
// settings.
func (r *Registry) Register(dataType string, s Serializer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.serializers[dataType] = s
}

// Get resolves a data type name. An unknown name is a configuration error.
func (r *Registry) Get(dataType string) (Serializer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.serializers[dataType]; ok {
		return s, nil
	}
	return nil, pkgerrors.WrapFatal(pkgerrors.ErrInvalidConfig, "serializer.Registry", "Get",
		fmt.Sprintf("unknown data type %q", dataType))
}

// Types returns the registered data type names in no particular order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.serializers))
	for t := range r.serializers {
		types = append(types, t)
	}
	return types
}

// rawSerializer handles plain text: already navigable, nothing to convert.
type rawSerializer struct{}

// NewRaw returns the serializer for the RAW data type.
func NewRaw() Serializer {
	return rawSerializer{}
}

func (rawSerializer) ToXML(raw string) (string, error)    { return raw, nil }
func (rawSerializer) FromXML(xml string) (string, error)  { return xml, nil }
func (rawSerializer) IsSerializationRequired(bool) bool   { return false }
func (rawSerializer) PopulateMetaData(raw string, target *message.Map) {
	target.Put("length", len(raw))
}

// Package channel defines the deployable channel configuration model and
// its loader.
//
// # Overview
//
// A Channel describes one integration route end to end: the source
// connector that receives payloads, the batch splitter that turns a payload
// into message units, the source filter/transformer pipeline, the
// destinations with their own pipelines and dispatch settings, and how the
// channel answers its origin once processing completes.
//
// Definitions are authored in YAML or JSON:
//
//	name: adt-inbound
//	source:
//	  connector:
//	    type: nats
//	    settings: {subject: hospital.adt}
//	  batch: {mode: record}
//	  filter:
//	    rules:
//	      - sequenceNumber: 1
//	        script: "msg.length > 0"
//	        enabled: true
//	destinations:
//	  - name: archive
//	    connector:
//	      type: file
//	      settings: {directory: /var/spool/interlink}
//	response:
//	  mode: destinations_completed
//
// # Loading and validation
//
// Load/ParseJSON/ParseYAML run three stages: the raw document is checked
// against an embedded JSON Schema (shape, required fields, unknown keys),
// decoded into the typed model, then defaulted with ApplyDefaults and
// semantically validated with Validate. Value-level rules (batch modes,
// filter operators, response modes) are owned by the embedded configs'
// own Validate methods, so the schema stays purely structural.
//
// # Defaults
//
// ApplyDefaults assigns a channel ID when absent, one processing thread, a
// queue capacity of 100, destination metaDataIds 1..N in declaration order
// when none are set, and fills the destinations_completed response count
// from the enabled destinations.
package channel

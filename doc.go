// Package interlink is a healthcare-data integration engine: channels
// accept raw payloads from a source transport, split them into units,
// run scripted filter and transformer pipelines over each unit, dispatch
// the results to one or more destinations, and hand a single response
// back to the origin.
//
// # Architecture
//
// A deployed channel owns the full path from receipt to reply:
//
//	┌──────────────┐     ┌─────────────────────────────────────────┐
//	│    Source    │     │             Channel Runtime             │
//	│  Connector   │────→│  rate limit → worker pool → splitter    │
//	│ (NATS, ...)  │     │       ↓ per unit                        │
//	└──────┬───────┘     │  source filter → source transformer     │
//	       │             │       ↓ when TRANSFORMED                │
//	       │             │  destination chain (filter → transform  │
//	       │             │   → send with retry), declaration order │
//	       │             │       ↓ always                          │
//	       │             │  response selection                     │
//	       │             └─────────────────┬───────────────────────┘
//	       └────────────── reply ──────────┘
//
// Destinations are independent transports:
//
//	             ┌─────────────┐
//	             │   Runtime   │
//	             └──────┬──────┘
//	      ┌─────────────┼─────────────┐
//	      ↓             ↓             ↓
//	 ┌─────────┐   ┌─────────┐   ┌─────────┐
//	 │  NATS   │   │  File   │   │ custom  │
//	 │  dest   │   │  dest   │   │  dest   │
//	 └─────────┘   └─────────┘   └─────────┘
//
// Each destination records an outcome even when it filters or fails, so
// response selection always sees the complete set. Later destinations
// inherit the channel and response maps of earlier ones, which makes
// ordered multi-destination flows (write, then acknowledge) expressible
// without shared state outside the message.
//
// # Message Model
//
// One inbound unit becomes a Message holding a ConnectorMessage per
// connector that touched it: metaDataId 0 is the source, 1..n the
// destinations. A ConnectorMessage carries typed content slots (RAW,
// PROCESSED_RAW, TRANSFORMED, ENCODED, SENT, RESPONSE, ...) and four
// ordered maps — sourceMap (read-only after receipt), connectorMap,
// channelMap, and responseMap — that scripts read and write through the
// sandbox. Status moves RECEIVED → FILTERED | TRANSFORMED → SENT |
// QUEUED | ERROR; FILTERED is a terminal outcome, never an error.
//
// # Channels
//
// Channels are declarative YAML or JSON documents validated against an
// embedded JSON Schema before deployment:
//
//	id: adt-intake
//	name: ADT Intake
//	source:
//	  connector:
//	    type: nats
//	    settings:
//	      subject: hl7.adt.inbound
//	  batch:
//	    mode: record
//	  filter:
//	    rules:
//	      - sequenceNumber: 1
//	        name: admissions only
//	        script: msg.indexOf("ADT^A") !== -1
//	        enabled: true
//	destinations:
//	  - name: archive
//	    connector:
//	      type: file
//	      settings:
//	        directory: /var/spool/interlink
//	response:
//	  mode: destinations_completed
//
// Splitting strategies cover delimiter records, sentinel markers,
// grouping on a column value, and user scripts that consume a reader.
// Filter rules combine with AND/OR/NONE operators; transformer steps
// chain, each seeing the previous step's output as msg.
//
// # Packages
//
// Processing core:
//   - message: message model, content slots, ordered maps, Response
//   - batch: payload → unit splitters and the quote-aware tokenizer
//   - script: goja sandbox with compiled-program cache and timeouts
//   - pipeline: filter/transformer execution over connector messages
//   - response: per-channel reply selection modes
//   - serializer: data-type registry (raw passthrough, delimited)
//
// Configuration:
//   - channel: channel definition model, schema validation, loaders
//   - config: node-level configuration for the binary
//
// Connectors:
//   - connector: source/destination contracts and the type registry
//   - connector/nats: NATS source (request-reply aware) and destination
//   - connector/file: file-writing destination
//
// Infrastructure:
//   - engine: channel runtimes and the multi-channel engine
//   - natsclient: NATS connection management
//   - metric: Prometheus metrics registry and HTTP server
//   - errors: classified error handling
//
// Utilities:
//   - pkg/cache: LRU caching
//   - pkg/retry: retry policies
//   - pkg/worker: worker pools
//   - testutil: shared fixtures for channel and payload tests
//
// # Usage
//
// Embedding the engine directly:
//
//	natsClient, _ := natsclient.NewClient("nats://localhost:4222")
//	natsClient.Connect(ctx)
//
//	registry := connector.NewRegistry()
//	registry.RegisterSource("nats", natsconn.NewSource)
//	registry.RegisterDestination("nats", natsconn.NewDestination)
//	registry.RegisterDestination("file", fileconn.NewDestination)
//
//	eng, _ := engine.NewEngine(serverID, engine.Dependencies{
//	    Connectors: registry,
//	    NATSClient: natsClient,
//	})
//
//	channels, _ := channel.LoadDir("channels")
//	for _, ch := range channels {
//	    eng.Deploy(*ch)
//	}
//	eng.Start(ctx)
//	defer eng.Stop(30 * time.Second)
//
// Custom transports implement the connector contracts and register
// under their own type name; channel definitions then reference them
// like any built-in connector.
//
// # Binary
//
// cmd/interlink wires the pieces for standalone deployment: it loads
// node configuration, deploys every channel definition found in the
// configured directory and file list, serves Prometheus metrics, and
// drains in-flight payloads on SIGINT/SIGTERM. See cmd/interlink -help.
package interlink

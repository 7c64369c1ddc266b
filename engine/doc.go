// Package engine deploys channels and drives payloads through their
// processing pipelines.
//
// # Overview
//
// The engine package is the integration point for everything below it. A
// Channel definition (channel package) is deployed into a Runtime, which
// builds the channel's source and destination connectors (connector
// package), its filter/transformer executor (pipeline package), and its
// response selector (response package). The Engine tracks deployed runtimes
// by channel ID and starts and stops them individually or as a group.
//
// # Architecture
//
// One Runtime per deployed channel. Payloads flow through it synchronously;
// the origin holds its connection until the reply comes back:
//
//	┌────────────┐  Receive(payload)   ┌─────────────────────────────┐
//	│   Source   │ ──────────────────> │   Runtime.handle            │
//	│ connector  │ <────────────────── │   - rate limit admission    │
//	└────────────┘   *Response         │   - submit to worker pool   │
//	                                   └──────────┬──────────────────┘
//	                                              │ worker.Pool
//	                                              ▼
//	                                   ┌─────────────────────────────┐
//	                                   │   runPayload                │
//	                                   │   - batch.Splitter → units  │
//	                                   └──────────┬──────────────────┘
//	                                              │ per unit
//	                                              ▼
//	                                   ┌─────────────────────────────┐
//	                                   │   processUnit               │
//	                                   │   - pipeline.Executor       │
//	                                   │     (filter + transformer)  │
//	                                   │   - dispatch chain          │
//	                                   │   - response.Selector       │
//	                                   └──────────┬──────────────────┘
//	                                              │ per destination
//	                                              ▼
//	                     ┌─────────────┐   Send   ┌─────────────────┐
//	                     │ Destination │ <─────── │   send          │
//	                     │  connector  │ ───────> │   - retry.Do    │
//	                     └─────────────┘  status  │   - queue/error │
//	                                              └─────────────────┘
//
// Destinations run as a chain in metadata-ID order: each destination's
// connector message inherits the channel map and response map of the one
// before it, so a later destination can read what an earlier one wrote.
//
// # Deployment Lifecycle
//
// The Engine manages four operations per channel:
//
// 1. Deploy:
//   - Apply channel defaults and validate the definition
//   - Build connectors, executor, selector, and worker pool
//   - Initialize the connectors (config checks, no I/O loops yet)
//   - Register the runtime under the channel ID
//
// 2. Start:
//   - Start destinations first, then the worker pool, then the source
//   - The source begins delivering payloads to the runtime's handler
//
// 3. Stop:
//   - Stop the source first so no new payloads arrive
//   - Drain the worker pool, then stop destinations in reverse order
//   - Each stage draws on the shared timeout budget
//
// 4. Undeploy:
//   - Stop the runtime if it is running, then drop it from the engine
//
// # State Transitions
//
// A Runtime is single-use. Its worker pool cannot be restarted once
// drained, so a stopped channel must be redeployed before it can run again:
//
//	deployed ──Start()──> running ──Stop()──> stopped
//	    ▲                                        │
//	    └────────── Undeploy() + Deploy() ───────┘
//
// Start on a running channel returns ErrAlreadyStarted; Start on a stopped
// one returns ErrAlreadyStopped.
//
// # Error Handling
//
// Following the errors package patterns:
//
//   - WrapInvalid: unknown channel IDs, duplicate deployments, bad state transitions
//   - WrapTransient: rate-limit admission, full processing queue, send failures worth retrying
//   - WrapFatal: missing required dependencies, Start on an already-running channel
//
// Script and serializer failures inside the pipeline never surface here as
// errors: the executor records them on the message as ERROR status with
// processing-error content, and the origin learns about them through the
// selected response.
//
// # Example Usage
//
//	connectors := connector.NewRegistry()
//	nats.Register(connectors)
//	file.Register(connectors)
//
//	eng, err := engine.NewEngine("", engine.Dependencies{
//		Connectors: connectors,
//		NATSClient: nc,
//		Metrics:    registry,
//		Logger:     logger,
//	})
//	if err != nil {
//		return err
//	}
//
//	rt, err := eng.Deploy(ch)
//	if err != nil {
//		return err
//	}
//
//	if err := eng.Start(ctx); err != nil {
//		return err
//	}
//	defer eng.Stop(30 * time.Second)
//
// # Package Structure
//
//	engine/
//	├── doc.go        # This file
//	├── engine.go     # Engine: deploy/undeploy, start/stop, lookup
//	├── metrics.go    # Lifecycle operation metrics
//	└── runtime.go    # Runtime: per-channel payload processing
package engine

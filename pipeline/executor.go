package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	pkgerrors "github.com/careroute/interlink/errors"
	"github.com/careroute/interlink/message"
	"github.com/careroute/interlink/metric"
	"github.com/careroute/interlink/script"
	"github.com/careroute/interlink/serializer"
)

// Executor runs a channel's filter rules and transformer steps against one
// ConnectorMessage at a time. It owns no per-message state; one Executor is
// shared by every worker of a channel.
type Executor struct {
	sandbox     *script.Sandbox
	serializers *serializer.Registry
	metrics     *metric.Metrics
	logger      *slog.Logger
}

// NewExecutor creates an executor without metrics recording.
func NewExecutor(sandbox *script.Sandbox, serializers *serializer.Registry, logger *slog.Logger) (*Executor, error) {
	return NewExecutorWithMetrics(sandbox, serializers, nil, logger)
}

// NewExecutorWithMetrics creates an executor that records stage durations
// and script failures. metrics may be nil.
func NewExecutorWithMetrics(sandbox *script.Sandbox, serializers *serializer.Registry, metrics *metric.Metrics, logger *slog.Logger) (*Executor, error) {
	if sandbox == nil {
		return nil, pkgerrors.WrapFatal(pkgerrors.ErrInvalidConfig, "Executor", "NewExecutorWithMetrics",
			"script sandbox not provided")
	}
	if serializers == nil {
		return nil, pkgerrors.WrapFatal(pkgerrors.ErrInvalidConfig, "Executor", "NewExecutorWithMetrics",
			"serializer registry not provided")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		sandbox:     sandbox,
		serializers: serializers,
		metrics:     metrics,
		logger:      logger.With("component", "pipeline-executor"),
	}, nil
}

// Process runs the filter then the transformer against cm, updating its
// status and content in place.
//
// Script and serializer failures never surface as a returned error: they
// set status ERROR and attach a PROCESSING_ERROR content entry so the rest
// of the batch keeps flowing. The returned error is reserved for problems
// with the pipeline itself (nil message, missing raw content, unknown data
// type), which are configuration-class and abort the caller's run.
//
// On success cm ends in exactly one of three states: TRANSFORMED with
// TRANSFORMED and ENCODED content written, FILTERED with content untouched,
// or ERROR with a PROCESSING_ERROR entry.
func (e *Executor) Process(ctx context.Context, cm *message.ConnectorMessage, filter *Filter, transformer *Transformer) error {
	if cm == nil {
		return pkgerrors.WrapInvalid(fmt.Errorf("nil connector message"),
			"Executor", "Process", "validate input")
	}
	raw := cm.GetContent(message.ContentRaw)
	if raw == nil {
		return pkgerrors.WrapInvalid(fmt.Errorf("message %d/%d has no raw content", cm.MessageID, cm.MetaDataID),
			"Executor", "Process", "validate input")
	}

	if transformer == nil {
		transformer = &Transformer{}
	}
	inboundType := transformer.InboundDataType
	if inboundType == "" {
		inboundType = serializer.DataTypeRaw
	}
	outboundType := transformer.OutboundDataType
	if outboundType == "" {
		outboundType = inboundType
	}

	inSer, err := e.serializers.Get(inboundType)
	if err != nil {
		return err
	}
	outSer, err := e.serializers.Get(outboundType)
	if err != nil {
		return err
	}

	// Normalize the raw content into the navigable form scripts see. The
	// converted text lives only in the working variable; no content slot
	// records it.
	working := raw.Content
	if inSer.IsSerializationRequired(true) {
		start := time.Now()
		xml, serr := inSer.ToXML(working)
		e.observeStage(cm.ChannelID, "serialize", start)
		if serr != nil {
			e.fail(cm, fmt.Errorf("normalizing %s content: %w", inboundType, serr))
			return nil
		}
		working = xml
	}

	start := time.Now()
	accepted, ferr := e.runFilter(ctx, cm, filter.enabledRules(), working)
	e.observeStage(cm.ChannelID, "filter", start)
	if ferr != nil {
		e.fail(cm, ferr)
		return nil
	}
	if !accepted {
		cm.SetStatus(message.StatusFiltered)
		e.logger.Debug("message filtered",
			"messageId", cm.MessageID,
			"metaDataId", cm.MetaDataID,
			"channelId", cm.ChannelID)
		return nil
	}

	start = time.Now()
	working, terr := e.runTransformer(ctx, cm, transformer.enabledSteps(), working)
	e.observeStage(cm.ChannelID, "transform", start)
	if terr != nil {
		e.fail(cm, terr)
		return nil
	}

	cm.SetContent(message.NewContent(message.ContentTransformed, working, outboundType))

	encoded := working
	if outSer.IsSerializationRequired(false) {
		start = time.Now()
		enc, serr := outSer.FromXML(working)
		e.observeStage(cm.ChannelID, "encode", start)
		if serr != nil {
			e.fail(cm, fmt.Errorf("encoding %s content: %w", outboundType, serr))
			return nil
		}
		encoded = enc
	}
	cm.SetContent(message.NewContent(message.ContentEncoded, encoded, outboundType))
	cm.SetStatus(message.StatusTransformed)
	return nil
}

// runFilter left-folds the rule chain. Each rule's script result combines
// with the running result via that rule's own operator; the first evaluated
// rule has nothing to combine with and always stands alone. A short-circuit
// skips only the current rule's script, never the rest of the chain: a later
// OR or NONE rule can still flip the outcome.
func (e *Executor) runFilter(ctx context.Context, cm *message.ConnectorMessage, rules []Rule, working string) (bool, error) {
	if len(rules) == 0 {
		return true, nil
	}

	running := true
	for i, rule := range rules {
		op := rule.Operator.normalize()
		if i == 0 {
			op = OperatorNone
		}

		if op == OperatorAnd && !running {
			continue
		}
		if op == OperatorOr && running {
			continue
		}

		compiled, err := e.sandbox.Compile(fmt.Sprintf("filter:%s", rule.label()), rule.Script)
		if err != nil {
			return false, fmt.Errorf("evaluating filter %s: %w", rule.label(), err)
		}
		value, err := e.sandbox.Run(ctx, compiled, e.bindings(cm, working))
		if err != nil {
			return false, fmt.Errorf("evaluating filter %s: %w", rule.label(), err)
		}
		result := value.Bool()

		switch op {
		case OperatorAnd:
			running = running && result
		case OperatorOr:
			running = running || result
		default:
			running = result
		}
	}
	return running, nil
}

// runTransformer executes the step chain over the working content. A step
// that returns a string replaces the working content; any other completion
// value leaves it untouched. On failure the content transformed so far is
// returned so prior steps' committed effects survive in the error report.
func (e *Executor) runTransformer(ctx context.Context, cm *message.ConnectorMessage, steps []Step, working string) (string, error) {
	for _, step := range steps {
		compiled, err := e.sandbox.Compile(fmt.Sprintf("transformer:%s", step.label()), step.Script)
		if err != nil {
			return working, fmt.Errorf("evaluating transformer %s: %w", step.label(), err)
		}
		value, err := e.sandbox.Run(ctx, compiled, e.bindings(cm, working))
		if err != nil {
			return working, fmt.Errorf("evaluating transformer %s: %w", step.label(), err)
		}
		if s, ok := value.Export().(string); ok {
			working = s
		}
	}
	return working, nil
}

// bindings is the closed variable surface filter and transformer scripts
// see: the working content and the four maps. Nothing else from the host
// leaks in.
func (e *Executor) bindings(cm *message.ConnectorMessage, working string) script.Bindings {
	return script.Bindings{
		"msg":          working,
		"sourceMap":    cm.SourceMap(),
		"channelMap":   cm.ChannelMap(),
		"connectorMap": cm.ConnectorMap(),
		"responseMap":  cm.ResponseMap(),
	}
}

// fail marks cm errored and records the failure for operators. Partial map
// writes committed before the failure stay visible.
func (e *Executor) fail(cm *message.ConnectorMessage, err error) {
	cm.SetStatus(message.StatusError)
	cm.SetContent(message.NewContent(message.ContentProcessingError, err.Error(), ""))
	if kind := scriptErrorKind(err); kind != "" && e.metrics != nil {
		e.metrics.RecordScriptError(cm.ChannelID, kind)
	}
	e.logger.Error("message processing failed",
		"messageId", cm.MessageID,
		"metaDataId", cm.MetaDataID,
		"channelId", cm.ChannelID,
		"error", err)
}

func (e *Executor) observeStage(channelID, stage string, start time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordStageDuration(channelID, stage, time.Since(start))
}

// scriptErrorKind maps a failure to the metric label for script errors, or
// "" when the failure did not come from the sandbox.
func scriptErrorKind(err error) string {
	switch {
	case stderrors.Is(err, pkgerrors.ErrScriptCompile):
		return "compile"
	case stderrors.Is(err, pkgerrors.ErrScriptTimeout):
		return "timeout"
	case stderrors.Is(err, pkgerrors.ErrScriptRuntime):
		return "runtime"
	}
	return ""
}

package chat

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/asksite/internal/domain"
	"github.com/kailas-cloud/asksite/internal/metrics"
	"github.com/kailas-cloud/asksite/internal/rag"
)

// Emitter delivers stream events to the connected client. Implementations
// wrap the SSE writer; send failures mean the client went away and are
// surfaced through the request context, not these return values.
type Emitter interface {
	Delta(text string) error
	Status(text string) error
	Error(text string) error
	Done(sources []domain.Source, usage *domain.Usage) error
}

// ChatStream runs one streaming turn, emitting deltas and retrieval
// statuses as they happen. Validation failures return an error before any
// event is written; everything after the first event degrades in-band.
func (s *Service) ChatStream(ctx context.Context, payload Payload, emitter Emitter) error {
	start := s.now()

	t, err := s.prepare(payload)
	if err != nil {
		metrics.ObserveChatRequest("stream", "invalid", start)
		return err
	}

	streamID := SanitizeStreamID(payload.StreamID)
	if streamID != "" {
		if err := s.progress.Begin(ctx, streamID); err != nil {
			s.logger.Warn("progress begin failed", zap.String("stream_id", streamID), zap.Error(err))
			streamID = ""
		}
	}

	emitStatus := func(text string) {
		if text == "" {
			return
		}
		if streamID != "" {
			if err := s.progress.AddStep(ctx, streamID, text); err != nil {
				s.logger.Warn("progress step failed", zap.Error(err))
			}
		}
		_ = emitter.Status(text)
	}
	markDone := func(errMsg string) {
		if streamID == "" {
			return
		}
		if err := s.progress.MarkDone(ctx, streamID, errMsg); err != nil {
			s.logger.Warn("progress mark done failed", zap.Error(err))
		}
	}

	if isStatusPing(t.latestUser) {
		_ = emitter.Delta(s.statusReply(t.latestUser))
		markDone("")
		metrics.ObserveChatRequest("stream", "ping", start)
		return emitter.Done([]domain.Source{}, nil)
	}
	if IsInjectionAttempt(t.latestUser) {
		_ = emitter.Delta(injectionReply)
		markDone("")
		metrics.ObserveChatRequest("stream", "blocked", start)
		return emitter.Done([]domain.Source{}, nil)
	}

	emitStatus("Understanding your request")

	if !s.ragCfg.Disabled {
		emitStatus("Scanning the site for relevant context")
	}
	s.buildContext(ctx, t)

	bag := &sourceBag{excludeID: t.excludeID}
	useTools := s.adapter.SupportsTools()
	opts := s.providerOptions(useTools, bag, emitStatus)
	opts.OnRound = func(round int) {
		emitStatus("Synthesizing findings into the final answer")
	}

	t.messages = attachImage(t.messages, t.attachment)
	systemPrompt := BuildSystemPrompt(s.chatCfg, t.contextText, t.pageTitle, useTools, t.attachment != nil)

	if useTools {
		emitStatus("Planning the best retrieval steps")
	} else {
		emitStatus("Drafting a response")
	}

	streamed := false
	onDelta := func(text string) {
		streamed = true
		_ = emitter.Delta(text)
	}

	result, err := s.adapter.SendStream(ctx, t.messages, systemPrompt, opts, onDelta)

	sources := rag.DedupeSources(append(t.sources, bag.items...))

	if err != nil {
		s.logger.Warn("stream generation failed",
			zap.String("provider", s.adapter.Name()),
			zap.Error(err))
		metrics.ObserveChatRequest("stream", "provider_error", start)
		if !streamed {
			_ = emitter.Error(streamFailureReply)
			markDone(streamFailureReply)
			return emitter.Done(sources, nil)
		}
		markDone("")
		return emitter.Done(sources, nil)
	}

	s.recordUsage(ctx, result.Usage)
	metrics.ObserveChatRequest("stream", "success", start)

	var usage *domain.Usage
	if !result.Usage.IsZero() {
		usage = &result.Usage
	}

	markDone("")
	return emitter.Done(sources, usage)
}

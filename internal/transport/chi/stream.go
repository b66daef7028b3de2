package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/asksite/internal/domain"
	logpkg "github.com/kailas-cloud/asksite/internal/logger"
	"github.com/kailas-cloud/asksite/internal/sse"
)

// streamInvalidReply is sent as an in-band error event when the stream
// payload fails validation; SSE headers are already on the wire by then.
const streamInvalidReply = "Invalid request."

// sseEmitter frames chat stream events as SSE data payloads.
type sseEmitter struct {
	w *sse.Writer
}

type deltaEvent struct {
	Delta string `json:"delta"`
}

type statusEvent struct {
	Status string `json:"status"`
}

type errorEvent struct {
	Error string `json:"error"`
}

type doneEvent struct {
	Done    bool            `json:"done"`
	Sources []domain.Source `json:"sources"`
	Usage   *domain.Usage   `json:"usage,omitempty"`
}

func (e *sseEmitter) send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return e.w.Send(string(data))
}

func (e *sseEmitter) Delta(text string) error  { return e.send(deltaEvent{Delta: text}) }
func (e *sseEmitter) Status(text string) error { return e.send(statusEvent{Status: text}) }
func (e *sseEmitter) Error(text string) error  { return e.send(errorEvent{Error: text}) }

func (e *sseEmitter) Done(sources []domain.Source, usage *domain.Usage) error {
	if sources == nil {
		sources = []domain.Source{}
	}
	if err := e.send(doneEvent{Done: true, Sources: sources, Usage: usage}); err != nil {
		return err
	}
	return e.w.Done()
}

// handleChatStream handles POST /api/v1/chat/stream. Once the SSE channel
// is open every failure is reported in-band so the widget always sees a
// terminated stream.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	log := logpkg.FromContext(r.Context(), s.logger)
	payload, decodeErr := s.decodePayload(w, r)

	writer, err := sse.NewWriter(w)
	if err != nil {
		log.Error("sse unsupported", zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternalError, "streaming not supported")
		return
	}

	// Open the stream and push padding so buffering proxies release the
	// headers immediately.
	_ = writer.Comment("stream-open")
	_ = writer.Pad()

	emitter := &sseEmitter{w: writer}

	if decodeErr != nil {
		log.Warn("stream payload rejected", zap.Error(decodeErr))
		_ = emitter.Error(streamInvalidReply)
		_ = writer.Done()
		return
	}

	if err := s.chat.ChatStream(r.Context(), payload, emitter); err != nil {
		// Validation failures surface before any event is emitted.
		if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrPayloadTooLarge) {
			_ = emitter.Error(streamInvalidReply)
		} else {
			log.Error("chat stream failed", zap.Error(err))
			_ = emitter.Error("internal error")
		}
		_ = writer.Done()
	}
}

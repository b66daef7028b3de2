package chi

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/asksite/internal/domain"
	"github.com/kailas-cloud/asksite/internal/repository/progress"
	"github.com/kailas-cloud/asksite/internal/repository/usagelog"
	chatuc "github.com/kailas-cloud/asksite/internal/usecase/chat"
)

// fakeChat scripts the chat usecase.
type fakeChat struct {
	response  chatuc.Response
	err       error
	streamFn  func(ctx context.Context, payload chatuc.Payload, emitter chatuc.Emitter) error
	maxBytes  int
	lastInput chatuc.Payload
}

func (f *fakeChat) Chat(ctx context.Context, payload chatuc.Payload) (chatuc.Response, error) {
	f.lastInput = payload
	return f.response, f.err
}

func (f *fakeChat) ChatStream(ctx context.Context, payload chatuc.Payload, emitter chatuc.Emitter) error {
	f.lastInput = payload
	if f.streamFn != nil {
		return f.streamFn(ctx, payload, emitter)
	}
	return nil
}

func (f *fakeChat) MaxPayloadBytes() int {
	if f.maxBytes > 0 {
		return f.maxBytes
	}
	return 50_000
}

type fakeProgressReader struct {
	state progress.State
	err   error
	ids   []string
}

func (f *fakeProgressReader) Get(ctx context.Context, id string) (progress.State, error) {
	f.ids = append(f.ids, id)
	return f.state, f.err
}

type fakeUsageReader struct {
	entries []usagelog.Entry
	err     error
}

func (f *fakeUsageReader) Recent(ctx context.Context, n int) ([]usagelog.Entry, error) {
	return f.entries, f.err
}

type fakeIndex struct {
	snapshot    domain.IndexSnapshot
	err         error
	rebuilds    int
	invalidated int
}

func (f *fakeIndex) Index(ctx context.Context, force bool) (domain.IndexSnapshot, error) {
	f.rebuilds++
	return f.snapshot, f.err
}

func (f *fakeIndex) Invalidate(ctx context.Context) error {
	f.invalidated++
	return f.err
}

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(ctx context.Context) error { return f.err }

type fakeLimiter struct {
	allow bool
	err   error
	ips   []string
}

func (f *fakeLimiter) Allow(ctx context.Context, ip string) (bool, error) {
	f.ips = append(f.ips, ip)
	return f.allow, f.err
}

type serverEnv struct {
	server   *Server
	handler  http.Handler
	chat     *fakeChat
	progress *fakeProgressReader
	usage    *fakeUsageReader
	index    *fakeIndex
	limiter  *fakeLimiter
}

func newServerEnv(adminKeys []string) *serverEnv {
	chat := &fakeChat{}
	prog := &fakeProgressReader{}
	usage := &fakeUsageReader{}
	index := &fakeIndex{}
	lim := &fakeLimiter{allow: true}

	srv := NewServer(chat, prog, usage, index, &fakePinger{},
		lim, "https://example.com", adminKeys, zap.NewNop())

	return &serverEnv{
		server:   srv,
		handler:  srv.Router(),
		chat:     chat,
		progress: prog,
		usage:    usage,
		index:    index,
		limiter:  lim,
	}
}

var errBackend = errors.New("backend down")

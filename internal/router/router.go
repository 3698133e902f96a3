package router

import (
	"context"
	"fmt"
	"sync"

	"github.com/easysoft/xuanxuan-host/internal/logging"
)

// Replier answers a call on the caller's connection.
type Replier interface {
	Reply(replyID string, value any) error
	ReplyError(replyID string, err error) error
}

// Router maps command names to handlers.
type Router struct {
	commands map[Command]Spec
	logger   *logging.Logger
	wg       sync.WaitGroup
}

// New builds a router from a command table. The table is copied.
func New(commands map[Command]Spec, logger *logging.Logger) *Router {
	if logger == nil {
		logger = logging.Nop()
	}
	table := make(map[Command]Spec, len(commands))
	for name, spec := range commands {
		table[name] = spec
	}
	return &Router{commands: table, logger: logger}
}

// Has reports whether method is a known command.
func (r *Router) Has(method string) bool {
	_, ok := r.commands[Command(method)]
	return ok
}

// Dispatch runs method and replies on replyID according to the result kind:
// values reply at once, async results reply when their future completes, and
// void results never reply. Failures are logged and, when the caller supplied
// a reply id, answered with an error.
func (r *Router) Dispatch(ctx context.Context, from Replier, method, replyID string, args Args) {
	spec, ok := r.commands[Command(method)]
	if !ok {
		r.fail(from, method, replyID, fmt.Errorf("%w: %s", ErrUnknownCommand, method))
		return
	}

	res, err := r.invoke(ctx, spec, method, args)
	if spec.NoReply {
		if err != nil {
			r.logger.Error().Err(err).Str("method", method).Msg("Remote command failed")
		}
		return
	}
	if err != nil {
		r.fail(from, method, replyID, err)
		return
	}

	switch res.kind {
	case kindVoid:
	case kindValue:
		r.reply(from, method, replyID, res.value)
	case kindAsync:
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			select {
			case <-res.future.Done():
				v, err := res.future.Result()
				if err != nil {
					r.fail(from, method, replyID, err)
					return
				}
				r.reply(from, method, replyID, v)
			case <-ctx.Done():
				r.logger.Debug().Str("method", method).Msg("Remote call abandoned")
			}
		}()
	}
}

func (r *Router) invoke(ctx context.Context, spec Spec, method string, args Args) (res Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("command %s panicked: %v", method, p)
		}
	}()
	return spec.Handler(ctx, args)
}

func (r *Router) reply(from Replier, method, replyID string, v any) {
	if replyID == "" {
		return
	}
	if err := from.Reply(replyID, v); err != nil {
		r.logger.Warn().Err(err).Str("method", method).Msg("Failed to send remote call reply")
	}
}

func (r *Router) fail(from Replier, method, replyID string, err error) {
	r.logger.Error().Err(err).Str("method", method).Msg("Remote command failed")
	if replyID == "" {
		return
	}
	if rerr := from.ReplyError(replyID, err); rerr != nil {
		r.logger.Warn().Err(rerr).Str("method", method).Msg("Failed to send remote call error")
	}
}

// Wait blocks until all pending async replies have been sent or abandoned.
func (r *Router) Wait() {
	r.wg.Wait()
}

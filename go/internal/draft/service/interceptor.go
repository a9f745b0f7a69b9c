package service

import (
	"context"
	"time"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// NewLoggingInterceptor logs every unary call with its outcome
func NewLoggingInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			var ev *zerolog.Event
			switch code := connect.CodeOf(err); {
			case err == nil:
				ev = log.Debug()
			case code == connect.CodeInternal || code == connect.CodeUnknown:
				ev = log.Error().Err(err)
			default:
				ev = log.Info().Err(err)
			}
			if err != nil {
				ev = ev.Str("code", connect.CodeOf(err).String())
			}
			ev.Str("procedure", req.Spec().Procedure).
				Str("actor_id", req.Header().Get(ActorHeader)).
				Dur("duration", time.Since(start)).
				Msg("rpc handled")
			return resp, err
		}
	}
}

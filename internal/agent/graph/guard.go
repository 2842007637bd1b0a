package graph

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	"github.com/nutriask/server/internal/agent/graph/nodes"
	"github.com/nutriask/server/internal/agent/model"
	logx "github.com/nutriask/server/pkg/logger"
)

// runGuard tracks one run's stage count and the first rule violation. A run
// executes stages sequentially, so it needs no locking.
type runGuard struct {
	max   int
	steps int
	err   error
}

type guardKey struct{}

const endNode = compose.END

func withGuard(ctx context.Context, g *runGuard) context.Context {
	return context.WithValue(ctx, guardKey{}, g)
}

func guardFrom(ctx context.Context) *runGuard {
	g, _ := ctx.Value(guardKey{}).(*runGuard)
	return g
}

func (g *runGuard) fail(err error) {
	if g.err == nil {
		g.err = err
	}
}

// stageLambda adapts a Handler to a graph node: it counts the step, records
// the visit and stores the chosen route on the state.
func stageLambda(stage model.Stage, h nodes.Handler) func(context.Context, *model.ConversationState) (*model.ConversationState, error) {
	return func(ctx context.Context, s *model.ConversationState) (*model.ConversationState, error) {
		g := guardFrom(ctx)
		if g == nil {
			return s, fmt.Errorf("stage %s invoked outside a pipeline run", stage)
		}
		if g.err != nil {
			return s, nil
		}
		g.steps++
		if g.steps > g.max {
			g.fail(fmt.Errorf("%w: %d", ErrStepLimitExceeded, g.max))
			return s, nil
		}

		log := logx.Ctx(ctx).With().Str("stage", string(stage)).Logger()
		ctx = log.WithContext(ctx)
		log.Debug().Msg("Stage start")

		s.Visited = append(s.Visited, stage)
		s.Route = h(ctx, s)

		log.Debug().Str("next", string(s.Route)).Msg("Stage end")
		return s, nil
	}
}

// routeCondition picks the next node from the state's Route. Any violation is
// recorded on the guard and ends the graph.
func routeCondition(from model.Stage) func(context.Context, *model.ConversationState) (string, error) {
	return func(ctx context.Context, s *model.ConversationState) (string, error) {
		g := guardFrom(ctx)
		if g == nil {
			return "", fmt.Errorf("branch %s evaluated outside a pipeline run", from)
		}
		if g.err != nil {
			return endNode, nil
		}

		next := s.Route
		if _, known := Transitions[next]; !known {
			g.fail(fmt.Errorf("%w: %q after %s", ErrUnknownStage, next, from))
			return endNode, nil
		}
		if !Allowed(from, next) {
			g.fail(fmt.Errorf("%w: %s -> %s", ErrDisallowedTransition, from, next))
			return endNode, nil
		}
		return string(next), nil
	}
}

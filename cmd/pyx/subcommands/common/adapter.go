package common

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/youta-t/flarc"
)

type PyxTaskWithCommonFlag[T any] func(
	ctx context.Context,
	logger *log.Logger,
	commonFlag CommonFlags,
	cl flarc.Commandline[T],
	params []any,
) error

func NewTaskWithCommonFlag[T any](task PyxTaskWithCommonFlag[T]) flarc.Task[T] {
	return func(ctx context.Context, cl flarc.Commandline[T], pos []any) error {
		var commonFlag CommonFlags
		found := false
		newpos := make([]any, 0, len(pos))
		for _, p := range pos {
			switch v := p.(type) {
			case CommonFlags:
				found = true
				commonFlag = v
			default:
				newpos = append(newpos, p)
			}
		}
		if !found {
			return errors.New("programming error: common flags not found")
		}

		logger := log.New(cl.Stderr(), "", log.LstdFlags)
		logger.SetPrefix(fmt.Sprintf("[%s] ", cl.Fullname()))

		return task(
			ctx,
			logger,
			commonFlag,
			cl,
			newpos,
		)
	}
}

type Task[T any] func(
	ctx context.Context,
	logger *log.Logger,
	session *Session,
	cl flarc.Commandline[T],
	params []any,
) error

// NewTask builds a flarc task running preconditions, the task and then persisting the session.
//
// Config and project changed by preconditions or the task are saved
// even if the task fails.
func NewTask[T any](task Task[T], preconditions ...Precondition) flarc.Task[T] {
	return NewTaskWithCommonFlag(func(
		ctx context.Context,
		logger *log.Logger,
		commonFlag CommonFlags,
		cl flarc.Commandline[T],
		params []any,
	) error {
		session, err := OpenSession(commonFlag)
		if err != nil {
			return err
		}
		return Run(ctx, logger, session, cl, params, task, preconditions...)
	})
}

// Run runs preconditions and the task in the session, and persists the session.
func Run[T any](
	ctx context.Context,
	logger *log.Logger,
	session *Session,
	cl flarc.Commandline[T],
	params []any,
	task Task[T],
	preconditions ...Precondition,
) error {
	err := session.Prepare(ctx, logger, preconditions...)
	if err == nil {
		err = task(ctx, logger, session, cl, params)
	}
	if perr := session.Persist(); perr != nil {
		return errors.Join(err, fmt.Errorf("failed to save: %w", perr))
	}
	return err
}

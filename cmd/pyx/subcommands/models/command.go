package models

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/pyx-ai/pyx-cli/cmd/pyx/rest"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/common"
	"github.com/youta-t/flarc"
)

var Preconditions = []common.Precondition{common.RequireAuth}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"List your orders and models on pyx.ai.",
		struct{}{},
		flarc.Args{},
		common.NewTask(Task(), Preconditions...),
	)
}

func Task() common.Task[struct{}] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		session *common.Session,
		cl flarc.Commandline[struct{}],
		params []any,
	) error {
		user, err := session.Client.GetUser(ctx)
		if err != nil {
			return err
		}
		return Print(cl.Stdout(), user)
	}
}

// Print writes orders and models of the user. Empty sections are omitted.
func Print(w io.Writer, user rest.User) error {
	if 0 < len(user.Orders) {
		if _, err := fmt.Fprintln(w, "My orders:"); err != nil {
			return err
		}
		for _, o := range user.Orders {
			if _, err := fmt.Fprintf(w, "* (id: %s) %s %s\n", o.ID, o.License, o.Name); err != nil {
				return err
			}
		}
	}
	if 0 < len(user.Models) {
		if _, err := fmt.Fprintln(w, "My models:"); err != nil {
			return err
		}
		for _, m := range user.Models {
			if _, err := fmt.Fprintf(
				w, "* (id: %s) %s %s (approved: %t) (published: %t)\n",
				m.ID, m.License, m.Name, m.Approved, m.Published,
			); err != nil {
				return err
			}
		}
	}
	return nil
}

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/docdelivery/internal/client/client"
	"github.com/dmitrijs2005/docdelivery/internal/client/config"
)

// ErrUsage is returned for an unknown command or malformed operands.
var ErrUsage = errors.New("usage error")

const usage = `usage: docctl [-a addr] [-t token] [-s secret] [--timeout d] <command> [args]

commands:
  create <purchaser> <document> <purchase> [--device FP]
  resolve <token> [--origin IP] [--signature UA] [--device FP]
  analytics [--from RFC3339] [--to RFC3339] [--document ID] [--recent N]
  block <purchaser> <document> <purchase> [--reason TEXT]
  unblock <purchaser> <document> <purchase>
  token [--subject NAME] [--role service|admin] [--ttl DURATION]
`

type App struct {
	config *config.Config
	client client.DeliveryClient
	out    io.Writer
}

func NewApp(c *config.Config, dc client.DeliveryClient, out io.Writer) *App {
	return &App{config: c, client: dc, out: out}
}

// Run dispatches args[0] to its command. Each remote call gets its own
// deadline from the configured timeout.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.out, usage)
		return ErrUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "help", "-h", "--help":
		fmt.Fprint(a.out, usage)
		return nil
	case "token":
		return a.token(rest)
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	var (
		res map[string]any
		err error
	)
	switch cmd {
	case "create":
		res, err = a.create(ctx, rest)
	case "resolve":
		res, err = a.resolve(ctx, rest)
	case "analytics":
		res, err = a.analytics(ctx, rest)
	case "block":
		res, err = a.setBlocked(ctx, rest, true)
	case "unblock":
		res, err = a.setBlocked(ctx, rest, false)
	default:
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
	}
	if err != nil {
		return err
	}
	return a.print(res)
}

func (a *App) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/docdelivery/internal/client/client"
	"github.com/dmitrijs2005/docdelivery/internal/server/auth"
	"github.com/spf13/pflag"
)

func newCommandFlags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// parse parses args and checks that exactly n positional operands remain.
func parse(fs *pflag.FlagSet, args []string, n int) ([]string, error) {
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUsage, fs.Name(), err)
	}
	if fs.NArg() != n {
		return nil, fmt.Errorf("%w: %s expects %d argument(s), got %d", ErrUsage, fs.Name(), n, fs.NArg())
	}
	return fs.Args(), nil
}

func (a *App) create(ctx context.Context, args []string) (map[string]any, error) {
	fs := newCommandFlags("create")
	device := fs.String("device", "", "device fingerprint")
	ops, err := parse(fs, args, 3)
	if err != nil {
		return nil, err
	}
	return a.client.CreateDelivery(ctx, client.CreateRequest{
		PurchaserID:       ops[0],
		DocumentID:        ops[1],
		PurchaseID:        ops[2],
		DeviceFingerprint: *device,
	})
}

func (a *App) resolve(ctx context.Context, args []string) (map[string]any, error) {
	fs := newCommandFlags("resolve")
	origin := fs.String("origin", "", "requester address")
	signature := fs.String("signature", "", "client signature, e.g. user agent")
	device := fs.String("device", "", "device fingerprint")
	ops, err := parse(fs, args, 1)
	if err != nil {
		return nil, err
	}
	return a.client.ResolveDelivery(ctx, client.ResolveRequest{
		Token:             ops[0],
		Origin:            *origin,
		ClientSignature:   *signature,
		DeviceFingerprint: *device,
	})
}

func (a *App) analytics(ctx context.Context, args []string) (map[string]any, error) {
	fs := newCommandFlags("analytics")
	from := fs.String("from", "", "window start (RFC 3339)")
	to := fs.String("to", "", "window end (RFC 3339)")
	document := fs.String("document", "", "restrict to one document")
	recent := fs.Int("recent", 0, "size of the recent deliveries feed")
	if _, err := parse(fs, args, 0); err != nil {
		return nil, err
	}
	return a.client.GetAnalytics(ctx, client.AnalyticsRequest{
		From:        *from,
		To:          *to,
		DocumentID:  *document,
		RecentLimit: *recent,
	})
}

func (a *App) setBlocked(ctx context.Context, args []string, blocked bool) (map[string]any, error) {
	name := "unblock"
	if blocked {
		name = "block"
	}
	fs := newCommandFlags(name)
	reason := fs.String("reason", "", "reason recorded on the entry")
	ops, err := parse(fs, args, 3)
	if err != nil {
		return nil, err
	}
	return a.client.SetBlocked(ctx, client.BlockRequest{
		PurchaserID: ops[0],
		DocumentID:  ops[1],
		PurchaseID:  ops[2],
		Blocked:     blocked,
		Reason:      *reason,
	})
}

// token mints an access JWT locally with the configured signing secret.
func (a *App) token(args []string) error {
	fs := newCommandFlags("token")
	subject := fs.String("subject", "docctl", "token subject")
	role := fs.String("role", auth.RoleAdmin, "service or admin")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}
	if *role != auth.RoleAdmin && *role != auth.RoleService {
		return fmt.Errorf("%w: unknown role %q", ErrUsage, *role)
	}

	tok, err := auth.GenerateToken(*subject, *role, []byte(a.config.SigningSecret), *ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, tok)
	return err
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	goAccess "github.com/MrEthical07/goAccess"
	"github.com/MrEthical07/goAccess/store/sqlstore"
)

func newFlagSet(a *app, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	a.cfg.bindStoreFlags(fs)
	return fs
}

func runMigrate(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "migrate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	driver, err := sqlstore.ParseDriver(a.cfg.Driver)
	if err != nil {
		return err
	}
	db, err := sqlstore.Open(ctx, driver, a.cfg.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := sqlstore.Migrate(ctx, db, driver); err != nil {
		return err
	}
	version, err := sqlstore.MigrationVersion(ctx, db, driver)
	if err != nil {
		return err
	}
	a.log.Info("schema migrated", "driver", string(driver), "version", version)
	return nil
}

func runUnlock(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "unlock")
	kind := fs.String("kind", string(goAccess.KindUser), "account kind: admin or user")
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return a.withEngine(ctx, func(e *goAccess.Engine) error {
		acct, err := findAccount(ctx, e, *kind, *email)
		if err != nil {
			return err
		}
		if err := e.ResetLoginAttempts(ctx, acct.Ref()); err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "unlocked %s\n", acct.Ref())
		return nil
	})
}

func runGrant(ctx context.Context, a *app, args []string) error {
	return changePermission(ctx, a, "grant", args, (*goAccess.Engine).GrantPermission)
}

func runRevoke(ctx context.Context, a *app, args []string) error {
	return changePermission(ctx, a, "revoke", args, (*goAccess.Engine).RevokePermission)
}

type permissionOp func(*goAccess.Engine, context.Context, goAccess.AccountRef, string) error

func changePermission(ctx context.Context, a *app, name string, args []string, op permissionOp) error {
	fs := newFlagSet(a, name)
	kind := fs.String("kind", string(goAccess.KindAdmin), "account kind: admin or user")
	email := fs.String("email", "", "account email")
	perm := fs.String("permission", "", "permission token, e.g. users.edit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *perm == "" {
		fmt.Fprintln(fs.Output(), "-permission is required")
		return errUsage
	}

	return a.withEngine(ctx, func(e *goAccess.Engine) error {
		acct, err := findAccount(ctx, e, *kind, *email)
		if err != nil {
			return err
		}
		if err := op(e, ctx, acct.Ref(), *perm); err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "%s %s on %s\n", name, *perm, acct.Ref())
		return nil
	})
}

func runRoles(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "roles")
	email := fs.String("email", "", "admin email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return a.withEngine(ctx, func(e *goAccess.Engine) error {
		acct, err := findAccount(ctx, e, string(goAccess.KindAdmin), *email)
		if err != nil {
			return err
		}
		roles, err := e.ManageableRoles(ctx, acct.ID)
		if err != nil {
			return err
		}
		names := make([]string, 0, len(roles))
		for _, r := range roles {
			names = append(names, string(r))
		}
		fmt.Fprintf(a.stdout, "%s (%s) may assign: %s\n", acct.Email, acct.Role, strings.Join(names, ", "))
		return nil
	})
}

func runCanImpersonate(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "can-impersonate")
	actorKind := fs.String("actor-kind", string(goAccess.KindAdmin), "impersonator account kind")
	actorEmail := fs.String("actor", "", "email of the impersonator")
	targetKind := fs.String("target-kind", string(goAccess.KindUser), "target account kind")
	targetEmail := fs.String("target", "", "target account email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return a.withEngine(ctx, func(e *goAccess.Engine) error {
		actor, err := findAccount(ctx, e, *actorKind, *actorEmail)
		if err != nil {
			return err
		}
		target, err := findAccount(ctx, e, *targetKind, *targetEmail)
		if err != nil {
			return err
		}

		err = e.CheckImpersonation(ctx, actor.Ref(), target.Ref())
		switch {
		case err == nil:
			fmt.Fprintf(a.stdout, "allowed: %s may impersonate %s\n", actor.Email, target.Email)
			return nil
		case errors.Is(err, goAccess.ErrPermissionDenied),
			errors.Is(err, goAccess.ErrAccountInactive),
			errors.Is(err, goAccess.ErrSelfImpersonation):
			fmt.Fprintf(a.stdout, "denied: %v\n", err)
			return nil
		default:
			return err
		}
	})
}

func findAccount(ctx context.Context, e *goAccess.Engine, kind, email string) (goAccess.Account, error) {
	k := goAccess.AccountKind(kind)
	if !k.Valid() {
		return goAccess.Account{}, fmt.Errorf("unknown account kind %q", kind)
	}
	if strings.TrimSpace(email) == "" {
		return goAccess.Account{}, errors.New("-email is required")
	}
	return e.FindAccountByEmail(ctx, k, email)
}

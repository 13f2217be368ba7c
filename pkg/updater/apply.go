package updater

import (
	"context"
	"database/sql"
	"time"
)

// applier carries out decisions. Each decision that writes runs in its own
// transaction, so a failure leaves that file's ledger row exactly as it was
// and the file stays pending for the next run.
type applier struct {
	db     DB
	ledger *Ledger
	exec   Executor
}

func (a *applier) apply(ctx context.Context, d Decision) error {
	var err error
	switch d.Action {
	case ActionSkip:
		return nil
	case ActionApply:
		err = inTx(ctx, a.db, func(tx *sql.Tx) error {
			start := time.Now()
			if err := a.exec.Execute(ctx, tx, d.File.Path); err != nil {
				return err
			}
			return a.ledger.Upsert(ctx, tx, AppliedRecord{
				Name:      d.File.Name,
				Hash:      d.Hash,
				State:     d.File.State,
				AppliedAt: time.Now(),
				Speed:     time.Since(start),
			})
		})
	case ActionRehash:
		err = inTx(ctx, a.db, func(tx *sql.Tx) error {
			return a.ledger.Upsert(ctx, tx, AppliedRecord{
				Name:      d.File.Name,
				Hash:      d.Hash,
				State:     d.File.State,
				AppliedAt: time.Now(),
			})
		})
	case ActionPatchState:
		err = inTx(ctx, a.db, func(tx *sql.Tx) error {
			return a.ledger.PatchState(ctx, tx, d.File.Name, d.File.State)
		})
	case ActionRename:
		err = inTx(ctx, a.db, func(tx *sql.Tx) error {
			return a.ledger.Rename(ctx, tx, d.RenameFrom, d.File.Name)
		})
	}
	if err != nil {
		return &FileError{Op: d.Action.String(), Path: d.File.Path, Err: err}
	}
	return nil
}

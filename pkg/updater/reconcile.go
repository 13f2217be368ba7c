package updater

import (
	"log/slog"
	"sort"
)

// Action is the outcome of reconciling one candidate against the ledger.
type Action int

const (
	// ActionSkip leaves the file and its ledger row untouched.
	ActionSkip Action = iota
	// ActionPatchState keeps the hash but rewrites the stored state.
	ActionPatchState
	// ActionApply executes the file and records it.
	ActionApply
	// ActionRehash records the current hash without executing the file.
	ActionRehash
	// ActionRename moves an existing ledger row to the file's name.
	ActionRename
)

func (a Action) String() string {
	switch a {
	case ActionSkip:
		return "skip"
	case ActionPatchState:
		return "patch-state"
	case ActionApply:
		return "apply"
	case ActionRehash:
		return "rehash"
	case ActionRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Policy holds the switches that control how strictly the ledger is checked.
type Policy struct {
	// Redundancy compares hashes of already-applied files. When false any
	// ledger hit is skipped.
	Redundancy bool
	// ArchivedRedundancy compares hashes of files that are archived both on
	// disk and in the ledger. When false they are skipped unread.
	ArchivedRedundancy bool
	// AllowRehash repairs rows whose stored hash is empty without running
	// the file again.
	AllowRehash bool
	// CleanDeadRefMaxCount bounds orphan cleanup: negative always cleans,
	// otherwise orphans are deleted only if there are at most this many.
	CleanDeadRefMaxCount int
}

// ShouldCleanUp reports whether a run with the given number of orphaned
// rows deletes them. The decision covers every orphan of the run at once.
func (p Policy) ShouldCleanUp(orphans int) bool {
	return p.CleanDeadRefMaxCount < 0 || orphans <= p.CleanDeadRefMaxCount
}

// Decision describes what to do with one candidate.
type Decision struct {
	File   *MigrationFile
	Action Action
	// Hash is the file's content hash. Empty when the decision did not need it.
	Hash string
	// Previous is the ledger row stored under File.Name, if any.
	Previous *AppliedRecord
	// RenameFrom is the ledger name being moved, for ActionRename.
	RenameFrom string
	// ConflictWith names a file that is still present with identical
	// content, when a rename was refused and the file is applied as new.
	ConflictWith string
}

// Reapply reports whether an ActionApply re-executes a file already in the ledger.
func (d Decision) Reapply() bool {
	return d.Action == ActionApply && d.Previous != nil
}

// reconciler decides the action for each candidate of one run. It holds the
// ledger snapshot taken at the start of the run; rows are removed from it as
// candidates claim them, and whatever is left at the end is orphaned.
type reconciler struct {
	policy  Policy
	logger  *slog.Logger
	applied map[string]AppliedRecord
	hashes  map[string]string
	present map[string]bool
}

func newReconciler(policy Policy, records []AppliedRecord, files []*MigrationFile, logger *slog.Logger) *reconciler {
	r := &reconciler{
		policy:  policy,
		logger:  logger,
		applied: make(map[string]AppliedRecord, len(records)),
		hashes:  make(map[string]string, len(records)),
		present: make(map[string]bool, len(files)),
	}
	for _, rec := range records {
		r.applied[rec.Name] = rec
		if rec.Hash == "" {
			continue
		}
		// Records arrive ordered by name; the first name wins a shared hash.
		if _, ok := r.hashes[rec.Hash]; !ok {
			r.hashes[rec.Hash] = rec.Name
		}
	}
	for _, f := range files {
		r.present[f.Name] = true
	}
	return r
}

// decide reconciles f against the snapshot. It does not modify the snapshot;
// call claim once the decision has been carried out.
func (r *reconciler) decide(f *MigrationFile) (Decision, error) {
	d := Decision{File: f}

	rec, ok := r.applied[f.Name]
	if !ok {
		hash, err := f.Hash()
		if err != nil {
			return d, err
		}
		d.Hash = hash
		d.Action = ActionApply

		other, found := r.hashes[hash]
		if !found {
			return d, nil
		}
		if r.present[other] {
			r.logger.Warn("file has the same content as another file that still exists, applying it as new",
				"file", f.Path,
				"other", other)
			d.ConflictWith = other
			return d, nil
		}
		d.Action = ActionRename
		d.RenameFrom = other
		return d, nil
	}

	d.Previous = &rec

	if !r.policy.Redundancy {
		d.Action = ActionSkip
		return d, nil
	}
	if !r.policy.ArchivedRedundancy && rec.State == StateArchived && f.State == StateArchived {
		d.Action = ActionSkip
		return d, nil
	}

	hash, err := f.Hash()
	if err != nil {
		return d, err
	}
	d.Hash = hash

	switch {
	case r.policy.AllowRehash && rec.Hash == "":
		d.Action = ActionRehash
	case rec.Hash != hash:
		d.Action = ActionApply
	case rec.State != f.State:
		d.Action = ActionPatchState
	default:
		d.Action = ActionSkip
	}
	return d, nil
}

// claim removes the ledger rows a carried-out decision accounts for.
func (r *reconciler) claim(d Decision) {
	delete(r.applied, d.File.Name)
	if d.Action == ActionRename {
		delete(r.applied, d.RenameFrom)
		// The moved row cannot be matched by another candidate's hash.
		delete(r.hashes, d.Hash)
	}
}

// orphans returns unclaimed rows ordered by name. Rows in StateModule are
// left out: a module missing from this run is expected and its rows must
// survive until it returns.
func (r *reconciler) orphans() []AppliedRecord {
	var out []AppliedRecord
	for _, rec := range r.applied {
		if rec.State == StateModule {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// reconcileOrder returns files with released and archived files first and
// custom and module files second, preserving scan order within each group.
// Released files therefore win name and hash collisions across the groups.
func reconcileOrder(files []*MigrationFile) []*MigrationFile {
	ordered := make([]*MigrationFile, 0, len(files))
	for _, f := range files {
		if !f.State.isCustomGroup() {
			ordered = append(ordered, f)
		}
	}
	for _, f := range files {
		if f.State.isCustomGroup() {
			ordered = append(ordered, f)
		}
	}
	return ordered
}

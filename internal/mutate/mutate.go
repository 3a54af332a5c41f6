// Package mutate implements the Primitive Mutators (spec.md §4.6): six
// byte-precise AST-node edits, each following the transactional protocol —
// snapshot, resolve, precondition, edit, postcondition, rollback-on-failure.
// Grounded in the teacher's providers/base.Provider.doReplace/doDelete/
// doInsertBefore/doInsertAfter (descending-sort-then-rewrite) and
// core/atomicwriter.go's snapshot-before-write discipline.
package mutate

import (
	"context"
	"os"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/oxhq/morfx/internal/langreg"
	"github.com/oxhq/morfx/internal/locator"
	"github.com/oxhq/morfx/internal/model"
	"github.com/oxhq/morfx/internal/verify"
	"github.com/oxhq/morfx/internal/xerrors"
)

// txn is the rollback token: the pre-edit byte snapshot of a single file,
// plus the path it belongs to.
type txn struct {
	path     string
	snapshot []byte
}

func beginTxn(path string, source []byte) *txn {
	snap := make([]byte, len(source))
	copy(snap, source)
	return &txn{path: path, snapshot: snap}
}

func (t *txn) rollback() error {
	return os.WriteFile(t.path, t.snapshot, 0o644)
}

// resolveUnique resolves target and enforces the ambiguity guard: exactly
// one match is required unless the locator already disambiguates via
// Index, in which case Resolve itself narrowed it to one.
func resolveUnique(ctx context.Context, target *model.Locator) (*locator.Resolution, *sitter.Node, error) {
	res, err := locator.Resolve(ctx, target, "")
	if err != nil {
		return nil, nil, err
	}
	if len(res.Nodes) == 0 {
		res.Close()
		return nil, nil, xerrors.New(xerrors.CodeLocatorMiss, "locator matched no nodes in %s", target.File)
	}
	if len(res.Nodes) > 1 {
		res.Close()
		return nil, nil, xerrors.New(xerrors.CodeLocatorAmbiguous, "locator matched %d nodes in %s; add index to disambiguate", len(res.Nodes), target.File)
	}
	return res, res.Nodes[0], nil
}

func finish(result *model.ExecutionResult, res *locator.Resolution) *model.ExecutionResult {
	if res != nil {
		res.Close()
	}
	return result
}

func lineRangeResult(node *sitter.Node) map[string]any {
	return map[string]any{
		"start_line": int(node.StartPoint().Row) + 1,
		"end_line":   int(node.EndPoint().Row) + 1,
	}
}

func fail(err error) *model.ExecutionResult {
	return &model.ExecutionResult{Success: false, Error: err.Error()}
}

// applyAndVerify writes newBuf to path, runs the post-edit layers, and
// rolls back on failure. The lang parameter drives parsing for the
// verifier.
func applyAndVerify(
	ctx context.Context,
	t *txn,
	before, newBuf []byte,
	editStart, editEndOld, editEndNew uint32,
	expectedType string,
	lang langreg.Language,
) *model.ExecutionResult {
	if err := os.WriteFile(t.path, newBuf, 0o644); err != nil {
		return fail(xerrors.Wrap(xerrors.CodeFilesystemFailure, err, "writing %s", t.path))
	}

	vr := verify.PostEdit(ctx, verify.PostEditInput{
		Lang:         lang,
		Before:       before,
		After:        newBuf,
		EditStart:    editStart,
		EditEndOld:   editEndOld,
		EditEndNew:   editEndNew,
		ExpectedType: expectedType,
	})

	if !vr.Passed {
		if rbErr := t.rollback(); rbErr != nil {
			return fail(xerrors.Wrap(xerrors.CodeFilesystemFailure, rbErr, "rollback of %s failed after postcondition failure", t.path))
		}
		return &model.ExecutionResult{
			Success:    false,
			Error:      strings.Join(vr.Errors, "; "),
			RolledBack: true,
		}
	}

	return &model.ExecutionResult{Success: true}
}

func spliceBytes(src []byte, start, end uint32, replacement []byte) []byte {
	out := make([]byte, 0, len(src)-int(end-start)+len(replacement))
	out = append(out, src[:start]...)
	out = append(out, replacement...)
	out = append(out, src[end:]...)
	return out
}

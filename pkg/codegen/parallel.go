package codegen

import (
	"golang.org/x/sync/errgroup"

	"github.com/xplshn/gpl0/pkg/ast"
)

// lowerParallel lowers every top-level declaration into a private unit, up to cfg.Jobs at a
// time, then splices the units back in program order. Workers only read the tree and the
// table; entries are rebased and backfilled by the caller after the merge.
func (ctx *Context) lowerParallel(decls []ast.NodeID) (*unit, error) {
	units := make([]*unit, len(decls))
	errs := make([]error, len(decls))

	// Each declaration sees the globals declared before it.
	live := make([]int, len(decls))
	declared := 0
	for i, id := range decls {
		live[i] = declared
		switch ctx.tree.Kind(id) {
		case ast.VarDecl, ast.FuncDecl:
			declared++
		}
	}

	var g errgroup.Group
	g.SetLimit(max(ctx.cfg.Jobs, 1))
	for i, id := range decls {
		g.Go(func() error {
			u := ctx.newUnit()
			e := &env{scope: ctx.tab.Global, live: live[i]}
			errs[i] = u.stmt(e, id)
			units[i] = u
			return errs[i]
		})
	}
	if g.Wait() != nil {
		// Report what a sequential pass would have hit first.
		for _, err := range errs {
			if err != nil {
				return nil, err
			}
		}
	}

	merged := ctx.newUnit()
	for i, u := range units {
		base := merged.buf.Splice(u.buf)
		for fn, entry := range u.entries {
			merged.entries[fn] = base + entry
		}
		for sym := range u.used {
			merged.used[sym] = true
		}
		merged.diags = append(merged.diags, u.diags...)
		merged.nodes += u.nodes
		ctx.cfg.Logger.Debug("merged declaration", "index", i, "base", base, "size", u.buf.Len())
	}
	return merged, nil
}

package context_test

import (
	"testing"

	mctx "github.com/jsamuelsen/managed-concurrency/internal/app/context"
)

func BenchmarkProvider_Capture(b *testing.B) {
	f := newFixture(b)
	p := f.provider(b, mctx.AllCategories...)
	ctx := f.submitter(b)

	b.ReportAllocs()

	for b.Loop() {
		_ = p.Capture(ctx, nil)
	}
}

// BenchmarkProvider_InstallRestore measures the per-task cost on a worker.
func BenchmarkProvider_InstallRestore(b *testing.B) {
	f := newFixture(b)
	p := f.provider(b, mctx.AllCategories...)
	snap := p.Capture(f.submitter(b), nil)
	worker, _ := threadCtx("worker")

	b.ReportAllocs()

	for b.Loop() {
		restore, err := p.Install(worker, snap)
		if err != nil {
			b.Fatal(err)
		}

		p.Restore(worker, restore)
	}
}

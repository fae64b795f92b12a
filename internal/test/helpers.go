package test

import (
	"sync"

	"github.com/hashicorp/consul/sdk/testutil"
)

// Meets consul/sdk/testutil/TestingTB interface
var _ testutil.TestingTB = (*TestingTB)(nil)

// TestingTB lets a consul test agent be started from TestMain, before any
// *testing.T exists. Cleanups registered by the agent run on DoCleanup.
type TestingTB struct {
	sync.Mutex
	cleanup func()
}

// DoCleanup runs the registered cleanups, newest first.
func (t *TestingTB) DoCleanup() {
	t.Lock()
	defer t.Unlock()
	if t.cleanup != nil {
		t.cleanup()
		t.cleanup = nil
	}
}

func (*TestingTB) Failed() bool                  { return false }
func (*TestingTB) Logf(string, ...interface{})   {}
func (*TestingTB) Fatalf(string, ...interface{}) {}
func (*TestingTB) Name() string                  { return "pagecat" }
func (*TestingTB) Helper()                       {}
func (t *TestingTB) Cleanup(f func()) {
	t.Lock()
	defer t.Unlock()
	prev := t.cleanup
	t.cleanup = func() {
		f()
		if prev != nil {
			prev()
		}
	}
}

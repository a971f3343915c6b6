package replay_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Sumatoshi-tech/replayer/pkg/replay"
)

const (
	opAbort    = "abort"
	opCheckout = "checkout"
	opMerge    = "merge"
	opPush     = "push"
	opNotify   = "notify"
	opCount    = "count"
	opList     = "list"
)

type call struct {
	op  string
	arg string
	at  time.Time
}

// recorder collects calls from every fake in the order they happen.
type recorder struct {
	mu    sync.Mutex
	calls []call
}

func (r *recorder) add(op, arg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, call{op: op, arg: arg, at: time.Now()})
}

func (r *recorder) ops(op string) []call {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []call

	for _, c := range r.calls {
		if c.op == op {
			out = append(out, c)
		}
	}

	return out
}

func (r *recorder) sequence() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.calls))
	for _, c := range r.calls {
		out = append(out, c.op)
	}

	return out
}

type fakeWorkspace struct {
	rec         *recorder
	abortErr    error
	checkoutErr error
	pushErr     error
	mergeErrs   map[replay.CommitRef]error
}

func (w *fakeWorkspace) AbortMerge(_ context.Context) error {
	w.rec.add(opAbort, "")

	return w.abortErr
}

func (w *fakeWorkspace) Checkout(_ context.Context, branch string) error {
	w.rec.add(opCheckout, branch)

	return w.checkoutErr
}

func (w *fakeWorkspace) Merge(_ context.Context, commit replay.CommitRef) error {
	w.rec.add(opMerge, commit.String())

	return w.mergeErrs[commit]
}

func (w *fakeWorkspace) Push(_ context.Context, branch string) error {
	w.rec.add(opPush, branch)

	return w.pushErr
}

type fakeEnumerator struct {
	rec      *recorder
	seq      replay.Sequence
	count    int
	countErr error
	listErr  error
}

func (e *fakeEnumerator) Count(_ context.Context, from, to string) (int, error) {
	e.rec.add(opCount, to+".."+from)

	if e.countErr != nil {
		return 0, e.countErr
	}

	return e.count, nil
}

func (e *fakeEnumerator) List(_ context.Context, from, to string) (replay.Sequence, error) {
	e.rec.add(opList, to+".."+from)

	if e.listErr != nil {
		return nil, e.listErr
	}

	return e.seq, nil
}

type fakeNotifier struct {
	rec   *recorder
	err   error
	delay time.Duration
}

func (n *fakeNotifier) Notify(_ context.Context) <-chan error {
	n.rec.add(opNotify, "")

	done := make(chan error, 1)

	go func() {
		if n.delay > 0 {
			time.Sleep(n.delay)
		}

		done <- n.err
	}()

	return done
}

func makeSequence(n int) replay.Sequence {
	seq := make(replay.Sequence, n)
	for i := range seq {
		seq[i] = replay.CommitRef(fmt.Sprintf("%040d", i))
	}

	return seq
}

type harness struct {
	rec       *recorder
	ws        *fakeWorkspace
	enum      *fakeEnumerator
	notifier  *fakeNotifier
	opts      replay.Options
	pacer     *replay.Pacer
	recording *countingRecorder
}

func newHarness(commits int) *harness {
	rec := &recorder{}
	seq := makeSequence(commits)

	return &harness{
		rec:       rec,
		ws:        &fakeWorkspace{rec: rec, mergeErrs: map[replay.CommitRef]error{}},
		enum:      &fakeEnumerator{rec: rec, seq: seq, count: commits},
		notifier:  &fakeNotifier{rec: rec},
		opts:      replay.Options{Source: "master", Target: "feature1", BatchSize: replay.DefaultBatchSize},
		recording: &countingRecorder{},
	}
}

func (h *harness) driver() (*replay.Driver, error) {
	return replay.NewDriver(h.opts, replay.Deps{
		Workspace:  h.ws,
		Enumerator: h.enum,
		Notifier:   h.notifier,
		Pacer:      h.pacer,
		Recorder:   h.recording,
	})
}

type countingRecorder struct {
	mu       sync.Mutex
	strides  int
	notifies int
	failed   int
	pending  []int
}

func (c *countingRecorder) RecordStride(_ context.Context, _ replay.StrideOutcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.strides++
}

func (c *countingRecorder) RecordNotify(_ context.Context, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.notifies++

	if err != nil {
		c.failed++
	}
}

func (c *countingRecorder) RecordPending(_ context.Context, remaining int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending = append(c.pending, remaining)
}

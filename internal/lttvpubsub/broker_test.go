package lttvpubsub_test

import (
	"context"
	"testing"

	"github.com/giraldeau/lttv"
	"github.com/giraldeau/lttv/internal/lttvpubsub"
)

func BenchmarkBrokerPublish(b *testing.B) {
	ctx := context.Background()

	fn := func(name string, allows ...func(*lttv.Event) bool) {
		b.Run(name, func(b *testing.B) {
			var (
				ctx, cancel = context.WithCancel(ctx)
				broker      = lttvpubsub.NewBroker[*lttv.Event](nil)
			)
			for _, allow := range allows {
				evc := make(chan *lttv.Event)
				defer func() { <-evc }()
				go func(allow func(*lttv.Event) bool) {
					broker.Subscribe(ctx, allow, evc)
					close(evc)
				}(allow)
			}

			ev := &lttv.Event{CPU: 0}

			b.ResetTimer()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				broker.Publish(ev)
			}

			cancel()
		})
	}

	skip := func(*lttv.Event) bool { return false }
	send := func(*lttv.Event) bool { return true }
	rep := func(f func(*lttv.Event) bool, n int) []func(*lttv.Event) bool {
		out := make([]func(*lttv.Event) bool, n)
		for i := range out {
			out[i] = f
		}
		return out
	}

	fn("no subscribers")
	fn("1 skip subscriber", skip)
	fn("10 skip subscribers", rep(skip, 10)...)
	fn("1 send subscriber", send)
	fn("10 send subscribers", rep(send, 10)...)
}

func TestBrokerSubscribeReceivesPublishedEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := lttvpubsub.NewBroker[*lttv.Event](nil)
	ch := make(chan *lttv.Event, 1)

	done := make(chan struct{})
	go func() {
		broker.Subscribe(ctx, func(*lttv.Event) bool { return true }, ch)
		close(done)
	}()

	for !broker.IsActive() {
	}

	want := &lttv.Event{CPU: 3}
	broker.Publish(want)

	have := <-ch
	if have != want {
		t.Fatalf("got %+v, want %+v", have, want)
	}

	cancel()
	<-done
}

package benchmark

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/gatherly/gathersync/internal/events"
	"github.com/gatherly/gathersync/internal/lifecycle"
	"github.com/gatherly/gathersync/internal/models"
	"github.com/gatherly/gathersync/internal/remote"
	"github.com/gatherly/gathersync/internal/store"
	syncpkg "github.com/gatherly/gathersync/internal/sync"
)

func seedRecord(i int) *models.Record {
	now := time.Now().UTC()
	return &models.Record{
		ID:        fmt.Sprintf("evt-%06d", i),
		Name:      fmt.Sprintf("Event %d", i),
		Kind:      models.KindInvite,
		Date:      "2026-10-03",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newBenchEngine(b *testing.B, local store.LocalStore, mock *remote.MockRemote) *syncpkg.Engine {
	b.Helper()

	monitor := lifecycle.NewMonitor(events.NewTestLogger())
	engine := syncpkg.NewEngine(local, mock, monitor, nil, 3, events.NewTestLogger())
	engine.SetAuthenticated(true)
	monitor.SetOnline(true)

	b.Cleanup(func() {
		_ = engine.Close()
		monitor.Close()
	})
	return engine
}

func BenchmarkPullMerge1000(b *testing.B) {
	mock := remote.NewMockRemote()
	for i := 0; i < 1000; i++ {
		mock.Seed(seedRecord(i))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		engine := newBenchEngine(b, store.NewMemoryStore(), mock)
		b.StartTimer()

		if err := engine.PullFromCloud(context.Background()); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkPushAll1000(b *testing.B) {
	local := store.NewMemoryStore()
	for i := 0; i < 1000; i++ {
		if _, err := local.AddWithID(seedRecord(i)); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		engine := newBenchEngine(b, local, remote.NewMockRemote())
		b.StartTimer()

		if err := engine.PushAllToCloud(context.Background()); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkQueueDrain(b *testing.B) {
	logger := events.NewTestLogger()
	push := func(context.Context, syncpkg.Mutation) error { return nil }

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		q := syncpkg.NewQueue(3, logger, nil)
		for j := 0; j < 1000; j++ {
			q.Enqueue(syncpkg.Mutation{Op: syncpkg.OpUpdate, RecordID: fmt.Sprintf("evt-%d", j)})
		}
		b.StartTimer()

		q.Drain(context.Background(), push)
	}
}

func BenchmarkLocalCreate(b *testing.B) {
	local := store.NewMemoryStore()
	engine := newBenchEngine(b, local, remote.NewMockRemote())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rec := &models.Record{Name: "Bench event", Kind: models.KindInvite, Date: "2026-10-03"}
		if _, err := engine.CreateRecord(rec); err != nil {
			b.Fatal(err)
		}
	}
}

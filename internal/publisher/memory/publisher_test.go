package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublisher_RetainsMessagesInOrder(t *testing.T) {
	t.Parallel()
	p := New()

	id, err := p.Publish(context.Background(), "cycle-reports", map[string]int{"total": 5})
	require.NoError(t, err)
	require.Equal(t, "mem-0001", id)

	id, err = p.Publish(context.Background(), "alerts", "stale catalog")
	require.NoError(t, err)
	require.Equal(t, "mem-0002", id)

	msgs := p.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "cycle-reports", msgs[0].Topic)
	require.Equal(t, "alerts", msgs[1].Topic)
	require.Equal(t, "mem-0002", msgs[1].ID)
}

func TestPublisher_IndexesByTopic(t *testing.T) {
	t.Parallel()
	p := New()
	for i := 0; i < 3; i++ {
		_, err := p.Publish(context.Background(), "cycle-reports", i)
		require.NoError(t, err)
	}
	_, err := p.Publish(context.Background(), "alerts", "x")
	require.NoError(t, err)

	require.Len(t, p.Topic("cycle-reports"), 3)
	require.Len(t, p.Topic("alerts"), 1)
	require.Empty(t, p.Topic("unused"))
}

func TestPublisher_ConcurrentPublishes(t *testing.T) {
	t.Parallel()
	p := New()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Publish(context.Background(), "t", nil)
			require.NoError(t, err)
		}()
	}
	wg.Wait()
	require.Len(t, p.Messages(), 20)
	require.Len(t, p.Topic("t"), 20)
}

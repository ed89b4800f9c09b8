package health

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_AllHealthy(t *testing.T) {
	r := NewRegistry()
	r.Register("a", func(ctx context.Context) Status {
		return Status{Name: "a", Healthy: true}
	})
	r.Register("b", func(ctx context.Context) Status {
		return Status{Name: "b", Healthy: true}
	})

	healthy, statuses := r.CheckAll(context.Background())
	assert.True(t, healthy)
	assert.Len(t, statuses, 2)
}

func TestRegistry_OneUnhealthy(t *testing.T) {
	r := NewRegistry()
	r.Register("ok", func(ctx context.Context) Status {
		return Status{Name: "ok", Healthy: true}
	})
	r.Register("broken", func(ctx context.Context) Status {
		return Status{Name: "broken", Healthy: false, Detail: "chain mismatch"}
	})

	healthy, statuses := r.CheckAll(context.Background())
	assert.False(t, healthy)
	assert.Equal(t, "chain mismatch", statuses[1].Detail)
}

func TestChainChecker(t *testing.T) {
	c := ChainChecker(func(ctx context.Context) (bool, string) {
		return false, "block #3: previous_hash mismatch"
	})
	st := c(context.Background())
	assert.False(t, st.Healthy)
	assert.Equal(t, "ledger_chain", st.Name)
}

func TestRegistry_Empty(t *testing.T) {
	r := NewRegistry()
	healthy, statuses := r.CheckAll(context.Background())
	assert.True(t, healthy)
	assert.Empty(t, statuses)
}

package github

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource serves total sequential ints in pages of pageSize.
type fakeSource struct {
	total    int
	pageSize int
	requests []int
}

func (f *fakeSource) page(_ context.Context, page int) ([]int, error) {
	f.requests = append(f.requests, page)
	start := (page - 1) * f.pageSize
	if start >= f.total {
		return nil, nil
	}
	end := min(start+f.pageSize, f.total)
	batch := make([]int, 0, end-start)
	for i := start; i < end; i++ {
		batch = append(batch, i)
	}
	return batch, nil
}

func TestFetchBoundedNeverExceedsLimit(t *testing.T) {
	for total := 0; total <= 7; total++ {
		for limit := 0; limit <= 9; limit++ {
			t.Run(fmt.Sprintf("total=%d/limit=%d", total, limit), func(t *testing.T) {
				src := &fakeSource{total: total, pageSize: 3}

				items, err := fetchBounded(context.Background(), limit, 3, src.page)
				require.NoError(t, err)

				want := min(total, limit)
				require.Len(t, items, want)
				for i, v := range items {
					assert.Equal(t, i, v, "upstream order must be preserved")
				}
			})
		}
	}
}

func TestFetchBoundedRequests(t *testing.T) {
	testCases := []struct {
		name         string
		total        int
		pageSize     int
		limit        int
		wantRequests []int
	}{
		{name: "zero limit issues no request", total: 10, pageSize: 3, limit: 0, wantRequests: nil},
		{name: "negative limit issues no request", total: 10, pageSize: 3, limit: -4, wantRequests: nil},
		{name: "short first page stops", total: 2, pageSize: 3, limit: 50, wantRequests: []int{1}},
		{name: "quota reached mid page", total: 10, pageSize: 3, limit: 4, wantRequests: []int{1, 2}},
		{name: "quota reached on page boundary", total: 10, pageSize: 3, limit: 6, wantRequests: []int{1, 2}},
		{name: "exact multiple needs empty page", total: 6, pageSize: 3, limit: 50, wantRequests: []int{1, 2, 3}},
		{name: "empty upstream", total: 0, pageSize: 3, limit: 5, wantRequests: []int{1}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			src := &fakeSource{total: tc.total, pageSize: tc.pageSize}

			_, err := fetchBounded(context.Background(), tc.limit, tc.pageSize, src.page)
			require.NoError(t, err)
			assert.Equal(t, tc.wantRequests, src.requests)
		})
	}
}

func TestFetchBoundedPropagatesErrors(t *testing.T) {
	calls := 0
	items, err := fetchBounded(context.Background(), 10, 2, func(_ context.Context, page int) ([]string, error) {
		calls++
		if page == 2 {
			return nil, assert.AnError
		}
		return []string{"a", "b"}, nil
	})

	assert.ErrorIs(t, err, assert.AnError)
	assert.Nil(t, items)
	assert.Equal(t, 2, calls)
}

func TestFetchBoundedHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := fetchBounded(ctx, 5, 2, func(context.Context, int) ([]int, error) {
		called = true
		return []int{1, 2}, nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

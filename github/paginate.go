package github

import "context"

// pageFunc fetches one 1-based page. An empty result ends pagination.
type pageFunc[T any] func(ctx context.Context, page int) ([]T, error)

// fetchBounded walks pages until limit items are collected, a page comes
// back empty, or a page is shorter than pageSize. Each page is truncated to
// the remaining quota, so the result never exceeds limit.
func fetchBounded[T any](ctx context.Context, limit, pageSize int, fetch pageFunc[T]) ([]T, error) {
	if limit <= 0 {
		return []T{}, nil
	}

	items := make([]T, 0, min(limit, pageSize))
	for page := 1; len(items) < limit; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		batch, err := fetch(ctx, page)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}

		short := len(batch) < pageSize
		if remaining := limit - len(items); len(batch) > remaining {
			batch = batch[:remaining]
		}
		items = append(items, batch...)

		if short {
			break
		}
	}

	return items, nil
}

package cmc

import (
	"context"
	"fmt"

	"cmc_performance/models"
	"cmc_performance/utils"
)

// TotalCount asks for a single listing to learn how many coins exist.
func (c *Client) TotalCount(ctx context.Context) (int, error) {
	resp, err := c.FetchListings(ctx, 1, 1)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch total number of coins: %w", err)
	}
	return resp.Status.TotalCount, nil
}

// FetchUniverse pages through every listing. A failed page ends pagination:
// the pages already retrieved are returned without an error. Only a failed
// total count probe is fatal.
func (c *Client) FetchUniverse(ctx context.Context) ([]models.CoinRecord, error) {
	total, err := c.TotalCount(ctx)
	if err != nil {
		return nil, err
	}

	pageSize := c.PageSize
	if pageSize <= 0 {
		pageSize = 1000
	}
	numPages := (total + pageSize - 1) / pageSize

	utils.Logger.Infow("Retrieving coin universe",
		"total_count", total,
		"page_size", pageSize,
		"pages", numPages)

	coins := make([]models.CoinRecord, 0, total)
	for page := 0; page < numPages; page++ {
		start := page*pageSize + 1

		resp, err := c.FetchListings(ctx, start, pageSize)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			utils.Error(err, "Error retrieving listings page, stopping pagination",
				"page", page+1,
				"start", start,
				"coins_retrieved", len(coins))
			c.Metrics.IncrementPagesFailed()
			break
		}

		coins = append(coins, resp.Data...)
		c.Metrics.AddCoinsFetched(len(resp.Data))
	}

	utils.Logger.Infow("Coin universe retrieved", "coins", len(coins))
	return coins, nil
}

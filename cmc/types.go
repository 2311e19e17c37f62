package cmc

import "cmc_performance/models"

const ListingsEndpoint = "/v1/cryptocurrency/listings/latest"

type Status struct {
	Timestamp    string `json:"timestamp"`
	ErrorCode    int    `json:"error_code"`
	ErrorMessage string `json:"error_message"`
	Elapsed      int    `json:"elapsed"`
	CreditCount  int    `json:"credit_count"`
	TotalCount   int    `json:"total_count"`
}

type ListingsResponse struct {
	Status Status              `json:"status"`
	Data   []models.CoinRecord `json:"data"`
}

package handler

import (
	"errors"

	"riskwatch/internal/views/models"
	id "riskwatch/pkg/domain"
	dErrors "riskwatch/pkg/domain-errors"
	"riskwatch/pkg/platform/sentinel"
)

// HistoryResponse is the body of the address history endpoint.
type HistoryResponse struct {
	CustomerID id.CustomerID       `json:"customer_id"`
	Intervals  []models.AddressRow `json:"intervals"`
}

// ListResponse is the body of the risk listing endpoint.
type ListResponse struct {
	Profiles []models.RiskProfile `json:"profiles"`
	Count    int                  `json:"count"`
}

func codeOf(err error) dErrors.Code {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.CodeNotFound
	}
	return dErrors.CodeOf(err)
}

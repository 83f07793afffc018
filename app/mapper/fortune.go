package mapper

import (
	"time"

	"github.com/finjan-labs/ms-go-fortunes/app/entity"
	"github.com/finjan-labs/ms-go-fortunes/app/types"
)

func FortuneToResponse(item *entity.Fortune) *types.Fortune {
	if item == nil {
		return nil
	}

	images := item.ImageURLs
	if images == nil {
		images = []string{}
	}

	return &types.Fortune{
		ID:          item.ID,
		OwnerID:     item.OwnerID,
		Images:      images,
		SubjectName: item.SubjectName,
		SubjectAge:  item.SubjectAge,
		Intent:      item.Intent,
		About:       derefString(item.About),
		Prediction:  item.Prediction,
		Status:      item.Status,
		PaymentID:   derefString(item.PaymentID),
		CreatedAt:   item.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func FortunesToResponse(items []*entity.Fortune) []*types.Fortune {
	result := make([]*types.Fortune, 0, len(items))
	for _, item := range items {
		result = append(result, FortuneToResponse(item))
	}
	return result
}

// FortuneToStatusResponse builds the polling payload: always the status, the
// prediction only once the fortune is completed.
func FortuneToStatusResponse(item *entity.Fortune) *types.FortuneStatusResponse {
	if item == nil {
		return nil
	}

	resp := &types.FortuneStatusResponse{Status: item.Status}
	if item.Status == entity.FortuneStatusCompleted {
		resp.Prediction = item.Prediction
	}
	return resp
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

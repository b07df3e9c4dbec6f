package admin

import (
	"github.com/erazemk/sowa/internal/model"
)

// Move returns a copy of list with the element at from moved to index to,
// shifting the elements in between.
func Move[T any](list []T, from, to int) []T {
	out := make([]T, len(list))
	copy(out, list)
	if from == to || from < 0 || to < 0 || from >= len(out) || to >= len(out) {
		return out
	}

	item := out[from]
	if from < to {
		copy(out[from:to], out[from+1:to+1])
	} else {
		copy(out[to+1:from+1], out[to:from])
	}
	out[to] = item
	return out
}

// Reorder moves the image activeID to the position of overID. It returns an
// unchanged copy when overID is 0, equals activeID, or either id is missing.
func Reorder(list []model.PortfolioImage, activeID, overID int64) []model.PortfolioImage {
	if overID == 0 || activeID == overID {
		return Move(list, 0, 0)
	}

	from, to := indexOf(list, activeID), indexOf(list, overID)
	if from < 0 || to < 0 {
		return Move(list, 0, 0)
	}
	return Move(list, from, to)
}

func indexOf(list []model.PortfolioImage, id int64) int {
	for i, item := range list {
		if item.ID == id {
			return i
		}
	}
	return -1
}

// applyOrder arranges list by ids. Images missing from ids keep their
// relative order after the ordered ones; ids no longer listed are skipped.
func applyOrder(list []model.PortfolioImage, ids []int64) []model.PortfolioImage {
	if len(ids) == 0 {
		return list
	}

	byID := make(map[int64]model.PortfolioImage, len(list))
	for _, item := range list {
		byID[item.ID] = item
	}

	out := make([]model.PortfolioImage, 0, len(list))
	placed := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if item, ok := byID[id]; ok && !placed[id] {
			out = append(out, item)
			placed[id] = true
		}
	}
	for _, item := range list {
		if !placed[item.ID] {
			out = append(out, item)
		}
	}
	return out
}

func idsOf(list []model.PortfolioImage) []int64 {
	ids := make([]int64, len(list))
	for i, item := range list {
		ids[i] = item.ID
	}
	return ids
}

package sortutil

import (
	"sort"

	"github.com/skaphos/branchkeeper/internal/model"
)

// LessRankName provides deterministic ordering by rank first, then by name.
func LessRankName(rankI int, nameI string, rankJ int, nameJ string) bool {
	if rankI == rankJ {
		return nameI < nameJ
	}
	return rankI < rankJ
}

// CategoryRank returns the display position of cat; unknown categories
// sort last.
func CategoryRank(cat model.Category) int {
	for i, c := range model.Categories {
		if c == cat {
			return i
		}
	}
	return len(model.Categories)
}

// SortReports orders report rows by branch name, then result.
func SortReports(reports []model.BranchReport) {
	sort.SliceStable(reports, func(i, j int) bool {
		if reports[i].Branch == reports[j].Branch {
			return reports[i].Result < reports[j].Result
		}
		return reports[i].Branch < reports[j].Branch
	})
}

// ClassifiedRow is one branch of a classification, ready for display.
type ClassifiedRow struct {
	Name     string
	Category model.Category
}

// ClassificationRows flattens cls into rows ordered by category, then name.
func ClassificationRows(cls model.Classification) []ClassifiedRow {
	rows := make([]ClassifiedRow, 0, len(cls.Branches))
	for name, cat := range cls.Branches {
		rows = append(rows, ClassifiedRow{Name: name, Category: cat})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return LessRankName(CategoryRank(rows[i].Category), rows[i].Name, CategoryRank(rows[j].Category), rows[j].Name)
	})
	return rows
}

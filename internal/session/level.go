package session

import "strconv"

// LevelNumber extracts the first contiguous run of digits anywhere in a
// level id, for ordering comparisons. Ids without digits map to 0.
func LevelNumber(id string) int {
	start := -1
	for i, r := range id {
		isDigit := r >= '0' && r <= '9'
		if isDigit && start < 0 {
			start = i
		}
		if !isDigit && start >= 0 {
			n, _ := strconv.Atoi(id[start:i])
			return n
		}
	}
	if start >= 0 {
		n, _ := strconv.Atoi(id[start:])
		return n
	}
	return 0
}

package app

// clamp clamps v into [min, max].
func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// listColWidths splits the list pane width between the fixed columns, the
// cpu bar and the name, which takes what is left.
func listColWidths(total int) (wID, wName, wState, wCPU, wBar, wMem int) {
	wID, wState, wCPU, wMem = 6, 8, 5, 9
	minName := 12

	base := wID + wState + wCPU + wMem + minName + 5 // single spaces between columns
	remain := total - base
	if remain < 6 {
		remain = 6
	}

	wBar = clamp(remain/3, 4, 20)
	wName = clamp(minName+remain-wBar, minName, 40)
	return
}

// splitPanes gives the list roughly 60% of the width and the detail pane the
// rest; narrow terminals drop the detail pane.
func splitPanes(width int) (list, detail int) {
	if width < 80 {
		return width, 0
	}
	detail = clamp(width*2/5, 34, 60)
	return width - detail, detail
}

// listRows is how many records fit under the header, status and help lines.
func listRows(height int) int {
	// header, column titles, status, help, pane border
	return clamp(height-7, 1, height)
}

package progress

import "github.com/rpggio/phasetrack/internal/catalog"

// CompletionPercent returns the rounded share of completed records for
// projectID out of total phases. Records of other projects are ignored.
func CompletionPercent(projectID string, records []ModuleProgress, total int) int {
	if total <= 0 {
		return 0
	}
	completed := 0
	for _, r := range records {
		if r.ProjectID == projectID && r.Status == StatusCompleted {
			completed++
		}
	}
	return percent(completed, total)
}

// ModuleBreakdown returns per-module completion for projectID in catalog order.
func ModuleBreakdown(cat *catalog.Catalog, projectID string, records []ModuleProgress) []ModuleCompletion {
	done := make(map[[2]int]bool, len(records))
	for _, r := range records {
		if r.ProjectID == projectID && r.Status == StatusCompleted {
			done[[2]int{r.ModuleNumber, r.PhaseNumber}] = true
		}
	}

	modules := cat.Modules()
	out := make([]ModuleCompletion, 0, len(modules))
	for _, m := range modules {
		mc := ModuleCompletion{
			ModuleNumber: m.Number,
			ModuleTitle:  m.Title,
			Total:        len(m.Phases),
		}
		for _, p := range m.Phases {
			if done[[2]int{m.Number, p.PhaseNumber}] {
				mc.Completed++
			}
		}
		mc.Percent = percent(mc.Completed, mc.Total)
		out = append(out, mc)
	}
	return out
}

// percent rounds half up and clamps to [0, 100].
func percent(completed, total int) int {
	if total <= 0 || completed <= 0 {
		return 0
	}
	if completed >= total {
		return 100
	}
	return (200*completed + total) / (2 * total)
}
